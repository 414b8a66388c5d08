// Package network moves bytes between the sonar head and the decode layers.
//
// Client owns the TCP (or serial) connection. Its Run loop is the only
// goroutine that touches the framer buffer; commands come in through a
// single-slot CommandSlot and decoded pings go out through a depth-one
// Latest queue, so a slow consumer never stalls the reader. ReplayPCAP feeds
// a recorded capture through the same framing path.
package network
