// Package l1wire owns Layer 1 (Wire) of the sonar data model.
//
// Responsibilities: the fixed 16-byte little-endian message header,
// reassembly of a transport byte stream into length-delimited frames, and
// encoding of the outbound device commands (simple fire, user config,
// keep-alive).
// Key types: Header, RawFrame, Framer, FireCommand.
//
// Dependency rule: L1 depends on nothing above the standard library.
package l1wire
