// Package l2pings owns Layer 2 (Pings) of the sonar data model.
//
// Responsibilities: decoding framed messages into PingRecords (simple v1,
// simple v2 and full ping results), keep-alive and user-config events, and
// the inverse encoder used by replay fixtures and the dev simulator.
// Key types: PingRecord, Variant, Decoder, Message.
//
// Dependency rule: L2 may depend on L1, never on L3+.
package l2pings
