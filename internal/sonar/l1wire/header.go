package l1wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

/*
Oculus message header (16 bytes, little-endian, packed):

	offset size field
	0      2    sync id      0x4f53 ("SO")
	2      2    source device id
	4      2    destination device id
	6      2    message id
	8      2    message version
	10     4    payload size (bytes following the header)
	14     2    spare

Every message on the wire, in both directions, starts with this header.
*/
const (
	HEADER_SIZE = 16
	SYNC_ID     = 0x4f53

	// Default ceiling on a declared payload. Real pings are well under 2 MiB.
	DEFAULT_MAX_PAYLOAD = 16 << 20
)

// Message ids.
const (
	MsgSimpleFire       uint16 = 0x15
	MsgPingResult       uint16 = 0x22
	MsgSimplePingResult uint16 = 0x23
	MsgUserConfig       uint16 = 0x55
	MsgKeepAlive        uint16 = 0xFF
)

var (
	// ErrBadSync is returned when a header does not start with SYNC_ID.
	ErrBadSync = errors.New("bad sync marker")
	// ErrShortHeader is returned when fewer than HEADER_SIZE bytes are given.
	ErrShortHeader = errors.New("short header")
	// ErrFrameTooLarge is returned when a declared payload exceeds the limit.
	ErrFrameTooLarge = errors.New("declared payload too large")
)

// Header is the decoded fixed message header.
type Header struct {
	SyncID      uint16
	SrcDeviceID uint16
	DstDeviceID uint16
	MsgID       uint16
	MsgVersion  uint16
	PayloadSize uint32
	Spare       uint16
}

// FrameSize returns the full on-wire size of the message (header + payload).
func (h Header) FrameSize() int {
	return HEADER_SIZE + int(h.PayloadSize)
}

// ParseHeader decodes a header from the first HEADER_SIZE bytes of b.
// The sync marker is checked; the payload size is not.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HEADER_SIZE {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	h := Header{
		SyncID:      binary.LittleEndian.Uint16(b[0:2]),
		SrcDeviceID: binary.LittleEndian.Uint16(b[2:4]),
		DstDeviceID: binary.LittleEndian.Uint16(b[4:6]),
		MsgID:       binary.LittleEndian.Uint16(b[6:8]),
		MsgVersion:  binary.LittleEndian.Uint16(b[8:10]),
		PayloadSize: binary.LittleEndian.Uint32(b[10:14]),
		Spare:       binary.LittleEndian.Uint16(b[14:16]),
	}
	if h.SyncID != SYNC_ID {
		return h, fmt.Errorf("%w: 0x%04x", ErrBadSync, h.SyncID)
	}
	return h, nil
}

// PutHeader encodes h into the first HEADER_SIZE bytes of b.
// A zero SyncID is written as SYNC_ID.
func PutHeader(b []byte, h Header) {
	sync := h.SyncID
	if sync == 0 {
		sync = SYNC_ID
	}
	binary.LittleEndian.PutUint16(b[0:2], sync)
	binary.LittleEndian.PutUint16(b[2:4], h.SrcDeviceID)
	binary.LittleEndian.PutUint16(b[4:6], h.DstDeviceID)
	binary.LittleEndian.PutUint16(b[6:8], h.MsgID)
	binary.LittleEndian.PutUint16(b[8:10], h.MsgVersion)
	binary.LittleEndian.PutUint32(b[10:14], h.PayloadSize)
	binary.LittleEndian.PutUint16(b[14:16], h.Spare)
}

// RawFrame is one complete message taken off the stream. Bytes holds the
// header and payload and is owned by the frame.
type RawFrame struct {
	Header Header
	Bytes  []byte
}

// Payload returns the bytes following the header.
func (f RawFrame) Payload() []byte {
	if len(f.Bytes) < HEADER_SIZE {
		return nil
	}
	return f.Bytes[HEADER_SIZE:]
}

// NewFrame builds a RawFrame for msgID/version around payload. Used by
// command encoders and tests.
func NewFrame(msgID, version uint16, payload []byte) RawFrame {
	h := Header{
		SyncID:      SYNC_ID,
		MsgID:       msgID,
		MsgVersion:  version,
		PayloadSize: uint32(len(payload)),
	}
	b := make([]byte, HEADER_SIZE+len(payload))
	PutHeader(b, h)
	copy(b[HEADER_SIZE:], payload)
	return RawFrame{Header: h, Bytes: b}
}
