package l1wire

import (
	"bytes"
	"fmt"
	"strings"
	"sync/atomic"
)

// ResyncPolicy selects what the framer does with buffered bytes when it
// reads a header with a bad sync marker.
type ResyncPolicy int

const (
	// ResyncDropAll discards everything buffered, including any complete
	// frames queued behind the bad header. This is the device client's
	// historical behaviour.
	ResyncDropAll ResyncPolicy = iota
	// ResyncScanForward skips ahead to the next sync marker and keeps going.
	ResyncScanForward
)

func (p ResyncPolicy) String() string {
	switch p {
	case ResyncDropAll:
		return "drop_all"
	case ResyncScanForward:
		return "scan_forward"
	default:
		return fmt.Sprintf("ResyncPolicy(%d)", int(p))
	}
}

// ParseResyncPolicy accepts "drop_all" or "scan_forward" (case-insensitive).
// The empty string selects ResyncDropAll.
func ParseResyncPolicy(s string) (ResyncPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_all":
		return ResyncDropAll, nil
	case "scan_forward":
		return ResyncScanForward, nil
	default:
		return ResyncDropAll, fmt.Errorf("unknown resync policy %q", s)
	}
}

// FramerConfig configures a Framer. The zero value uses drop-all resync and
// DEFAULT_MAX_PAYLOAD.
type FramerConfig struct {
	Resync ResyncPolicy
	// MaxPayload bounds the declared payload size. Larger declarations are
	// treated like a bad sync marker. Zero means DEFAULT_MAX_PAYLOAD.
	MaxPayload uint32
}

// FramerStats is a snapshot of framer counters.
type FramerStats struct {
	Frames       uint64 `json:"frames"`
	Bytes        uint64 `json:"bytes"`
	Flushes      uint64 `json:"flushes"`
	DroppedBytes uint64 `json:"dropped_bytes"`
}

// Framer reassembles a byte stream into RawFrames. It is owned by a single
// goroutine (the transport reader); only Stats may be called concurrently.
type Framer struct {
	buf        []byte
	resync     ResyncPolicy
	maxPayload uint32

	frames  atomic.Uint64
	bytes   atomic.Uint64
	flushes atomic.Uint64
	dropped atomic.Uint64
}

var syncBytes = []byte{SYNC_ID & 0xff, SYNC_ID >> 8}

// NewFramer returns a Framer for cfg.
func NewFramer(cfg FramerConfig) *Framer {
	maxPayload := cfg.MaxPayload
	if maxPayload == 0 {
		maxPayload = DEFAULT_MAX_PAYLOAD
	}
	return &Framer{
		resync:     cfg.Resync,
		maxPayload: maxPayload,
	}
}

// Push appends chunk and returns every frame it completed.
func (f *Framer) Push(chunk []byte) []RawFrame {
	var out []RawFrame
	f.Feed(chunk, func(fr RawFrame) {
		out = append(out, fr)
	})
	return out
}

// Feed appends chunk to the buffer and calls emit for every complete frame,
// in stream order. Frames passed to emit own their bytes.
func (f *Framer) Feed(chunk []byte, emit func(RawFrame)) {
	f.bytes.Add(uint64(len(chunk)))
	f.buf = append(f.buf, chunk...)

	off := 0
	for len(f.buf)-off >= HEADER_SIZE {
		h, err := ParseHeader(f.buf[off:])
		if err == nil && h.PayloadSize > f.maxPayload {
			err = fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, h.PayloadSize, f.maxPayload)
		}
		if err != nil {
			f.flushes.Add(1)
			if f.resync == ResyncScanForward {
				next := f.nextSync(off + 1)
				f.dropped.Add(uint64(next - off))
				diagf("resync after %v: skipped %d bytes (flush #%d)", err, next-off, f.flushes.Load())
				off = next
				continue
			}
			n := len(f.buf) - off
			f.dropped.Add(uint64(n))
			opsf("flushing %d buffered bytes after %v (flush #%d)", n, err, f.flushes.Load())
			off = len(f.buf)
			break
		}

		size := h.FrameSize()
		if len(f.buf)-off < size {
			break
		}
		frame := make([]byte, size)
		copy(frame, f.buf[off:off+size])
		off += size
		f.frames.Add(1)
		tracef("frame msg=0x%02x ver=%d size=%d", h.MsgID, h.MsgVersion, size)
		emit(RawFrame{Header: h, Bytes: frame})
	}

	// Shift the remainder to the head. The backing array is kept so the
	// capacity only ever grows.
	n := copy(f.buf, f.buf[off:])
	f.buf = f.buf[:n]
}

// nextSync returns the offset of the next sync marker at or after from. When
// none is found it returns the offset that keeps a trailing partial marker
// byte, or len(buf).
func (f *Framer) nextSync(from int) int {
	if from >= len(f.buf) {
		return len(f.buf)
	}
	if i := bytes.Index(f.buf[from:], syncBytes); i >= 0 {
		return from + i
	}
	if f.buf[len(f.buf)-1] == syncBytes[0] {
		return len(f.buf) - 1
	}
	return len(f.buf)
}

// Buffered returns the number of bytes waiting for the rest of a frame.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Capacity returns the capacity of the internal buffer.
func (f *Framer) Capacity() int {
	return cap(f.buf)
}

// Flushes returns how many times corruption forced a resync.
func (f *Framer) Flushes() uint64 {
	return f.flushes.Load()
}

// Stats returns a snapshot of the counters. Safe for concurrent use.
func (f *Framer) Stats() FramerStats {
	return FramerStats{
		Frames:       f.frames.Load(),
		Bytes:        f.bytes.Load(),
		Flushes:      f.flushes.Load(),
		DroppedBytes: f.dropped.Load(),
	}
}

// Reset drops any buffered bytes. Counters are kept. Called when the
// transport reconnects so a half frame from the old socket is not spliced
// onto the new stream.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
