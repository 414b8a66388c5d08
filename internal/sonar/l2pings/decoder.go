package l2pings

import (
	"sync/atomic"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
)

// DecoderStats is a snapshot of decoder counters.
type DecoderStats struct {
	Pings      uint64 `json:"pings"`
	Failures   uint64 `json:"failures"`
	KeepAlives uint64 `json:"keep_alives"`
	Configs    uint64 `json:"configs"`
	Unknown    uint64 `json:"unknown"`
}

// Decoder wraps Decode and holds the most recent good PingRecord. A failed
// decode never replaces it. Decoder is owned by the reader goroutine; Stats
// may be read from anywhere.
type Decoder struct {
	latest *PingRecord

	pings      atomic.Uint64
	failures   atomic.Uint64
	keepAlives atomic.Uint64
	configs    atomic.Uint64
	unknown    atomic.Uint64
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes frame and, for a ping, makes it the latest record.
func (d *Decoder) Decode(frame l1wire.RawFrame) (Message, error) {
	msg, err := Decode(frame)
	if err != nil {
		d.failures.Add(1)
		diagf("decode msg=0x%02x ver=%d failed: %v", frame.Header.MsgID, frame.Header.MsgVersion, err)
		return nil, err
	}
	switch m := msg.(type) {
	case *PingRecord:
		d.latest = m
		d.pings.Add(1)
		tracef("ping id=%d %s %dx%d res=%.4fm", m.PingID, m.Variant, m.Beams, m.Ranges, m.RangeResolution)
	case KeepAlive:
		d.keepAlives.Add(1)
	case UserConfig:
		d.configs.Add(1)
	case nil:
		d.unknown.Add(1)
	}
	return msg, nil
}

// Latest returns the most recent successfully decoded ping, or nil.
func (d *Decoder) Latest() *PingRecord {
	return d.latest
}

// Stats returns a snapshot of the counters.
func (d *Decoder) Stats() DecoderStats {
	return DecoderStats{
		Pings:      d.pings.Load(),
		Failures:   d.failures.Load(),
		KeepAlives: d.keepAlives.Load(),
		Configs:    d.configs.Load(),
		Unknown:    d.unknown.Load(),
	}
}
