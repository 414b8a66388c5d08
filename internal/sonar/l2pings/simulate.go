package l2pings

import (
	"math"
	"math/rand"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
)

// SimTarget is a rectangular patch painted into a synthetic ping. Positions
// are fractions of the beam and range axes.
type SimTarget struct {
	BeamFrac   float64
	RangeFrac  float64
	HalfBeams  int
	HalfRanges int
	Level      uint8
}

// SimConfig describes a synthetic ping stream.
type SimConfig struct {
	Variant     Variant
	Beams       int
	Ranges      int
	ApertureDeg float64
	MaxRange    float64
	Background  uint8
	Noise       uint8 // peak-to-peak uniform noise
	Seed        int64
	Targets     []SimTarget
}

// DefaultSimConfig is a 256 beam, 500 sample, 130 degree, 10 m v2 ping with
// one bright target ahead of the head.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Variant:     VariantV2Simple,
		Beams:       256,
		Ranges:      500,
		ApertureDeg: 130,
		MaxRange:    10,
		Background:  40,
		Noise:       6,
		Seed:        1,
		Targets: []SimTarget{
			{BeamFrac: 0.5, RangeFrac: 0.6, HalfBeams: 12, HalfRanges: 20, Level: 220},
		},
	}
}

// LinearBearings spreads beams evenly across spanDeg centred on zero and
// returns the table in hundredths of a degree.
func LinearBearings(beams int, spanDeg float64) []int16 {
	out := make([]int16, beams)
	if beams == 1 {
		return out
	}
	half := spanDeg / 2
	for i := range out {
		deg := -half + spanDeg*float64(i)/float64(beams-1)
		out[i] = int16(math.Round(deg * 100))
	}
	return out
}

// Synthesize builds one ping for cfg.
func Synthesize(cfg SimConfig, pingID uint32) *PingRecord {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(pingID)))
	rec := &PingRecord{
		Variant: cfg.Variant,
		Version: 1,
		Fire: l1wire.FireFields{
			MasterMode: 1,
			PingRate:   l1wire.PingRateHigh,
			Flags:      l1wire.DefaultFireCommand().Flags(),
			Range:      cfg.MaxRange,
			Gain:       60,
		},
		PingID:          pingID,
		Frequency:       750e3,
		Temperature:     12,
		SpeedOfSound:    1480,
		PingStartTime:   float64(pingID) * 0.1,
		SampleBits:      8,
		RangeResolution: cfg.MaxRange / float64(cfg.Ranges),
		Beams:           cfg.Beams,
		Ranges:          cfg.Ranges,
		Bearings:        LinearBearings(cfg.Beams, cfg.ApertureDeg),
		Intensity:       make([]uint8, cfg.Beams*cfg.Ranges),
	}
	if cfg.Variant != VariantV1Simple {
		rec.Version = 2
		rec.Attitude = &Attitude{}
	}
	if cfg.Variant == VariantFull {
		rec.Extended = &FullExtension{BeamWidthDeg: cfg.ApertureDeg / float64(cfg.Beams)}
	}

	for i := range rec.Intensity {
		v := int(cfg.Background)
		if cfg.Noise > 0 {
			v += rng.Intn(int(cfg.Noise)+1) - int(cfg.Noise)/2
		}
		rec.Intensity[i] = clampByte(v)
	}
	for _, t := range cfg.Targets {
		cb := int(math.Round(t.BeamFrac * float64(cfg.Beams-1)))
		cr := int(math.Round(t.RangeFrac * float64(cfg.Ranges-1)))
		for b := cb - t.HalfBeams; b <= cb+t.HalfBeams; b++ {
			if b < 0 || b >= cfg.Beams {
				continue
			}
			for r := cr - t.HalfRanges; r <= cr+t.HalfRanges; r++ {
				if r < 0 || r >= cfg.Ranges {
					continue
				}
				rec.Intensity[b*cfg.Ranges+r] = t.Level
			}
		}
	}
	return rec
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
