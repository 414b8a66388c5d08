// Package pipeline runs each decoded ping through the detectors and maps the
// results into world space.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/geom"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/l3canvas"
	"github.com/banshee-data/sonar.report/internal/sonar/l4detect"
	"github.com/banshee-data/sonar.report/internal/sonar/l5neural"
	"github.com/banshee-data/sonar.report/internal/sonar/network"
	"github.com/banshee-data/sonar.report/internal/timeutil"
)

// Config selects the detectors and their settings.
type Config struct {
	Statistical        l4detect.Params
	Neural             l5neural.Config
	StatisticalEnabled bool
	NeuralEnabled      bool
	// DetectionEnabled is the initial SetEnabled state.
	DetectionEnabled bool
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Statistical:        l4detect.ParamsFromTuning(cfg),
		Neural:             l5neural.ConfigFromTuning(cfg),
		StatisticalEnabled: cfg.GetStatisticalEnabled(),
		NeuralEnabled:      cfg.GetNeuralEnabled(),
		DetectionEnabled:   cfg.GetDetectionEnabled(),
	}
}

// Frame is the detection result for one ping. Detections replaces the
// previous frame's list wholesale.
type Frame struct {
	ID             uuid.UUID         `json:"id"`
	PingID         uint32            `json:"ping_id"`
	Time           time.Time         `json:"time"`
	Detections     []sonar.Detection `json:"detections"`
	NeuralDisabled bool              `json:"neural_disabled"`
	Mean           float64           `json:"mean"`
	Std            float64           `json:"std"`
	Canvas         *l3canvas.Canvas  `json:"-"`
	Transform      string            `json:"transform,omitempty"`
}

// Sink receives every processed frame together with its ping.
type Sink interface {
	HandleFrame(rec *l2pings.PingRecord, f Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec *l2pings.PingRecord, f Frame)

// HandleFrame calls fn.
func (fn SinkFunc) HandleFrame(rec *l2pings.PingRecord, f Frame) { fn(rec, f) }

// Source yields pings; network.Latest satisfies it.
type Source interface {
	Next(ctx context.Context) (*l2pings.PingRecord, error)
}

// Pipeline holds no per-frame state: frames are independent and Process may
// run concurrently for different records.
type Pipeline struct {
	cfg     Config
	neural  *l5neural.Detector
	clock   timeutil.Clock
	enabled atomic.Bool
}

// New validates cfg. engine may be nil, in which case the neural path is
// off. A nil clock uses the real one.
func New(cfg Config, engine l5neural.Engine, clock timeutil.Clock) (*Pipeline, error) {
	if err := cfg.Statistical.Validate(); err != nil {
		return nil, fmt.Errorf("invalid statistical params: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	p := &Pipeline{cfg: cfg, clock: clock}
	if engine != nil && cfg.NeuralEnabled {
		d, err := l5neural.NewDetector(engine, cfg.Neural)
		if err != nil {
			return nil, err
		}
		p.neural = d
	}
	p.enabled.Store(cfg.DetectionEnabled)
	return p, nil
}

// SetEnabled turns detection on or off. While off, frames carry no
// detections.
func (p *Pipeline) SetEnabled(on bool) {
	if p.enabled.Swap(on) != on {
		diagf("detection enabled=%v", on)
	}
}

// Enabled reports whether detection is on.
func (p *Pipeline) Enabled() bool {
	return p.enabled.Load()
}

// NeuralDisabled reports whether the neural path is unavailable.
func (p *Pipeline) NeuralDisabled() bool {
	return p.neural == nil || p.neural.Guard.Disabled()
}

// Process builds the canvas for rec, runs the enabled detectors and maps
// every candidate through the canvas transform. Only ctx cancellation and
// canvas errors are returned; a failing neural engine just disables that
// path.
func (p *Pipeline) Process(ctx context.Context, rec *l2pings.PingRecord) (Frame, error) {
	f := Frame{ID: uuid.New(), Time: p.clock.Now(), NeuralDisabled: p.NeuralDisabled()}
	if rec == nil {
		return f, errors.New("nil ping record")
	}
	f.PingID = rec.PingID
	f.Detections = []sonar.Detection{}
	if !p.Enabled() {
		return f, nil
	}

	c, err := l3canvas.Build(rec, p.cfg.Statistical.CanvasSize, p.cfg.Statistical.BlurSigma)
	if err != nil {
		return f, fmt.Errorf("ping %d: %w", rec.PingID, err)
	}
	f.Canvas = c
	f.Transform = c.Transform.String()
	mapper := c.Mapper(rec)

	if p.cfg.StatisticalEnabled {
		res := l4detect.DetectCanvas(c, p.cfg.Statistical)
		f.Mean, f.Std = res.Mean, res.Std
		f.Detections = p.appendMapped(f.Detections, c, mapper, res.Candidates, sonar.SourceStatistical)
	} else {
		f.Mean, f.Std = l3canvas.Stats(c.Img)
	}

	if p.neural != nil && !p.neural.Guard.Disabled() {
		cands, err := p.neural.Detect(ctx, c.Img)
		switch {
		case err == nil:
			f.Detections = p.appendMapped(f.Detections, c, mapper, cands, sonar.SourceNeural)
		case ctx.Err() != nil:
			return f, ctx.Err()
		default:
			diagf("ping %d: neural path off: %v", rec.PingID, err)
		}
		f.NeuralDisabled = p.neural.Guard.Disabled()
	}
	tracef("ping %d: %d detections (mean=%.1f std=%.1f)", rec.PingID, len(f.Detections), f.Mean, f.Std)
	return f, nil
}

func (p *Pipeline) appendMapped(out []sonar.Detection, c *l3canvas.Canvas, m *geom.Mapper, cands []l4detect.Candidate, source string) []sonar.Detection {
	bounds := image.Rect(0, 0, c.Width(), c.Height())
	for _, cand := range cands {
		box := cand.Box.Intersect(bounds)
		if box.Empty() {
			continue
		}
		wb, err := m.MapBox(box)
		if err != nil {
			opsf("map %v: %v", box, err)
			continue
		}
		out = append(out, sonar.Detection{
			X:          wb.X,
			Y:          wb.Y,
			Width:      wb.Width,
			Height:     wb.Height,
			Confidence: sonar.ClampConfidence(cand.Confidence),
			Source:     source,
			ClassID:    cand.ClassID,
			Box:        box,
		})
	}
	return out
}

// Run processes pings from src until it is closed or ctx ends, handing each
// frame to every sink in order.
func (p *Pipeline) Run(ctx context.Context, src Source, sinks ...Sink) error {
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, network.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		f, err := p.Process(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			opsf("%v", err)
			continue
		}
		for _, s := range sinks {
			s.HandleFrame(rec, f)
		}
	}
}
