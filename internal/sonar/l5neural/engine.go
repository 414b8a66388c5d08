package l5neural

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/banshee-data/sonar.report/internal/sonar/l3canvas"
	"github.com/banshee-data/sonar.report/internal/sonar/l4detect"
)

// ErrEngineDisabled is returned once inference has failed in this session.
var ErrEngineDisabled = errors.New("neural engine disabled")

// Engine runs a detector model on a letterboxed square image.
type Engine interface {
	Infer(ctx context.Context, img image.Image) (Tensor, error)
}

// Guard wraps an Engine. The first error or panic from the engine disables
// it for the rest of the session; every later call returns
// ErrEngineDisabled. Context cancellation does not count as a failure.
type Guard struct {
	engine Engine

	mu     sync.Mutex
	reason error
}

// NewGuard wraps e.
func NewGuard(e Engine) *Guard {
	return &Guard{engine: e}
}

// Infer calls the engine unless the guard has tripped.
func (g *Guard) Infer(ctx context.Context, img image.Image) (t Tensor, err error) {
	if g.Disabled() {
		return Tensor{}, ErrEngineDisabled
	}
	defer func() {
		if r := recover(); r != nil {
			t, err = Tensor{}, fmt.Errorf("inference panic: %v", r)
			g.trip(err)
		}
	}()
	t, err = g.engine.Infer(ctx, img)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return Tensor{}, err
		}
		g.trip(err)
		return Tensor{}, err
	}
	return t, nil
}

func (g *Guard) trip(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reason == nil {
		g.reason = err
		opsf("disabling neural detection for this session: %v", err)
	}
}

// Disabled reports whether the guard has tripped.
func (g *Guard) Disabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason != nil
}

// Reason returns the error that tripped the guard, or nil.
func (g *Guard) Reason() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason
}

// Detector letterboxes a canvas, runs the guarded engine and postprocesses
// the tensor. Candidates come back in canvas pixels.
type Detector struct {
	Guard  *Guard
	Config Config
}

// NewDetector validates cfg and wraps e in a Guard.
func NewDetector(e Engine, cfg Config) (*Detector, error) {
	if e == nil {
		return nil, errors.New("nil engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid neural config: %w", err)
	}
	return &Detector{Guard: NewGuard(e), Config: cfg}, nil
}

// Detect runs the neural path on img. It returns ErrEngineDisabled (wrapped
// or bare) once the engine has failed.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]l4detect.Candidate, error) {
	b := img.Bounds()
	input, lb := l3canvas.Letterbox(img, d.Config.LetterboxSize, d.Config.LetterboxPad)
	t, err := d.Guard.Infer(ctx, input)
	if err != nil {
		return nil, err
	}
	return Postprocess(t, d.Config.Layout, b.Dx(), b.Dy(), lb, d.Config), nil
}
