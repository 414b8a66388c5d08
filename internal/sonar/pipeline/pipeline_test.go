package pipeline

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/l5neural"
	"github.com/banshee-data/sonar.report/internal/sonar/network"
	"github.com/banshee-data/sonar.report/internal/timeutil"
)

type stubEngine struct {
	tensor l5neural.Tensor
	panic  bool
	calls  int
}

func (s *stubEngine) Infer(ctx context.Context, img image.Image) (l5neural.Tensor, error) {
	s.calls++
	if s.panic {
		panic("bad model")
	}
	return s.tensor, nil
}

// oneBox is a box-first tensor holding a single 60x60 box centred at
// (320, 200) of the model input.
func oneBox() l5neural.Tensor {
	return l5neural.Tensor{Shape: []int{1, 5, 1}, Data: []float32{320, 200, 60, 60, 0.9}}
}

func newPipeline(t *testing.T, engine l5neural.Engine) *Pipeline {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	p, err := New(ConfigFromTuning(config.EmptyTuningConfig()), engine, clock)
	require.NoError(t, err)
	return p
}

func TestProcess_StatisticalTargetInWorldSpace(t *testing.T) {
	p := newPipeline(t, nil)
	rec := l2pings.Synthesize(l2pings.DefaultSimConfig(), 7)

	f, err := p.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), f.PingID)
	assert.True(t, f.NeuralDisabled, "no engine configured")
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), f.Time)
	assert.Equal(t, "500x256[transpose,flip_y,resize(640x640)]", f.Transform)
	require.Len(t, f.Detections, 1)

	d := f.Detections[0]
	assert.Equal(t, sonar.SourceStatistical, d.Source)
	assert.Equal(t, -1, d.ClassID)
	assert.InDelta(t, 0.0, d.X, 0.3, "target sits on the centre beam")
	assert.InDelta(t, 6.0, d.Y, 0.4, "target sits at 0.6 of the 10 m range")
	assert.Greater(t, d.Width, 0.0)
	assert.Greater(t, d.Height, 0.0)
	assert.GreaterOrEqual(t, d.Confidence, 0.0)
	assert.LessOrEqual(t, d.Confidence, 1.0)
	assert.True(t, d.Box.In(image.Rect(0, 0, 640, 640)))
}

func TestProcess_FramesAreIndependent(t *testing.T) {
	p := newPipeline(t, nil)
	rec := l2pings.Synthesize(l2pings.DefaultSimConfig(), 3)
	a, err := p.Process(context.Background(), rec)
	require.NoError(t, err)
	b, err := p.Process(context.Background(), rec)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	if diff := cmp.Diff(a.Detections, b.Detections, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("same ping gave different detections (-first +second):\n%s", diff)
	}
}

func TestProcess_DisabledClearsDetections(t *testing.T) {
	p := newPipeline(t, nil)
	rec := l2pings.Synthesize(l2pings.DefaultSimConfig(), 1)

	p.SetEnabled(false)
	assert.False(t, p.Enabled())
	f, err := p.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.NotNil(t, f.Detections)
	assert.Empty(t, f.Detections)
	assert.Nil(t, f.Canvas)

	p.SetEnabled(true)
	f, err = p.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Len(t, f.Detections, 1)
}

func TestProcess_NeuralDetections(t *testing.T) {
	eng := &stubEngine{tensor: oneBox()}
	p := newPipeline(t, eng)
	assert.False(t, p.NeuralDisabled())

	f, err := p.Process(context.Background(), l2pings.Synthesize(l2pings.DefaultSimConfig(), 1))
	require.NoError(t, err)
	assert.False(t, f.NeuralDisabled)

	var neural []sonar.Detection
	for _, d := range f.Detections {
		if d.Source == sonar.SourceNeural {
			neural = append(neural, d)
		}
	}
	require.Len(t, neural, 1)
	assert.Equal(t, image.Rect(290, 170, 350, 230), neural[0].Box)
	assert.Equal(t, 0, neural[0].ClassID)
	assert.InDelta(t, 0.9, neural[0].Confidence, 1e-6)
	assert.Greater(t, neural[0].Y, 0.0)
}

func TestProcess_EnginePanicDisablesNeuralOnly(t *testing.T) {
	eng := &stubEngine{panic: true}
	p := newPipeline(t, eng)
	rec := l2pings.Synthesize(l2pings.DefaultSimConfig(), 1)

	f, err := p.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, f.NeuralDisabled)
	require.Len(t, f.Detections, 1, "statistical path still runs")
	assert.Equal(t, sonar.SourceStatistical, f.Detections[0].Source)

	f, err = p.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, f.NeuralDisabled)
	assert.Equal(t, 1, eng.calls, "disabled engine is not called again")
}

func TestProcess_StatisticalOff(t *testing.T) {
	cfg := ConfigFromTuning(config.EmptyTuningConfig())
	cfg.StatisticalEnabled = false
	p, err := New(cfg, nil, nil)
	require.NoError(t, err)
	f, err := p.Process(context.Background(), l2pings.Synthesize(l2pings.DefaultSimConfig(), 1))
	require.NoError(t, err)
	assert.Empty(t, f.Detections)
	assert.Greater(t, f.Std, 0.0)
}

func TestProcess_Errors(t *testing.T) {
	p := newPipeline(t, nil)
	_, err := p.Process(context.Background(), nil)
	assert.Error(t, err)
	_, err = p.Process(context.Background(), &l2pings.PingRecord{PingID: 1})
	assert.Error(t, err)

	cfg := ConfigFromTuning(config.EmptyTuningConfig())
	cfg.Statistical.CanvasSize = 0
	_, err = New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestRun_DeliversFramesUntilClosed(t *testing.T) {
	p := newPipeline(t, nil)
	q := network.NewLatest[*l2pings.PingRecord]()
	frames := make(chan Frame, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), q, SinkFunc(func(rec *l2pings.PingRecord, f Frame) {
			frames <- f
		}))
	}()

	q.Put(l2pings.Synthesize(l2pings.DefaultSimConfig(), 11))
	select {
	case f := <-frames:
		assert.Equal(t, uint32(11), f.PingID)
	case <-time.After(5 * time.Second):
		t.Fatal("no frame delivered")
	}
	q.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on close")
	}
}

func TestConfigFromTuning(t *testing.T) {
	cfg := ConfigFromTuning(config.MustLoadDefaultConfig())
	assert.True(t, cfg.StatisticalEnabled)
	assert.True(t, cfg.NeuralEnabled)
	assert.True(t, cfg.DetectionEnabled)
	assert.Equal(t, 640, cfg.Statistical.CanvasSize)
	assert.Equal(t, l5neural.LayoutBoxFirst, cfg.Neural.Layout)
}
