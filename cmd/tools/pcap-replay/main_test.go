package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/sonar/network"
	"github.com/banshee-data/sonar.report/internal/sonar/pipeline"
)

func TestReplayer_SplitStream(t *testing.T) {
	var stream []byte
	for id := uint32(1); id <= 2; id++ {
		b, err := l2pings.Encode(l2pings.Synthesize(l2pings.DefaultSimConfig(), id))
		require.NoError(t, err)
		stream = append(stream, b...)
	}

	var frames []pipeline.Frame
	sink := pipeline.SinkFunc(func(rec *l2pings.PingRecord, f pipeline.Frame) { frames = append(frames, f) })
	var out bytes.Buffer
	r, err := newReplayer(context.Background(), config.DefaultTuningConfig(), nil, &out, sink)
	require.NoError(t, err)

	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < len(stream); i += 1400 {
		end := min(i+1400, len(stream))
		r.handle(t0.Add(time.Duration(i)*time.Microsecond), stream[i:end])
	}

	require.Len(t, frames, 2)
	assert.Equal(t, uint32(1), frames[0].PingID)
	assert.Equal(t, uint32(2), frames[1].PingID)
	assert.True(t, frames[1].Time.After(t0), "frame time follows the capture")
	assert.NotEmpty(t, frames[0].Detections)
	assert.Equal(t, 2, r.pings)
	assert.Zero(t, r.errors)
	assert.Contains(t, out.String(), "ping=1 beams=256 ranges=500")
	assert.Contains(t, out.String(), "statistical")

	summary := r.summary(network.ReplayStats{Packets: 3})
	assert.True(t, strings.HasPrefix(summary, "packets=3 "), summary)
	assert.Contains(t, summary, "frames=2 flushes=0")
}

func TestReplayer_QuietStillCounts(t *testing.T) {
	b, err := l2pings.Encode(l2pings.Synthesize(l2pings.DefaultSimConfig(), 5))
	require.NoError(t, err)
	r, err := newReplayer(context.Background(), config.DefaultTuningConfig(), nil, nil)
	require.NoError(t, err)
	r.handle(time.Unix(100, 0), b)
	assert.Equal(t, 1, r.pings)
	assert.Positive(t, r.detections)
}
