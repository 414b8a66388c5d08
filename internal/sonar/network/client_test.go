package network

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/timeutil"
)

func pingFrame(t *testing.T, id uint32) []byte {
	t.Helper()
	cfg := l2pings.DefaultSimConfig()
	cfg.Beams, cfg.Ranges = 16, 20
	cfg.Targets = nil
	b, err := l2pings.Encode(l2pings.Synthesize(cfg, id))
	require.NoError(t, err)
	return b
}

func testConfig() ClientConfig {
	cfg := DefaultClientConfig("127.0.0.1:52100")
	cfg.PollTimeout = 5 * time.Millisecond
	cfg.ShutdownWait = time.Second
	return cfg
}

// startClient runs c in the background and returns a channel with Run's
// result.
func startClient(t *testing.T, c *Client) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- c.Run(context.Background()) }()
	t.Cleanup(func() { c.Close() })
	return errc
}

func waitState(t *testing.T, c *Client, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == s }, 2*time.Second, time.Millisecond,
		"state stuck at %v, want %v", c.State(), s)
}

func drainEvents(c *Client) []State {
	var out []State
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev.State)
		default:
			return out
		}
	}
}

func TestClient_DecodesPingsAcrossChunks(t *testing.T) {
	frame := pingFrame(t, 42)
	mid := len(frame) / 2
	conn := NewMockConn(frame[:mid], frame[mid:])
	c, err := NewClient(testConfig(), NewMockDialer(conn), nil)
	require.NoError(t, err)
	startClient(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := c.Pings().Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), rec.PingID)
	assert.Equal(t, 16, rec.Beams)
	assert.Equal(t, uint64(1), c.Stats().Decoder.Pings)
	assert.False(t, conn.Deadline().IsZero(), "reads are bounded by a deadline")
}

func TestClient_FireSentOnConnectAndAfterPing(t *testing.T) {
	conn := NewMockConn()
	c, err := NewClient(testConfig(), NewMockDialer(conn), nil)
	require.NoError(t, err)
	require.NoError(t, c.SetFire(l1wire.DefaultFireCommand()))
	startClient(t, c)

	require.Eventually(t, func() bool { return len(conn.Writes()) >= 1 }, 2*time.Second, time.Millisecond)
	conn.Push(pingFrame(t, 1))
	require.Eventually(t, func() bool { return len(conn.Writes()) >= 2 }, 2*time.Second, time.Millisecond)

	for _, w := range conn.Writes() {
		h, err := l1wire.ParseHeader(w)
		require.NoError(t, err)
		assert.Equal(t, l1wire.MsgSimpleFire, h.MsgID)
		assert.Len(t, w, l1wire.FIRE_MESSAGE_SIZE)
	}
}

func TestClient_TimeoutThenDataCyclesConnection(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	first, second := NewMockConn(), NewMockConn()
	dialer := NewMockDialer(first, second)
	c, err := NewClient(testConfig(), dialer, clock)
	require.NoError(t, err)
	startClient(t, c)

	waitState(t, c, StateConnected)
	clock.Advance(4 * time.Second)
	waitState(t, c, StateTimeout)

	first.Push(pingFrame(t, 1))
	waitState(t, c, StateConnected)
	assert.True(t, first.IsClosed(), "old socket closed")
	assert.Equal(t, 2, dialer.Dials())
	assert.Contains(t, clock.Sleeps(), 500*time.Millisecond)
	assert.Equal(t, uint64(1), c.Stats().Timeouts)
	assert.Equal(t, uint64(1), c.Stats().Reconnects)
	assert.Zero(t, c.Stats().Decoder.Pings, "data that ends a timeout is discarded")

	assert.Equal(t, []State{
		StateConnecting, StateConnected, StateTimeout,
		StateReconnecting, StateConnecting, StateConnected,
	}, drainEvents(c))
}

func TestClient_ReadErrorReconnects(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	first, second := NewMockConn(), NewMockConn(pingFrame(t, 9))
	first.FailNext(io.EOF)
	dialer := NewMockDialer(first, second)
	c, err := NewClient(testConfig(), dialer, clock)
	require.NoError(t, err)
	startClient(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := c.Pings().Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), rec.PingID)
	assert.True(t, first.IsClosed())
	assert.Equal(t, 2, dialer.Dials())
}

func TestClient_DialFailureRetries(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	dialer := NewMockDialer()
	c, err := NewClient(testConfig(), dialer, clock)
	require.NoError(t, err)
	startClient(t, c)

	require.Eventually(t, func() bool { return dialer.Dials() >= 3 }, 2*time.Second, time.Millisecond)
	assert.True(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
}

func TestClient_CloseIsBoundedWait(t *testing.T) {
	conn := NewMockConn()
	conn.BlockReads = true
	cfg := testConfig()
	cfg.ShutdownWait = 20 * time.Millisecond
	c, err := NewClient(cfg, NewMockDialer(conn), nil)
	require.NoError(t, err)
	errc := startClient(t, c)
	waitState(t, c, StateConnected)
	require.Eventually(t, func() bool { return !conn.Deadline().IsZero() }, time.Second, time.Millisecond)

	start := time.Now()
	assert.False(t, c.Close(), "wedged reader is not joined")
	assert.Less(t, time.Since(start), time.Second)

	conn.Close()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the socket closed")
	}
	assert.True(t, c.Close())
}

func TestClient_ContextCancel(t *testing.T) {
	c, err := NewClient(testConfig(), NewMockDialer(NewMockConn()), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	waitState(t, c, StateConnected)
	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
	assert.Error(t, c.Run(context.Background()), "Run is single use")
}

func TestClient_SendAfterClose(t *testing.T) {
	c, err := NewClient(testConfig(), NewMockDialer(), nil)
	require.NoError(t, err)
	assert.True(t, c.Close())
	assert.ErrorIs(t, c.Send([]byte{1}), ErrClosed)
}

func TestClientConfigFromTuning(t *testing.T) {
	cfg := ClientConfigFromTuning(config.MustLoadDefaultConfig(), "10.0.0.2:52100")
	assert.Equal(t, 2*time.Second, cfg.PollTimeout)
	assert.Equal(t, 3*time.Second, cfg.TimeoutAfter)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.ShutdownWait)
	assert.Equal(t, l1wire.ResyncDropAll, cfg.Framer.Resync)
	assert.Equal(t, uint32(16<<20), cfg.Framer.MaxPayload)
	assert.NoError(t, cfg.Validate())

	ctl := ClientConfigFromTuning(config.MustLoadDefaultConfig(), "10.0.0.2:52103")
	assert.Equal(t, 20*time.Millisecond, ctl.PollTimeout)
}

func TestClientConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
	}{
		{"no address", func(c *ClientConfig) { c.Addr = "" }},
		{"zero poll", func(c *ClientConfig) { c.PollTimeout = 0 }},
		{"timeout shorter than poll", func(c *ClientConfig) { c.TimeoutAfter = time.Millisecond }},
		{"negative delay", func(c *ClientConfig) { c.ReconnectDelay = -1 }},
		{"zero buffer", func(c *ClientConfig) { c.ReadBuffer = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig("h:1")
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	_, err := NewClient(DefaultClientConfig("h:1"), nil, nil)
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "timeout", StateTimeout.String())
	assert.Equal(t, "State(99)", State(99).String())
}

func TestClient_DeadlineErrorReconnects(t *testing.T) {
	clock := timeutil.NewMockClock(time.Now())
	broken := NewMockConn(pingFrame(t, 1))
	broken.DeadlineErr = errors.New("bad file descriptor")
	dialer := NewMockDialer(broken, NewMockConn(pingFrame(t, 2)))
	c, err := NewClient(testConfig(), dialer, clock)
	require.NoError(t, err)
	startClient(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := c.Pings().Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), rec.PingID, "nothing is read from a socket without a deadline")
	assert.True(t, broken.IsClosed())
	assert.Equal(t, 2, dialer.Dials())
	assert.Equal(t, uint64(1), c.Stats().Reconnects)
}

func TestClient_QueuedPingIsACopy(t *testing.T) {
	c, err := NewClient(testConfig(), NewMockDialer(NewMockConn(pingFrame(t, 5))), nil)
	require.NoError(t, err)
	startClient(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := c.Pings().Next(ctx)
	require.NoError(t, err)
	require.True(t, c.Close())

	latest := c.decoder.Latest()
	require.NotNil(t, latest)
	assert.NotSame(t, latest, rec)
	assert.Equal(t, latest.Intensity, rec.Intensity)
	rec.Intensity[0] ^= 0xff
	rec.Bearings[0]++
	assert.NotEqual(t, latest.Intensity[0], rec.Intensity[0], "intensity is not shared")
	assert.NotEqual(t, latest.Bearings[0], rec.Bearings[0], "bearings are not shared")
}

func TestFireCommandFromTuning(t *testing.T) {
	assert.Equal(t, l1wire.DefaultFireCommand(), FireCommandFromTuning(config.MustLoadDefaultConfig()))

	tuning := config.EmptyTuningConfig()
	rng, salt, mode := 30.0, 35.0, 2
	tuning.FireRange, tuning.FireSalinity, tuning.FireMasterMode = &rng, &salt, &mode
	cmd := FireCommandFromTuning(tuning)
	assert.Equal(t, 30.0, cmd.Range)
	assert.Equal(t, 35.0, cmd.Salinity)
	assert.Equal(t, uint8(2), cmd.MasterMode)
	assert.NoError(t, cmd.Validate())
}

func TestClient_FireReportsCurrentCommand(t *testing.T) {
	c, err := NewClient(testConfig(), NewMockDialer(), nil)
	require.NoError(t, err)
	_, ok := c.Fire()
	assert.False(t, ok)

	cmd := l1wire.DefaultFireCommand()
	cmd.Range = 25
	require.NoError(t, c.SetFire(cmd))
	got, ok := c.Fire()
	require.True(t, ok)
	assert.Equal(t, cmd, got)

	cmd.Range = -1
	assert.Error(t, c.SetFire(cmd))
	got, _ = c.Fire()
	assert.Equal(t, 25.0, got.Range, "an invalid command leaves the old one in place")
}
