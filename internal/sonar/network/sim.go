package network

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
)

// SimDialer stands in for a sonar head. Each connection answers every fire
// command written to it with one synthesized ping, Interval later. The
// first target drifts across the fan from ping to ping.
type SimDialer struct {
	Config   l2pings.SimConfig
	Interval time.Duration
}

func (d *SimDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &simConn{
		cfg:      d.Config,
		interval: d.Interval,
		fired:    make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}, nil
}

type simConn struct {
	cfg      l2pings.SimConfig
	interval time.Duration
	fired    chan struct{}
	closed   chan struct{}

	mu        sync.Mutex
	pending   []byte
	deadline  time.Time
	next      uint32
	closeOnce sync.Once
}

func (c *simConn) Write(b []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, ErrClosed
	default:
	}
	if h, err := l1wire.ParseHeader(b); err == nil && h.MsgID == l1wire.MsgSimpleFire {
		select {
		case c.fired <- struct{}{}:
		default:
		}
	}
	return len(b), nil
}

func (c *simConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		n := copy(b, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()
		return n, nil
	}
	deadline := c.deadline
	c.mu.Unlock()

	var expire <-chan time.Time
	if !deadline.IsZero() {
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()
		expire = t.C
	}
	select {
	case <-c.closed:
		return 0, ErrClosed
	case <-expire:
		return 0, &timeoutError{}
	case <-c.fired:
	}

	if c.interval > 0 {
		select {
		case <-c.closed:
			return 0, ErrClosed
		case <-time.After(c.interval):
		}
	}
	frame, err := c.ping()
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := copy(b, frame)
	c.pending = frame[n:]
	return n, nil
}

func (c *simConn) ping() ([]byte, error) {
	c.mu.Lock()
	c.next++
	id := c.next
	c.mu.Unlock()

	cfg := c.cfg
	cfg.Seed = c.cfg.Seed + int64(id)
	if len(cfg.Targets) > 0 {
		cfg.Targets = append([]l2pings.SimTarget(nil), c.cfg.Targets...)
		cfg.Targets[0].BeamFrac = 0.5 + 0.25*math.Sin(float64(id)/20)
	}
	return l2pings.Encode(l2pings.Synthesize(cfg, id))
}

func (c *simConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *simConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
