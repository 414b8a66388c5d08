package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/sonar.report/internal/config"
	"github.com/banshee-data/sonar.report/internal/sonar/l1wire"
	"github.com/banshee-data/sonar.report/internal/sonar/l2pings"
	"github.com/banshee-data/sonar.report/internal/timeutil"
)

// State is the connection state reported by Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateTimeout
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTimeout:
		return "timeout"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Event is a state change. Err is set when an error caused it.
type Event struct {
	State State
	Time  time.Time
	Err   error
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Addr string

	// PollTimeout bounds each Read so the loop can check for shutdown
	// and flush commands.
	PollTimeout time.Duration
	// TimeoutAfter is how long without data before entering StateTimeout.
	TimeoutAfter time.Duration
	// ReconnectDelay is slept between closing and redialling.
	ReconnectDelay time.Duration
	// ShutdownWait bounds how long Close waits for Run to return.
	ShutdownWait time.Duration

	Framer     l1wire.FramerConfig
	ReadBuffer int
}

// DefaultClientConfig returns the documented defaults for addr.
func DefaultClientConfig(addr string) ClientConfig {
	return ClientConfigFromTuning(config.EmptyTuningConfig(), addr)
}

// ClientConfigFromTuning builds a ClientConfig from a loaded TuningConfig.
// Addresses on CONTROL_PORT get the control poll timeout.
func ClientConfigFromTuning(cfg *config.TuningConfig, addr string) ClientConfig {
	poll := cfg.GetDataPollTimeout()
	if _, port, err := net.SplitHostPort(addr); err == nil {
		if p, err := strconv.Atoi(port); err == nil && p == CONTROL_PORT {
			poll = cfg.GetControlPollTimeout()
		}
	}
	resync, err := l1wire.ParseResyncPolicy(cfg.GetResyncPolicy())
	if err != nil {
		opsf("%v, using %v", err, resync)
	}
	return ClientConfig{
		Addr:           addr,
		PollTimeout:    poll,
		TimeoutAfter:   cfg.GetTimeoutAfter(),
		ReconnectDelay: cfg.GetReconnectDelay(),
		ShutdownWait:   cfg.GetShutdownWait(),
		Framer: l1wire.FramerConfig{
			Resync:     resync,
			MaxPayload: uint32(cfg.GetMaxPayloadBytes()),
		},
		ReadBuffer: 64 << 10,
	}
}

// FireCommandFromTuning builds the fire command the client keeps the head
// pinging with.
func FireCommandFromTuning(cfg *config.TuningConfig) l1wire.FireCommand {
	return l1wire.FireCommand{
		MasterMode:   uint8(cfg.GetFireMasterMode()),
		PingRate:     l1wire.PingRate(cfg.GetFirePingRate()),
		NetworkSpeed: uint8(cfg.GetFireNetworkSpeed()),
		Gamma:        uint8(cfg.GetFireGamma()),
		Range:        cfg.GetFireRange(),
		Gain:         cfg.GetFireGain(),
		SpeedOfSound: cfg.GetFireSpeedOfSound(),
		Salinity:     cfg.GetFireSalinity(),
		GainAssist:   cfg.GetFireGainAssist(),
		Use512Beams:  cfg.GetFireUse512Beams(),
	}
}

// Validate checks if the config is usable.
func (c ClientConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("empty address")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("PollTimeout must be positive, got %v", c.PollTimeout)
	}
	if c.TimeoutAfter < c.PollTimeout {
		return fmt.Errorf("TimeoutAfter %v is shorter than PollTimeout %v", c.TimeoutAfter, c.PollTimeout)
	}
	if c.ReconnectDelay < 0 || c.ShutdownWait < 0 {
		return errors.New("ReconnectDelay and ShutdownWait must be non-negative")
	}
	if c.ReadBuffer <= 0 {
		return fmt.Errorf("ReadBuffer must be positive, got %d", c.ReadBuffer)
	}
	return nil
}

// ClientStats is a snapshot of client counters.
type ClientStats struct {
	State               string               `json:"state"`
	Reconnects          uint64               `json:"reconnects"`
	Timeouts            uint64               `json:"timeouts"`
	CommandsSent        uint64               `json:"commands_sent"`
	CommandsOverwritten uint64               `json:"commands_overwritten"`
	PingsDropped        uint64               `json:"pings_dropped"`
	Framer              l1wire.FramerStats   `json:"framer"`
	Decoder             l2pings.DecoderStats `json:"decoder"`
}

// Client reads pings from a sonar head and writes commands to it.
type Client struct {
	cfg    ClientConfig
	dialer Dialer
	clock  timeutil.Clock

	framer  *l1wire.Framer
	decoder *l2pings.Decoder
	slot    CommandSlot
	pings   *Latest[*l2pings.PingRecord]
	events  chan Event

	fireMu  sync.Mutex
	fire    []byte
	fireCmd *l1wire.FireCommand

	state      atomic.Int32
	stop       atomic.Bool
	started    atomic.Bool
	done       chan struct{}
	reconnects atomic.Uint64
	timeouts   atomic.Uint64
	sent       atomic.Uint64

	// Owned by Run.
	conn     Conn
	lastData time.Time
}

// NewClient validates cfg and returns an idle Client. A nil clock uses the
// real one.
func NewClient(cfg ClientConfig, dialer Dialer, clock timeutil.Clock) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if dialer == nil {
		return nil, errors.New("nil dialer")
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Client{
		cfg:     cfg,
		dialer:  dialer,
		clock:   clock,
		framer:  l1wire.NewFramer(cfg.Framer),
		decoder: l2pings.NewDecoder(),
		pings:   NewLatest[*l2pings.PingRecord](),
		events:  make(chan Event, 32),
		done:    make(chan struct{}),
	}, nil
}

// Run dials the head and reads until Close is called or ctx ends. It may be
// called once.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("client already started")
	}
	defer close(c.done)
	defer c.pings.Close()
	defer c.setState(StateClosed, nil)
	defer c.disconnect()

	buf := make([]byte, c.cfg.ReadBuffer)
	for {
		if c.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.conn == nil {
			if err := c.connect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				opsf("connect %s: %v", c.cfg.Addr, err)
				c.clock.Sleep(c.cfg.ReconnectDelay)
			}
			continue
		}

		if cmd := c.slot.Take(); cmd != nil {
			if _, err := c.conn.Write(cmd); err != nil {
				c.reconnect(fmt.Errorf("write: %w", err))
				continue
			}
			c.sent.Add(1)
		}

		if err := c.conn.SetReadDeadline(c.clock.Now().Add(c.cfg.PollTimeout)); err != nil {
			c.reconnect(fmt.Errorf("set read deadline: %w", err))
			continue
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			if c.State() == StateTimeout {
				// The head's state is stale after a gap; start over on a
				// fresh socket rather than resuming this one.
				c.reconnect(nil)
				continue
			}
			c.lastData = c.clock.Now()
			c.framer.Feed(buf[:n], c.handleFrame)
		}
		switch {
		case err == nil && n == 0:
			c.checkTimeout()
		case err == nil:
		case isTimeout(err):
			c.checkTimeout()
		default:
			if c.stop.Load() || ctx.Err() != nil {
				continue
			}
			c.reconnect(fmt.Errorf("read: %w", err))
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	c.setState(StateConnecting, nil)
	conn, err := c.dialer.Dial(ctx, c.cfg.Addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.framer.Reset()
	c.lastData = c.clock.Now()
	c.setState(StateConnected, nil)
	diagf("connected to %s", c.cfg.Addr)
	if fire := c.fireFrame(); fire != nil {
		c.slot.Put(fire)
	}
	return nil
}

func (c *Client) disconnect() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// reconnect closes the socket and sleeps; the loop then redials.
func (c *Client) reconnect(cause error) {
	if cause != nil {
		opsf("reconnecting to %s: %v", c.cfg.Addr, cause)
	}
	c.setState(StateReconnecting, cause)
	c.reconnects.Add(1)
	c.disconnect()
	c.clock.Sleep(c.cfg.ReconnectDelay)
}

func (c *Client) checkTimeout() {
	if c.State() != StateConnected {
		return
	}
	if gap := c.clock.Since(c.lastData); gap >= c.cfg.TimeoutAfter {
		c.timeouts.Add(1)
		opsf("no data from %s for %v", c.cfg.Addr, gap)
		c.setState(StateTimeout, nil)
	}
}

func (c *Client) handleFrame(frame l1wire.RawFrame) {
	msg, err := c.decoder.Decode(frame)
	if err != nil {
		return
	}
	rec, ok := msg.(*l2pings.PingRecord)
	if !ok {
		return
	}
	// Re-fire after every ping; the fire doubles as the keep-alive.
	if fire := c.fireFrame(); fire != nil {
		c.slot.Put(fire)
	}
	// The decoder keeps rec as its latest; the consumer gets its own copy.
	if c.pings.Put(rec.Clone()) {
		tracef("ping %d replaced an unread ping", rec.PingID)
	}
}

func (c *Client) setState(s State, err error) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	select {
	case c.events <- Event{State: s, Time: c.clock.Now(), Err: err}:
	default:
		diagf("event channel full, dropped %v", s)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Events delivers state changes. Events are dropped if nobody reads them.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Pings returns the latest-wins queue of decoded pings.
func (c *Client) Pings() *Latest[*l2pings.PingRecord] {
	return c.pings
}

// Send queues cmd (a complete frame) for the next loop iteration,
// replacing any command still pending.
func (c *Client) Send(cmd []byte) error {
	if c.stop.Load() {
		return ErrClosed
	}
	if c.slot.Put(cmd) {
		tracef("command replaced a pending one")
	}
	return nil
}

// SetFire sets the fire command sent on connect and after every ping, and
// queues it now.
func (c *Client) SetFire(cmd l1wire.FireCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	frame := cmd.Encode()
	c.fireMu.Lock()
	c.fire = frame
	c.fireCmd = &cmd
	c.fireMu.Unlock()
	return c.Send(frame)
}

// Fire returns the fire command in use, and false if none was set.
func (c *Client) Fire() (l1wire.FireCommand, bool) {
	c.fireMu.Lock()
	defer c.fireMu.Unlock()
	if c.fireCmd == nil {
		return l1wire.FireCommand{}, false
	}
	return *c.fireCmd, true
}

func (c *Client) fireFrame() []byte {
	c.fireMu.Lock()
	defer c.fireMu.Unlock()
	return c.fire
}

// Close asks Run to stop and waits up to ShutdownWait. It reports whether
// Run had returned by then; false means the loop may still be winding down.
func (c *Client) Close() bool {
	c.stop.Store(true)
	if !c.started.Load() {
		c.pings.Close()
		return true
	}
	select {
	case <-c.done:
		return true
	case <-time.After(c.cfg.ShutdownWait):
		opsf("reader did not stop within %v", c.cfg.ShutdownWait)
		return false
	}
}

// Done is closed when Run returns.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Stats returns a snapshot of the counters.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		State:               c.State().String(),
		Reconnects:          c.reconnects.Load(),
		Timeouts:            c.timeouts.Load(),
		CommandsSent:        c.sent.Load(),
		CommandsOverwritten: c.slot.Overwritten(),
		PingsDropped:        c.pings.Dropped(),
		Framer:              c.framer.Stats(),
		Decoder:             c.decoder.Stats(),
	}
}

// LatestPing returns the most recent decoded ping. Only safe to call after
// Run has returned.
func (c *Client) LatestPing() *l2pings.PingRecord {
	return c.decoder.Latest()
}
