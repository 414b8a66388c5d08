package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// Ports the head listens on. The data port carries pings; the control port
// is polled with a much shorter timeout.
const (
	DATA_PORT    = 52100
	CONTROL_PORT = 52103
)

// ErrClosed is returned by Client methods after Close.
var ErrClosed = errors.New("sonar client closed")

// Conn is the byte stream to the head.
// This abstraction enables unit testing without a device attached.
type Conn interface {
	io.ReadWriteCloser

	// SetReadDeadline bounds the next Read. A Read that hits the deadline
	// returns an error whose Timeout() is true.
	SetReadDeadline(t time.Time) error
}

// Dialer opens Conns.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// RealDialer dials TCP.
type RealDialer struct {
	Timeout time.Duration
}

// NewRealDialer returns a TCP dialer with the given connect timeout.
func NewRealDialer(timeout time.Duration) *RealDialer {
	return &RealDialer{Timeout: timeout}
}

// Dial connects to addr over TCP.
func (d *RealDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	return conn, nil
}

// isTimeout reports whether err is a read deadline expiring.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// MockConn implements Conn for testing. Chunks queued with Push are returned
// by Read one at a time; an empty queue reads as a timeout.
type MockConn struct {
	mu       sync.Mutex
	chunks   [][]byte
	readErr  error
	written  [][]byte
	closed   bool
	deadline time.Time
	done     chan struct{}

	// BlockReads makes Read on an empty queue wait until Close, ignoring
	// the deadline, like a wedged socket.
	BlockReads bool
	// DeadlineErr is returned by SetReadDeadline when set.
	DeadlineErr error
}

// NewMockConn creates a MockConn with the given chunks queued.
func NewMockConn(chunks ...[]byte) *MockConn {
	m := &MockConn{done: make(chan struct{})}
	for _, c := range chunks {
		m.Push(c)
	}
	return m
}

// Push queues a chunk for Read.
func (m *MockConn) Push(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, append([]byte(nil), chunk...))
}

// FailNext makes the next Read return err.
func (m *MockConn) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Read returns the next queued chunk, splitting it when b is short.
func (m *MockConn) Read(b []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, net.ErrClosed
	}
	if m.readErr != nil {
		err := m.readErr
		m.readErr = nil
		m.mu.Unlock()
		return 0, err
	}
	if len(m.chunks) == 0 {
		block := m.BlockReads
		m.mu.Unlock()
		if block {
			<-m.done
			return 0, net.ErrClosed
		}
		time.Sleep(time.Millisecond)
		return 0, &timeoutError{}
	}
	defer m.mu.Unlock()
	n := copy(b, m.chunks[0])
	if n < len(m.chunks[0]) {
		m.chunks[0] = m.chunks[0][n:]
	} else {
		m.chunks = m.chunks[1:]
	}
	return n, nil
}

// Write records b.
func (m *MockConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	m.written = append(m.written, append([]byte(nil), b...))
	return len(b), nil
}

// SetReadDeadline records the deadline, or fails with DeadlineErr.
func (m *MockConn) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeadlineErr != nil {
		return m.DeadlineErr
	}
	m.deadline = t
	return nil
}

// Close marks the connection closed and releases blocked readers.
func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Writes returns a copy of everything written so far.
func (m *MockConn) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

// IsClosed reports whether Close was called.
func (m *MockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Deadline returns the last read deadline set.
func (m *MockConn) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}

// MockDialer hands out Conns in order and records each dial.
type MockDialer struct {
	mu    sync.Mutex
	conns []*MockConn
	addrs []string

	// Err is returned once the queued conns run out.
	Err error
}

// NewMockDialer creates a MockDialer that returns conns in order.
func NewMockDialer(conns ...*MockConn) *MockDialer {
	return &MockDialer{conns: conns}
}

// Dial returns the next queued conn.
func (d *MockDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addrs = append(d.addrs, addr)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.conns) == 0 {
		if d.Err != nil {
			return nil, d.Err
		}
		return nil, errors.New("mock dialer: no connections left")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

// Dials returns how many times Dial was called.
func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.addrs)
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
