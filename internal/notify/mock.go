package notify

import (
	"errors"
	"net"
	"sync"
	"time"
)

// MockDatagram is a datagram queued on a MockPacketConn.
type MockDatagram struct {
	Data []byte
	Addr net.Addr
}

// MockPacketConn implements PacketConn for tests. Reads past the queued
// datagrams time out.
type MockPacketConn struct {
	mu        sync.Mutex
	datagrams []MockDatagram
	next      int
	written   []MockDatagram
	readErr   error
	closed    bool
	local     net.Addr
}

// NewMockPacketConn returns a conn that yields datagrams in order.
func NewMockPacketConn(datagrams ...MockDatagram) *MockPacketConn {
	return &MockPacketConn{
		datagrams: datagrams,
		local:     &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345},
	}
}

// Push queues more datagrams.
func (m *MockPacketConn) Push(datagrams ...MockDatagram) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datagrams = append(m.datagrams, datagrams...)
}

// SetReadError makes the next read fail with err.
func (m *MockPacketConn) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *MockPacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, nil, net.ErrClosed
	}
	if m.readErr != nil {
		err := m.readErr
		m.readErr = nil
		return 0, nil, err
	}
	if m.next >= len(m.datagrams) {
		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		m.mu.Lock()
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutError{}}
	}
	d := m.datagrams[m.next]
	m.next++
	return copy(b, d.Data), d.Addr, nil
}

func (m *MockPacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, net.ErrClosed
	}
	m.written = append(m.written, MockDatagram{Data: append([]byte(nil), b...), Addr: addr})
	return len(b), nil
}

// Written returns the datagrams sent with WriteTo.
func (m *MockPacketConn) Written() []MockDatagram {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockDatagram(nil), m.written...)
}

func (m *MockPacketConn) SetReadDeadline(time.Time) error { return nil }

func (m *MockPacketConn) LocalAddr() net.Addr { return m.local }

func (m *MockPacketConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockPacketConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ErrMockWrite is returned by a failing MockWriter.
var ErrMockWrite = errors.New("mock write failure")

// MockWriter records datagrams written by a UDPSink.
type MockWriter struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

// SetFail makes subsequent writes fail.
func (m *MockWriter) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *MockWriter) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, ErrMockWrite
	}
	m.sent = append(m.sent, append([]byte(nil), b...))
	return len(b), nil
}

func (m *MockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns the written datagrams as strings.
func (m *MockWriter) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, b := range m.sent {
		out[i] = string(b)
	}
	return out
}
