package notify

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// maxDatagram matches the receiver board's buffer.
const maxDatagram = 1600

// PacketConn is the subset of net.PacketConn used by Listener.
type PacketConn interface {
	ReadFrom(b []byte) (n int, addr net.Addr, err error)
	WriteTo(b []byte, addr net.Addr) (n int, err error)
	SetReadDeadline(t time.Time) error
	LocalAddr() net.Addr
	Close() error
}

// Handler is called for every new gesture.
type Handler func(msg Message, from net.Addr)

// ListenerStats counts received datagrams.
type ListenerStats struct {
	Received   uint64
	Duplicates uint64
	Invalid    uint64
}

// Listener receives gesture datagrams. A datagram equal to the previous one
// is ignored. The stop command is answered with StopReply and ends Serve.
type Listener struct {
	conn    PacketConn
	log     logs.Log
	handler Handler

	mu    sync.Mutex
	prev  string
	stats ListenerStats
}

// Listen binds a UDP socket on addr, e.g. ":12345".
func Listen(log logs.Log, addr string, handler Handler) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return NewListener(log, conn, handler), nil
}

// NewListener serves datagrams from conn.
func NewListener(log logs.Log, conn PacketConn, handler Handler) *Listener {
	return &Listener{conn: conn, log: log, handler: handler}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve reads datagrams until ctx is cancelled or a stop command arrives.
// A stop command returns nil; cancellation returns ctx.Err().
func (l *Listener) Serve(ctx context.Context) error {
	defer l.conn.Close()
	l.log.Infof("Listening for gestures on %v", l.conn.LocalAddr())

	buf := make([]byte, maxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			l.log.Warnf("UDP read error: %v", err)
			continue
		}

		if stop := l.handle(buf[:n], from); stop {
			if _, err := l.conn.WriteTo([]byte(StopReply), from); err != nil {
				l.log.Warnf("Failed to answer stop from %v: %v", from, err)
			}
			l.log.Infof("Stop received from %v", from)
			return nil
		}
	}
}

func (l *Listener) handle(b []byte, from net.Addr) (stop bool) {
	cmd := strings.TrimRight(string(b), "\r\n")

	l.mu.Lock()
	l.stats.Received++
	if strings.EqualFold(cmd, StopCommand) {
		l.mu.Unlock()
		return true
	}
	if strings.EqualFold(cmd, l.prev) {
		l.stats.Duplicates++
		l.mu.Unlock()
		return false
	}
	l.prev = cmd
	l.mu.Unlock()

	msg, err := Decode([]byte(cmd))
	if err != nil {
		l.mu.Lock()
		l.stats.Invalid++
		l.mu.Unlock()
		l.log.Warnf("Ignoring datagram from %v: %v", from, err)
		return false
	}
	if l.handler != nil {
		l.handler(msg, from)
	}
	return false
}

// Stats returns the datagram counters.
func (l *Listener) Stats() ListenerStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
