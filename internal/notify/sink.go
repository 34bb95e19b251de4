package notify

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/gesture"
)

const (
	// DefaultTarget is where the sender delivers gestures by default.
	DefaultTarget = "127.0.0.1:12345"
	// BoardTarget is the receiver board on its USB gadget network.
	BoardTarget = "192.168.7.2:12345"
)

// Sink receives emitted transitions.
type Sink interface {
	Send(ctx context.Context, tr *gesture.Transition) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, tr *gesture.Transition) error

// Send calls fn.
func (fn SinkFunc) Send(ctx context.Context, tr *gesture.Transition) error {
	return fn(ctx, tr)
}

// Writer is the part of a connected UDP socket the sink needs.
type Writer interface {
	Write(b []byte) (int, error)
	Close() error
}

// UDPSinkConfig configures a UDPSink.
type UDPSinkConfig struct {
	Target string `json:"target"`
	Format Format `json:"format"`
	// Width and Height scale landmarks for FormatLandmarks.
	Width  int `json:"width"`
	Height int `json:"height"`
	// LogInterval limits how often dropped datagrams are reported.
	LogInterval time.Duration `json:"-"`
}

// DefaultUDPSinkConfig returns the loopback payload-only configuration.
func DefaultUDPSinkConfig() UDPSinkConfig {
	return UDPSinkConfig{
		Target:      DefaultTarget,
		Format:      FormatPayload,
		Width:       240,
		Height:      240,
		LogInterval: 10 * time.Second,
	}
}

// SinkStats counts datagrams.
type SinkStats struct {
	Sent    uint64
	Dropped uint64
}

// UDPSink sends each transition as a single datagram. Delivery is not
// confirmed; failed writes are counted and logged at most once per
// LogInterval.
type UDPSink struct {
	log  logs.Log
	cfg  UDPSinkConfig
	conn Writer

	mu       sync.Mutex
	stats    SinkStats
	pending  int
	lastErr  error
	lastWarn time.Time
}

// NewUDPSink dials cfg.Target.
func NewUDPSink(log logs.Log, cfg UDPSinkConfig) (*UDPSink, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %q: %w", cfg.Target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Target, err)
	}
	log.Infof("Sending gestures to %s (%s format)", cfg.Target, cfg.Format)
	return NewUDPSinkWithConn(log, cfg, conn), nil
}

// NewUDPSinkWithConn wraps an existing connection.
func NewUDPSinkWithConn(log logs.Log, cfg UDPSinkConfig, conn Writer) *UDPSink {
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = DefaultUDPSinkConfig().LogInterval
	}
	return &UDPSink{log: log, cfg: cfg, conn: conn}
}

// Send encodes and writes tr. Only encoding errors are returned; write
// failures are counted as drops.
func (s *UDPSink) Send(ctx context.Context, tr *gesture.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Encode(tr, s.cfg.Format, s.cfg.Width, s.cfg.Height)
	if err != nil {
		return err
	}

	_, werr := s.conn.Write(msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if werr == nil {
		s.stats.Sent++
		return nil
	}

	s.stats.Dropped++
	s.pending++
	s.lastErr = werr
	if now := time.Now(); now.Sub(s.lastWarn) >= s.cfg.LogInterval {
		s.log.Warnf("Dropped %d gesture datagrams to %s (latest: %v)", s.pending, s.cfg.Target, s.lastErr)
		s.pending = 0
		s.lastWarn = now
	}
	return nil
}

// Stats returns the datagram counters.
func (s *UDPSink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Target returns the destination address.
func (s *UDPSink) Target() string {
	return s.cfg.Target
}

// SendCommand writes a raw control command such as StopCommand.
func (s *UDPSink) SendCommand(cmd string) error {
	_, err := s.conn.Write([]byte(cmd))
	return err
}

// Close closes the connection.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}
