// Package app runs the capture, detection and gesture tracking loop and fans
// emitted transitions out to sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/notify"
)

// DefaultMaxCaptureFailures is used when Config.MaxCaptureFailures is unset.
const DefaultMaxCaptureFailures = 30

var (
	// ErrRunning is returned by Start when the loop is already running.
	ErrRunning = errors.New("pipeline is already running")
	// ErrCaptureFailed ends the loop after too many consecutive failed reads.
	ErrCaptureFailed = errors.New("capture failed")
)

// Config holds the parts the pipeline is assembled from.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	Adapter  *detector.Adapter
	Tracker  *gesture.Tracker
	Motion   capture.MotionConfig
	Sinks    []notify.Sink
	Log      logs.Log

	// MaxCaptureFailures is how many consecutive failed reads end the loop.
	MaxCaptureFailures int
	// Enabled is the initial detection state.
	Enabled bool
	// KeepFrames keeps a JPEG of the latest processed frame for LatestJPEG.
	KeepFrames bool
}

// Stats counts what the loop has done since Start.
type Stats struct {
	Frames    uint64 `json:"frames"`
	Skipped   uint64 `json:"skipped"`
	Malformed uint64 `json:"malformed"`
	Emitted   uint64 `json:"emitted"`
	Failures  uint64 `json:"capture_failures"`
}

// Status is a snapshot of the pipeline for status displays.
type Status struct {
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
	Idle    bool   `json:"idle"`
	FPS     int    `json:"fps"`
	Current string `json:"current"`
	Stats   Stats  `json:"stats"`

	Last *gesture.Transition `json:"-"`
}

// App is the gesture pipeline. One goroutine owns the camera, the detector
// and the tracker; everything else only reads snapshots.
type App struct {
	cfg Config
	log logs.Log

	mu      sync.RWMutex
	sinks   []notify.Sink
	enabled bool
	reset   bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	stats   Stats
	idle    bool

	frameMu sync.RWMutex
	jpeg    []byte
	jpegSeq uint64
}

// New validates cfg and returns an App that is not yet running.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Camera == nil:
		return nil, errors.New("app: camera is required")
	case cfg.Detector == nil:
		return nil, errors.New("app: detector is required")
	case cfg.Adapter == nil:
		return nil, errors.New("app: adapter is required")
	case cfg.Tracker == nil:
		return nil, errors.New("app: tracker is required")
	case cfg.Log == nil:
		return nil, errors.New("app: log is required")
	}
	if err := cfg.Motion.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if cfg.MaxCaptureFailures <= 0 {
		cfg.MaxCaptureFailures = DefaultMaxCaptureFailures
	}

	a := &App{
		cfg:     cfg,
		log:     cfg.Log,
		sinks:   append([]notify.Sink(nil), cfg.Sinks...),
		enabled: cfg.Enabled,
	}
	return a, nil
}

// AddSink registers another receiver of transitions. Safe while running.
func (a *App) AddSink(s notify.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// SetEnabled turns detection on or off. Turning it off forgets the last
// gesture, so the first gesture after re-enabling is always emitted. The
// tracker is reset by the next ProcessHands call, not here, so a frame in
// flight cannot refill it.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	if changed && !enabled {
		a.reset = true
	}
	a.mu.Unlock()

	if changed {
		a.log.Infof("Gesture detection %s", onOff(enabled))
	}
}

// Enabled reports whether detection is on.
func (a *App) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera and starts the loop. The loop runs until ctx is
// cancelled, Stop is called or the camera fails MaxCaptureFailures times in
// a row.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.done != nil {
		select {
		case <-a.done:
		default:
			return ErrRunning
		}
	}

	if err := a.cfg.Camera.Open(); err != nil {
		return fmt.Errorf("app: open camera: %w", err)
	}

	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.err = nil
	a.stats = Stats{}
	a.idle = false

	go a.run(ctx, a.done)

	a.log.Infof("Detection pipeline started at %d FPS", a.cfg.Camera.FPS())
	return nil
}

// Stop ends the loop, waits for it to exit and releases the camera and the
// detector.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if err := a.cfg.Camera.Close(); err != nil {
		a.log.Errorf("Error closing camera: %v", err)
	}
	if err := a.cfg.Detector.Close(); err != nil {
		a.log.Errorf("Error closing detector: %v", err)
	}
	a.log.Infof("Detection pipeline stopped")
}

// Done is closed when the loop exits. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Err returns why the loop ended: nil after Stop or cancellation, an error
// wrapping ErrCaptureFailed when the camera gave out.
func (a *App) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Tracker returns the gesture tracker.
func (a *App) Tracker() *gesture.Tracker {
	return a.cfg.Tracker
}

// Status returns a snapshot of the pipeline.
func (a *App) Status() Status {
	a.mu.RLock()
	st := Status{
		Enabled: a.enabled,
		Idle:    a.idle,
		Stats:   a.stats,
	}
	if a.done != nil {
		select {
		case <-a.done:
		default:
			st.Running = true
		}
	}
	a.mu.RUnlock()

	st.FPS = a.cfg.Camera.FPS()
	if res, ok := a.cfg.Tracker.Current(); ok {
		st.Current = res.Payload.Name()
	} else {
		st.Current = gesture.LabelUnknown.String()
	}
	if last, ok := a.cfg.Tracker.Last(); ok {
		st.Last = &last
	}
	return st
}

// LatestJPEG returns the most recent processed frame and a sequence number
// that changes whenever the frame does. It is empty unless KeepFrames is set.
func (a *App) LatestJPEG() ([]byte, uint64) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.jpeg, a.jpegSeq
}

// ProcessHands runs one frame of detector output through the adapter, the
// tracker and the sinks. It returns the emitted transition, or nil when the
// gesture did not change. Malformed detector output is returned as a
// *detector.MalformedInputError and leaves the tracker untouched. Frames
// that arrive while detection is disabled are counted as skipped.
func (a *App) ProcessHands(ctx context.Context, hands []detector.Hand) (*gesture.Transition, error) {
	a.mu.Lock()
	enabled, reset := a.enabled, a.reset
	if enabled {
		a.reset = false
	}
	if !enabled {
		a.stats.Skipped++
	}
	a.mu.Unlock()
	if !enabled {
		return nil, nil
	}
	if reset {
		a.cfg.Tracker.Reset()
	}

	frame, err := a.cfg.Adapter.Adapt(hands)
	if err != nil {
		a.count(func(s *Stats) { s.Malformed++ })
		return nil, err
	}

	tr, err := a.cfg.Tracker.OnFrame(frame)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, nil
	}

	a.count(func(s *Stats) { s.Emitted++ })
	a.log.Infof("Gesture %s (%s)", tr.Payload.Name(), tr.Payload)
	a.fanOut(ctx, tr)
	return tr, nil
}

func (a *App) fanOut(ctx context.Context, tr *gesture.Transition) {
	a.mu.RLock()
	sinks := a.sinks
	a.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Send(ctx, tr); err != nil && ctx.Err() == nil {
			a.log.Warnf("Sink failed for %s: %v", tr.Payload, err)
		}
	}
}

func (a *App) count(fn func(*Stats)) {
	a.mu.Lock()
	fn(&a.stats)
	a.mu.Unlock()
}

func (a *App) setIdle(idle bool) {
	a.mu.Lock()
	a.idle = idle
	a.mu.Unlock()
}

func (a *App) finish(done chan struct{}, err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
	close(done)
}

func (a *App) keepFrame(jpeg []byte) {
	a.frameMu.Lock()
	a.jpeg = jpeg
	a.jpegSeq++
	a.frameMu.Unlock()
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
