package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// GaussianBlurSize is the blur kernel applied before differencing.
	GaussianBlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as motion.
	DiffThreshold = 25
)

// MotionDetector compares consecutive frames by blurred grayscale
// differencing. Its threshold is the percentage of pixels that must change.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous one and by how
// much, in percent of pixels. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline frame. The detector can still be used and
// starts over with a new baseline.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold changes the threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// MotionConfig controls idle throttling of the capture loop.
type MotionConfig struct {
	Enabled bool `json:"enabled"`
	// Threshold is the percentage of changed pixels that counts as motion.
	Threshold float64 `json:"threshold"`
	// IdleFPS is the capture rate while nothing moves.
	IdleFPS int `json:"idle_fps"`
	// IdleAfter is the number of still frames before going idle.
	IdleAfter int `json:"idle_after"`
}

func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Enabled:   false,
		Threshold: 1.0,
		IdleFPS:   2,
		IdleAfter: 30,
	}
}

func (c MotionConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Threshold <= 0 || c.Threshold > 100 {
		return fmt.Errorf("motion threshold must be in (0, 100], got %v", c.Threshold)
	}
	if c.IdleFPS <= 0 {
		return fmt.Errorf("idle_fps must be positive, got %d", c.IdleFPS)
	}
	if c.IdleAfter <= 0 {
		return fmt.Errorf("idle_after must be positive, got %d", c.IdleAfter)
	}
	return nil
}

// MotionGate decides which frames are worth running the hand detector on.
// After IdleAfter still frames it goes idle: frames are skipped and the
// camera is slowed to IdleFPS until motion is seen again. A still hand
// keeps its last gesture, so skipping still frames loses no transitions.
type MotionGate struct {
	cfg      MotionConfig
	detector *MotionDetector
	still    int
	idle     bool
}

// NewMotionGate returns nil when motion gating is disabled. A nil gate lets
// every frame through.
func NewMotionGate(cfg MotionConfig) *MotionGate {
	if !cfg.Enabled {
		return nil
	}
	return &MotionGate{cfg: cfg, detector: NewMotionDetector(cfg.Threshold)}
}

// Observe feeds frame to the gate. process is false for frames that can be
// skipped; fps is the rate the camera should run at, given its active rate.
func (g *MotionGate) Observe(frame *gocv.Mat, activeFPS int) (process bool, fps int) {
	if g == nil {
		return true, activeFPS
	}

	moved, _ := g.detector.Detect(frame)
	if moved {
		g.still = 0
		g.idle = false
		return true, activeFPS
	}

	g.still++
	if g.still >= g.cfg.IdleAfter {
		g.idle = true
	}
	if g.idle {
		return false, g.cfg.IdleFPS
	}
	return true, activeFPS
}

// Idle reports whether the gate is currently skipping frames.
func (g *MotionGate) Idle() bool {
	return g != nil && g.idle
}

// Close releases the underlying detector.
func (g *MotionGate) Close() {
	if g != nil {
		g.detector.Close()
	}
}
