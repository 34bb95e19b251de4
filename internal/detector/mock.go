package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns queued results in order, then repeats the configured hands.
type MockDetector struct {
	mu    sync.Mutex
	hands []Hand
	queue [][]Hand
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect once the queue is empty.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Enqueue appends per-frame results, consumed one per Detect call.
func (m *MockDetector) Enqueue(frames ...[]Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, frames...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next queued result, the configured hands, or the error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// newRightHand builds a right hand with a high score from fractional x, y pairs.
func newRightHand(points [NumLandmarks][2]float64) Hand {
	hand := Hand{
		Points:     make([]Point3D, NumLandmarks),
		Handedness: "Right",
		Score:      0.95,
	}
	for i, p := range points {
		hand.Points[i] = Point3D{X: p[0], Y: p[1]}
	}
	return hand
}

// openHandPoints is a right palm facing the camera with all fingers spread.
var openHandPoints = [NumLandmarks][2]float64{
	Wrist:     {0.50, 0.80},
	ThumbCMC:  {0.55, 0.75},
	ThumbMCP:  {0.62, 0.70},
	ThumbIP:   {0.68, 0.65},
	ThumbTip:  {0.73, 0.60},
	IndexMCP:  {0.55, 0.68},
	IndexPIP:  {0.57, 0.55},
	IndexDIP:  {0.58, 0.45},
	IndexTip:  {0.58, 0.35},
	MiddleMCP: {0.50, 0.66},
	MiddlePIP: {0.50, 0.52},
	MiddleDIP: {0.50, 0.40},
	MiddleTip: {0.50, 0.28},
	RingMCP:   {0.45, 0.68},
	RingPIP:   {0.43, 0.55},
	RingDIP:   {0.42, 0.45},
	RingTip:   {0.42, 0.35},
	PinkyMCP:  {0.40, 0.70},
	PinkyPIP:  {0.37, 0.60},
	PinkyDIP:  {0.35, 0.50},
	PinkyTip:  {0.34, 0.42},
}

// OpenHandLandmarks returns an open palm: no fingertip near the thumb tip and
// every finger extended and spread.
func OpenHandLandmarks() Hand {
	return newRightHand(openHandPoints)
}

// ThumbIndexTouchLandmarks returns a hand with the index tip bent onto the
// thumb tip while the other fingers stay extended.
func ThumbIndexTouchLandmarks() Hand {
	p := openHandPoints
	p[ThumbIP] = [2]float64{0.64, 0.60}
	p[ThumbTip] = [2]float64{0.66, 0.52}
	p[IndexDIP] = [2]float64{0.62, 0.46}
	p[IndexTip] = [2]float64{0.64, 0.50}
	return newRightHand(p)
}

// ThumbMiddleTouchLandmarks returns a hand with the middle tip bent onto the
// thumb tip while the other fingers stay extended.
func ThumbMiddleTouchLandmarks() Hand {
	p := openHandPoints
	p[ThumbIP] = [2]float64{0.64, 0.60}
	p[ThumbTip] = [2]float64{0.62, 0.53}
	p[MiddleDIP] = [2]float64{0.56, 0.46}
	p[MiddleTip] = [2]float64{0.60, 0.52}
	return newRightHand(p)
}

// FistLandmarks returns a thumbs-up fist: the thumb points up and the other
// fingers are curled into the palm, none of them near the thumb tip.
func FistLandmarks() Hand {
	return newRightHand([NumLandmarks][2]float64{
		Wrist:     {0.50, 0.80},
		ThumbCMC:  {0.55, 0.75},
		ThumbMCP:  {0.58, 0.65},
		ThumbIP:   {0.58, 0.50},
		ThumbTip:  {0.58, 0.35},
		IndexMCP:  {0.55, 0.70},
		IndexPIP:  {0.55, 0.68},
		IndexDIP:  {0.52, 0.70},
		IndexTip:  {0.50, 0.72},
		MiddleMCP: {0.50, 0.68},
		MiddlePIP: {0.50, 0.66},
		MiddleDIP: {0.47, 0.68},
		MiddleTip: {0.45, 0.70},
		RingMCP:   {0.45, 0.70},
		RingPIP:   {0.45, 0.68},
		RingDIP:   {0.42, 0.70},
		RingTip:   {0.40, 0.72},
		PinkyMCP:  {0.40, 0.72},
		PinkyPIP:  {0.40, 0.70},
		PinkyDIP:  {0.37, 0.72},
		PinkyTip:  {0.35, 0.74},
	})
}
