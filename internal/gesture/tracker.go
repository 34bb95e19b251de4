package gesture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Compare selects what counts as a change of gesture.
type Compare int

const (
	// CompareLabel emits only when the label changes, so moving from one
	// finger-thumb touch to another is not re-emitted.
	CompareLabel Compare = iota
	// ComparePayload emits whenever the payload changes.
	ComparePayload
)

// String returns the configuration name of the mode.
func (c Compare) String() string {
	if c == ComparePayload {
		return "payload"
	}
	return "label"
}

// MarshalText implements encoding.TextMarshaler.
func (c Compare) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compare) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "label", "":
		*c = CompareLabel
	case "payload":
		*c = ComparePayload
	default:
		return &ConfigurationError{Field: "compare", Reason: fmt.Sprintf("unknown mode %q", text)}
	}
	return nil
}

// TrackerConfig controls when the Tracker emits.
type TrackerConfig struct {
	Compare Compare `json:"compare"`
	// ForgetOnAbsent clears the last emitted gesture whenever a frame has no
	// hand, so showing the same gesture again after a gap emits again.
	ForgetOnAbsent bool `json:"forget_on_absent"`
}

// Transition is an emitted change of gesture.
type Transition struct {
	// Seq is the number of the frame that produced the transition, counting
	// every frame passed to OnFrame from 1.
	Seq      uint64
	Label    Label
	Payload  Payload
	Previous Label
	Frame    *detector.Frame
	At       time.Time
}

// Tracker turns per-frame classifications into transitions. It owns the
// last emitted gesture for the whole session. OnFrame is meant to be called
// from a single loop in frame order; the lock lets other goroutines observe
// the state.
type Tracker struct {
	classifier *Classifier
	cfg        TrackerConfig
	now        func() time.Time

	mu       sync.Mutex
	seq      uint64
	last     Transition
	emitted  bool
	absent   bool
	lastSeen Result
}

// NewTracker returns a Tracker with no prior emission.
func NewTracker(c *Classifier, cfg TrackerConfig) *Tracker {
	return &Tracker{
		classifier: c,
		cfg:        cfg,
		now:        time.Now,
	}
}

// OnFrame processes one frame. f is nil when no hand was detected. It returns
// the transition to emit, or nil when nothing changed. Absent frames and
// UNKNOWN classifications never emit.
func (t *Tracker) OnFrame(f *detector.Frame) (*Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++

	if f == nil {
		t.absent = true
		if t.cfg.ForgetOnAbsent {
			t.emitted = false
			t.last = Transition{}
		}
		return nil, nil
	}
	t.absent = false

	res, err := t.classifier.Classify(f)
	if err != nil {
		return nil, err
	}
	t.lastSeen = res

	if res.Label == LabelUnknown || !t.changed(res) {
		return nil, nil
	}

	tr := Transition{
		Seq:      t.seq,
		Label:    res.Label,
		Payload:  res.Payload,
		Previous: t.last.Label,
		Frame:    f,
		At:       t.now(),
	}
	t.last = tr
	t.emitted = true

	return &tr, nil
}

func (t *Tracker) changed(res Result) bool {
	if !t.emitted {
		return true
	}
	if t.cfg.Compare == ComparePayload {
		return res.Payload != t.last.Payload
	}
	return res.Label != t.last.Label
}

// Last returns the most recent transition, if any has been emitted since the
// tracker was created or reset.
func (t *Tracker) Last() (Transition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.emitted
}

// Current returns the classification of the latest frame, which may differ
// from the last emission. ok is false when the latest frame had no hand.
func (t *Tracker) Current() (res Result, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.absent || t.seq == 0 {
		return Result{Label: LabelUnknown, Payload: PayloadUnknown}, false
	}
	return t.lastSeen, true
}

// Frames returns how many frames have been passed to OnFrame.
func (t *Tracker) Frames() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Reset forgets the last emitted gesture.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = Transition{}
	t.emitted = false
}

// Config returns the tracker configuration.
func (t *Tracker) Config() TrackerConfig {
	return t.cfg
}

// Classifier returns the classifier used by the tracker.
func (t *Tracker) Classifier() *Classifier {
	return t.classifier
}
