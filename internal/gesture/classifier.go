// Package gesture classifies static hand gestures from landmark frames and
// tracks transitions between them.
package gesture

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// Label is the class of a recognized gesture.
type Label int

const (
	// LabelUnknown is used when no hand is present or the hand is ambiguous.
	LabelUnknown Label = iota
	// LabelOpenHand means no fingertip touches the thumb tip.
	LabelOpenHand
	// LabelThumbFingerTouch means at least one fingertip touches the thumb
	// tip. Which fingers is carried by the Payload.
	LabelThumbFingerTouch
)

// String returns the wire name of the label.
func (l Label) String() string {
	switch l {
	case LabelOpenHand:
		return "OPEN_HAND"
	case LabelThumbFingerTouch:
		return "THUMB_FINGER_TOUCH"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Fingertip touch bits, in payload order.
const (
	TouchIndex  Mask = 1 << 3
	TouchMiddle Mask = 1 << 2
	TouchRing   Mask = 1 << 1
	TouchPinky  Mask = 1 << 0
)

// Mask is the 4-bit set of fingers touching the thumb.
type Mask uint8

// Payload renders the mask as a 4 character binary string, index first.
func (m Mask) Payload() Payload {
	return Payload(fmt.Sprintf("%04b", uint8(m)&0x0f))
}

// fingertips pairs each non-thumb fingertip with its bit, in payload order.
var fingertips = [...]struct {
	landmark int
	bit      Mask
}{
	{detector.IndexTip, TouchIndex},
	{detector.MiddleTip, TouchMiddle},
	{detector.RingTip, TouchRing},
	{detector.PinkyTip, TouchPinky},
}

// Strict open hand ratios, relative to palm height.
const (
	strictReachRatio  = 1.25
	strictSpreadRatio = 0.25
)

// DefaultTouchThreshold is the fractional thumb to fingertip distance under
// which a finger counts as touching.
const DefaultTouchThreshold = 0.15

// ErrSpaceMismatch is returned when a frame's coordinate space differs from
// the one the classifier threshold was calibrated for.
var ErrSpaceMismatch = errors.New("frame coordinate space does not match classifier")

// ConfigurationError reports an invalid or inconsistent classifier setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Config holds the classifier settings. TouchThreshold is expressed in the
// units of Space.
type Config struct {
	TouchThreshold float64        `json:"touch_threshold"`
	Space          detector.Space `json:"coordinate_space"`
	StrictOpenHand bool           `json:"strict_open_hand"`
}

// DefaultConfig returns the fractional-space configuration with strict open
// hand detection off.
func DefaultConfig() Config {
	return Config{
		TouchThreshold: DefaultTouchThreshold,
		Space:          detector.SpaceFractional,
	}
}

// Validate rejects thresholds that cannot be meant for the configured space.
// Fractional thresholds live in (0, 1); a pixel threshold below one pixel is
// almost certainly a fractional value paired with pixel frames.
func (c Config) Validate() error {
	if math.IsNaN(c.TouchThreshold) || math.IsInf(c.TouchThreshold, 0) || c.TouchThreshold <= 0 {
		return &ConfigurationError{Field: "touch_threshold", Reason: fmt.Sprintf("must be a positive number, got %v", c.TouchThreshold)}
	}

	switch c.Space {
	case detector.SpaceFractional:
		if c.TouchThreshold >= 1 {
			return &ConfigurationError{
				Field:  "touch_threshold",
				Reason: fmt.Sprintf("%v is not a fractional distance; use coordinate_space \"pixel\" for pixel thresholds", c.TouchThreshold),
			}
		}
	case detector.SpacePixel:
		if c.TouchThreshold < 1 {
			return &ConfigurationError{
				Field:  "touch_threshold",
				Reason: fmt.Sprintf("%v is below one pixel; use coordinate_space \"fractional\" for fractional thresholds", c.TouchThreshold),
			}
		}
	default:
		return &ConfigurationError{Field: "coordinate_space", Reason: fmt.Sprintf("unknown space %d", int(c.Space))}
	}

	return nil
}

// Result is the outcome of classifying one frame.
type Result struct {
	Label   Label
	Payload Payload
	Mask    Mask
}

// Classifier maps landmark frames to gestures. It holds no state and is safe
// for concurrent use.
type Classifier struct {
	cfg Config
}

// NewClassifier validates cfg and returns a Classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Config returns the classifier's configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Classify decides the gesture shown by f.
//
// A finger touches when its tip is closer than TouchThreshold to the thumb
// tip. No touches is OPEN_HAND with payload "0000"; any touch is
// THUMB_FINGER_TOUCH with the touch mask as payload. Overlapping touches are
// not split into separate labels. With StrictOpenHand, a no-touch hand whose
// fingers are not clearly extended and spread is UNKNOWN.
func (c *Classifier) Classify(f *detector.Frame) (Result, error) {
	if f == nil {
		return Result{}, errors.New("classify: nil frame")
	}
	if f.Space() != c.cfg.Space {
		return Result{}, fmt.Errorf("classify: %w: frame is %s, classifier is %s", ErrSpaceMismatch, f.Space(), c.cfg.Space)
	}

	thumb := f.Point(detector.ThumbTip)

	var mask Mask
	for _, tip := range fingertips {
		if detector.Distance(thumb, f.Point(tip.landmark)) < c.cfg.TouchThreshold {
			mask |= tip.bit
		}
	}

	if mask != 0 {
		return Result{Label: LabelThumbFingerTouch, Payload: mask.Payload(), Mask: mask}, nil
	}

	if c.cfg.StrictOpenHand && !isSpreadOpen(f) {
		return Result{Label: LabelUnknown, Payload: PayloadUnknown}, nil
	}

	return Result{Label: LabelOpenHand, Payload: PayloadOpen}, nil
}

// isSpreadOpen reports whether every non-thumb fingertip reaches well past
// the palm and neighbouring fingertips are apart.
func isSpreadOpen(f *detector.Frame) bool {
	palm := detector.PalmHeight(f)
	wrist := f.Point(detector.Wrist)

	for i, tip := range fingertips {
		p := f.Point(tip.landmark)
		if detector.Distance(wrist, p) <= strictReachRatio*palm {
			return false
		}
		if i > 0 {
			prev := f.Point(fingertips[i-1].landmark)
			if detector.Distance(prev, p) <= strictSpreadRatio*palm {
				return false
			}
		}
	}
	return true
}
