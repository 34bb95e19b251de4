package gesture

import (
	"fmt"
	"math"
	"strings"
)

// Payload is the wire code of a gesture: four '0'/'1' characters for the
// index, middle, ring and pinky fingers, or PayloadUnknown.
type Payload string

const (
	// PayloadOpen is the code of an open hand.
	PayloadOpen Payload = "0000"
	// PayloadUnknown is the sentinel code for an unknown gesture.
	PayloadUnknown Payload = "----"
)

// ParsePayload validates a received code.
func ParsePayload(s string) (Payload, error) {
	p := Payload(strings.TrimSpace(s))
	if p == PayloadUnknown {
		return p, nil
	}
	if _, ok := p.Mask(); !ok {
		return "", fmt.Errorf("invalid payload %q: want 4 binary digits", s)
	}
	return p, nil
}

// Mask decodes the payload into touch bits. ok is false for the unknown
// sentinel and malformed codes.
func (p Payload) Mask() (m Mask, ok bool) {
	if len(p) != 4 {
		return 0, false
	}
	for i := 0; i < 4; i++ {
		switch p[i] {
		case '1':
			m |= 1 << (3 - i)
		case '0':
		default:
			return 0, false
		}
	}
	return m, true
}

// Label returns the label the payload was emitted for.
func (p Payload) Label() Label {
	m, ok := p.Mask()
	switch {
	case !ok:
		return LabelUnknown
	case m == 0:
		return LabelOpenHand
	default:
		return LabelThumbFingerTouch
	}
}

var fingerNames = [...]struct {
	bit  Mask
	name string
}{
	{TouchIndex, "INDEX"},
	{TouchMiddle, "MIDDLE"},
	{TouchRing, "RING"},
	{TouchPinky, "PINKY"},
}

// Name spells out the gesture for humans: OPEN_HAND, THUMB_INDEX,
// THUMB_INDEX_MIDDLE and so on.
func (p Payload) Name() string {
	m, ok := p.Mask()
	if !ok {
		return LabelUnknown.String()
	}
	if m == 0 {
		return LabelOpenHand.String()
	}

	parts := []string{"THUMB"}
	for _, f := range fingerNames {
		if m&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "_")
}

// noteOffsets maps touch masks to semitones above A4. Masks without an entry
// do not play.
var noteOffsets = map[Mask]int{
	0:           0,
	TouchIndex:  2,
	TouchMiddle: 3,
	TouchRing:   5,
	TouchPinky:  7,

	TouchIndex | TouchMiddle: 8,
	TouchMiddle | TouchRing:  10,
	TouchRing | TouchPinky:   12,

	TouchIndex | TouchMiddle | TouchRing:  14,
	TouchMiddle | TouchRing | TouchPinky: 15,

	TouchIndex | TouchMiddle | TouchRing | TouchPinky: 17,
}

// A4 is the reference pitch in hertz.
const A4 = 440.0

// Note returns the semitone offset above A4 assigned to the payload.
func (p Payload) Note() (int, bool) {
	m, ok := p.Mask()
	if !ok {
		return 0, false
	}
	offset, ok := noteOffsets[m]
	return offset, ok
}

// NoteFrequency returns the equal-tempered frequency of the payload's note.
func (p Payload) NoteFrequency() (float64, bool) {
	offset, ok := p.Note()
	if !ok {
		return 0, false
	}
	return A4 * math.Pow(2, float64(offset)/12), true
}
