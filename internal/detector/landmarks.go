// Package detector provides the hand detector boundary and the landmark frame
// types consumed by gesture classification.
package detector

import (
	"fmt"
	"strings"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Space identifies the coordinate space a Frame is expressed in.
type Space int

const (
	// SpaceFractional holds coordinates as fractions of the image size, in [0,1).
	SpaceFractional Space = iota + 1
	// SpacePixel holds integral pixel coordinates in [0, dim-1].
	SpacePixel
)

// String returns the configuration name of the space.
func (s Space) String() string {
	switch s {
	case SpaceFractional:
		return "fractional"
	case SpacePixel:
		return "pixel"
	default:
		return fmt.Sprintf("Space(%d)", int(s))
	}
}

// Valid reports whether s is a known space.
func (s Space) Valid() bool {
	return s == SpaceFractional || s == SpacePixel
}

// ParseSpace parses "fractional" or "pixel" (case-insensitive).
func ParseSpace(name string) (Space, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fractional", "":
		return SpaceFractional, nil
	case "pixel":
		return SpacePixel, nil
	default:
		return 0, fmt.Errorf("unknown coordinate space %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Space) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown coordinate space %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Space) UnmarshalText(text []byte) error {
	parsed, err := ParseSpace(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Point2D is a single landmark position.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point3D is a landmark as reported by the detector. Z is relative depth and
// is ignored by classification.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand is one hand as reported by the detector: landmark observations in
// fractional image coordinates plus the handedness label and its confidence.
// Points is a slice because the detector is not trusted to return exactly
// NumLandmarks entries.
type Hand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// MalformedInputError is returned when a detected hand does not carry exactly
// NumLandmarks points.
type MalformedInputError struct {
	Got int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed landmark set: got %d points, want %d", e.Got, NumLandmarks)
}

// Frame is the 21 landmarks of a single hand in anatomical order, tagged with
// the coordinate space they are expressed in. A hand that was not detected is
// a nil *Frame, never an empty one.
type Frame struct {
	points [NumLandmarks]Point2D
	space  Space
	width  int
	height int
}

// NewFrame builds a Frame from exactly NumLandmarks points. Pixel frames must
// carry the image dimensions their coordinates refer to; they are ignored for
// fractional frames.
func NewFrame(points []Point2D, space Space, width, height int) (*Frame, error) {
	if len(points) != NumLandmarks {
		return nil, &MalformedInputError{Got: len(points)}
	}
	if !space.Valid() {
		return nil, fmt.Errorf("new frame: unknown coordinate space %d", int(space))
	}
	f := &Frame{space: space}
	if space == SpacePixel {
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("new frame: pixel frame needs positive dimensions, got %dx%d", width, height)
		}
		f.width, f.height = width, height
	}
	copy(f.points[:], points)
	return f, nil
}

// Point returns the landmark at index i.
func (f *Frame) Point(i int) Point2D {
	return f.points[i]
}

// Points returns a copy of all landmarks.
func (f *Frame) Points() [NumLandmarks]Point2D {
	return f.points
}

// Space returns the coordinate space of the frame.
func (f *Frame) Space() Space {
	return f.space
}

// Size returns the image dimensions of a pixel frame, or 0, 0 for a
// fractional one.
func (f *Frame) Size() (width, height int) {
	return f.width, f.height
}
