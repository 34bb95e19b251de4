package detector

import "fmt"

// Adapter turns raw detector output into a Frame in a fixed coordinate space.
// Width and Height are the capture dimensions used for pixel output.
type Adapter struct {
	Space  Space
	Width  int
	Height int
}

// NewAdapter validates the space and dimensions and returns an Adapter.
func NewAdapter(space Space, width, height int) (*Adapter, error) {
	if !space.Valid() {
		return nil, fmt.Errorf("adapter: unknown coordinate space %d", int(space))
	}
	if space == SpacePixel && (width <= 0 || height <= 0) {
		return nil, fmt.Errorf("adapter: pixel space needs positive dimensions, got %dx%d", width, height)
	}
	return &Adapter{Space: space, Width: width, Height: height}, nil
}

// Adapt converts the first detected hand into a Frame. It returns nil, nil
// when no hand was detected and a *MalformedInputError when the hand does
// not have exactly NumLandmarks points. Additional hands are ignored.
func (a *Adapter) Adapt(hands []Hand) (*Frame, error) {
	if len(hands) == 0 {
		return nil, nil
	}

	hand := hands[0]
	if len(hand.Points) != NumLandmarks {
		return nil, &MalformedInputError{Got: len(hand.Points)}
	}

	points := make([]Point2D, NumLandmarks)
	for i, p := range hand.Points {
		points[i] = Point2D{X: p.X, Y: p.Y}
	}

	f, err := NewFrame(points, SpaceFractional, 0, 0)
	if err != nil {
		return nil, err
	}
	if a.Space == SpacePixel {
		return f.Rescale(a.Width, a.Height), nil
	}
	return f, nil
}
