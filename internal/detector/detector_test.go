package detector

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

const epsilon = 1e-9

func pointsOf(n int) []Point2D {
	points := make([]Point2D, n)
	for i := range points {
		points[i] = Point2D{X: float64(i) / 100, Y: float64(i) / 50}
	}
	return points
}

func TestNewFrame(t *testing.T) {
	t.Run("accepts exactly 21 points", func(t *testing.T) {
		f, err := NewFrame(pointsOf(NumLandmarks), SpaceFractional, 0, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Space() != SpaceFractional {
			t.Errorf("expected fractional space, got %v", f.Space())
		}
		if got := f.Point(IndexTip); got != (Point2D{X: 0.08, Y: 0.16}) {
			t.Errorf("index tip = %+v", got)
		}
	})

	for _, n := range []int{0, 20, 22} {
		n := n
		t.Run("rejects malformed landmark sets", func(t *testing.T) {
			_, err := NewFrame(pointsOf(n), SpaceFractional, 0, 0)
			var malformed *MalformedInputError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedInputError for %d points, got %v", n, err)
			}
			if malformed.Got != n {
				t.Errorf("Got = %d, want %d", malformed.Got, n)
			}
		})
	}

	t.Run("pixel frame needs dimensions", func(t *testing.T) {
		if _, err := NewFrame(pointsOf(NumLandmarks), SpacePixel, 0, 240); err == nil {
			t.Error("expected error for zero width")
		}
	})

	t.Run("unknown space is rejected", func(t *testing.T) {
		if _, err := NewFrame(pointsOf(NumLandmarks), Space(9), 0, 0); err == nil {
			t.Error("expected error for unknown space")
		}
	})
}

func TestParseSpace(t *testing.T) {
	tests := []struct {
		in      string
		want    Space
		wantErr bool
	}{
		{in: "fractional", want: SpaceFractional},
		{in: "PIXEL", want: SpacePixel},
		{in: "", want: SpaceFractional},
		{in: "metres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpace(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSpace(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSpace(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(Point2D{X: 0, Y: 0}, Point2D{X: 3, Y: 4}); math.Abs(d-5) > epsilon {
		t.Errorf("expected 5, got %f", d)
	}
	if d := Distance(Point2D{X: 0.2, Y: 0.7}, Point2D{X: 0.2, Y: 0.7}); d != 0 {
		t.Errorf("expected 0 for identical points, got %f", d)
	}
	a, b := Point2D{X: 0.1, Y: 0.9}, Point2D{X: 0.4, Y: 0.5}
	if Distance(a, b) != Distance(b, a) {
		t.Error("distance should be symmetric")
	}
}

func TestPalmHeight(t *testing.T) {
	hand := OpenHandLandmarks()
	f, err := (&Adapter{Space: SpaceFractional}).Adapt([]Hand{hand})
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if h := PalmHeight(f); math.Abs(h-0.14) > 1e-6 {
		t.Errorf("expected palm height 0.14, got %f", h)
	}
}

func TestFrame_Rescale(t *testing.T) {
	t.Run("maps fractional coordinates to pixels", func(t *testing.T) {
		points := pointsOf(NumLandmarks)
		points[Wrist] = Point2D{X: 0.5, Y: 0.25}
		points[ThumbTip] = Point2D{X: 0.999, Y: 0.0}
		f, _ := NewFrame(points, SpaceFractional, 0, 0)

		px := f.Rescale(240, 240)
		if px.Space() != SpacePixel {
			t.Fatalf("expected pixel space, got %v", px.Space())
		}
		if w, h := px.Size(); w != 240 || h != 240 {
			t.Errorf("size = %dx%d", w, h)
		}
		if got := px.Point(Wrist); got != (Point2D{X: 120, Y: 60}) {
			t.Errorf("wrist = %+v, want {120 60}", got)
		}
		if got := px.Point(ThumbTip); got != (Point2D{X: 239, Y: 0}) {
			t.Errorf("thumb tip = %+v, want {239 0}", got)
		}
	})

	t.Run("output stays within image bounds", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		sizes := [][2]int{{1, 1}, {240, 240}, {640, 480}, {1920, 1080}}
		for iter := 0; iter < 200; iter++ {
			points := make([]Point2D, NumLandmarks)
			for i := range points {
				// Include values slightly outside [0,1), which detectors do report.
				points[i] = Point2D{X: rng.Float64()*1.2 - 0.1, Y: rng.Float64()*1.2 - 0.1}
			}
			points[0] = Point2D{X: 1.0, Y: 1.0}
			f, _ := NewFrame(points, SpaceFractional, 0, 0)

			for _, size := range sizes {
				w, h := size[0], size[1]
				px := f.Rescale(w, h)
				for i, p := range px.Points() {
					if p.X < 0 || p.X > float64(w-1) || p.Y < 0 || p.Y > float64(h-1) {
						t.Fatalf("point %d = %+v outside %dx%d", i, p, w, h)
					}
					if p.X != math.Trunc(p.X) || p.Y != math.Trunc(p.Y) {
						t.Fatalf("point %d = %+v is not integral", i, p)
					}
				}
			}
		}
	})

	t.Run("pixel frames rescale from their own dimensions", func(t *testing.T) {
		f, _ := NewFrame(pointsOf(NumLandmarks), SpaceFractional, 0, 0)
		once := f.Rescale(256, 128)
		twice := once.Rescale(512, 256)
		for i := 0; i < NumLandmarks; i++ {
			want := Point2D{X: once.Point(i).X * 2, Y: once.Point(i).Y * 2}
			if twice.Point(i) != want {
				t.Errorf("point %d = %+v, want %+v", i, twice.Point(i), want)
			}
		}
	})

	t.Run("pixel frames keep every coordinate at the same size", func(t *testing.T) {
		for _, dim := range []int{49, 240, 480, 640} {
			for x := 0; x < dim; x++ {
				points := make([]Point2D, NumLandmarks)
				for i := range points {
					points[i] = Point2D{X: float64(x), Y: float64(dim - 1 - x)}
				}
				f, err := NewFrame(points, SpacePixel, dim, dim)
				if err != nil {
					t.Fatalf("NewFrame() error = %v", err)
				}
				got := f.PixelInts(dim, dim)
				if got[0] != x || got[1] != dim-1-x {
					t.Fatalf("dim %d: (%d, %d) became (%d, %d)", dim, x, dim-1-x, got[0], got[1])
				}
			}
		}
	})

	t.Run("pixel frames halve with integer division", func(t *testing.T) {
		points := make([]Point2D, NumLandmarks)
		for i := range points {
			points[i] = Point2D{X: float64(2*i + 1), Y: float64(479 - i)}
		}
		f, _ := NewFrame(points, SpacePixel, 480, 480)
		half := f.Rescale(240, 240)
		for i := range points {
			want := Point2D{X: float64(i), Y: float64((479 - i) / 2)}
			if half.Point(i) != want {
				t.Errorf("point %d = %+v, want %+v", i, half.Point(i), want)
			}
		}
	})

	t.Run("invalid dimensions return nil", func(t *testing.T) {
		f, _ := NewFrame(pointsOf(NumLandmarks), SpaceFractional, 0, 0)
		if f.Rescale(0, 10) != nil {
			t.Error("expected nil for zero width")
		}
		var nilFrame *Frame
		if nilFrame.Rescale(10, 10) != nil {
			t.Error("expected nil for nil frame")
		}
	})
}

func TestFrame_PixelInts(t *testing.T) {
	points := pointsOf(NumLandmarks)
	points[Wrist] = Point2D{X: 0.5, Y: 0.5}
	f, _ := NewFrame(points, SpaceFractional, 0, 0)

	ints := f.PixelInts(240, 240)
	if len(ints) != 2*NumLandmarks {
		t.Fatalf("expected %d values, got %d", 2*NumLandmarks, len(ints))
	}
	if ints[0] != 120 || ints[1] != 120 {
		t.Errorf("wrist = (%d, %d), want (120, 120)", ints[0], ints[1])
	}
}

func TestAdapter_Adapt(t *testing.T) {
	fractional := &Adapter{Space: SpaceFractional}

	t.Run("no hands is absent", func(t *testing.T) {
		f, err := fractional.Adapt(nil)
		if err != nil || f != nil {
			t.Errorf("expected nil frame and nil error, got %v, %v", f, err)
		}
	})

	t.Run("only the first hand is used", func(t *testing.T) {
		first := ThumbIndexTouchLandmarks()
		f, err := fractional.Adapt([]Hand{first, OpenHandLandmarks()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.Point(ThumbTip); got.X != first.Points[ThumbTip].X || got.Y != first.Points[ThumbTip].Y {
			t.Errorf("thumb tip = %+v, want first hand's", got)
		}
	})

	t.Run("malformed hand fails fast", func(t *testing.T) {
		hand := OpenHandLandmarks()
		hand.Points = hand.Points[:15]
		_, err := fractional.Adapt([]Hand{hand})
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedInputError, got %v", err)
		}
	})

	t.Run("pixel adapter rescales", func(t *testing.T) {
		a, err := NewAdapter(SpacePixel, 240, 240)
		if err != nil {
			t.Fatalf("NewAdapter: %v", err)
		}
		f, err := a.Adapt([]Hand{OpenHandLandmarks()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.Space() != SpacePixel {
			t.Fatalf("expected pixel frame, got %v", f.Space())
		}
		if got := f.Point(Wrist); got != (Point2D{X: 120, Y: 192}) {
			t.Errorf("wrist = %+v, want {120 192}", got)
		}
	})

	t.Run("pixel adapter needs dimensions", func(t *testing.T) {
		if _, err := NewAdapter(SpacePixel, 0, 0); err == nil {
			t.Error("expected error")
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]Hand{FistLandmarks(), OpenHandLandmarks()})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
	})

	t.Run("drains the queue before repeating", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]Hand{OpenHandLandmarks()})
		mock.Enqueue(nil, []Hand{FistLandmarks(), FistLandmarks()})

		first, _ := mock.Detect(nil)
		second, _ := mock.Detect(nil)
		third, _ := mock.Detect(nil)

		if len(first) != 0 || len(second) != 2 || len(third) != 1 {
			t.Errorf("got %d, %d, %d hands", len(first), len(second), len(third))
		}
		if mock.Calls() != 3 {
			t.Errorf("expected 3 calls, got %d", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestFixtures(t *testing.T) {
	t.Run("every fixture has a full landmark set", func(t *testing.T) {
		for _, hand := range []Hand{OpenHandLandmarks(), ThumbIndexTouchLandmarks(), ThumbMiddleTouchLandmarks(), FistLandmarks()} {
			if len(hand.Points) != NumLandmarks {
				t.Errorf("expected %d points, got %d", NumLandmarks, len(hand.Points))
			}
			if hand.Handedness != "Right" || hand.Score < 0.9 {
				t.Errorf("unexpected handedness/score %s %f", hand.Handedness, hand.Score)
			}
		}
	})

	t.Run("open hand fingers are ordered left to right", func(t *testing.T) {
		p := OpenHandLandmarks().Points
		if p[PinkyMCP].X >= p[RingMCP].X || p[RingMCP].X >= p[MiddleMCP].X || p[MiddleMCP].X >= p[IndexMCP].X {
			t.Error("expected pinky, ring, middle, index from left to right")
		}
	})

	t.Run("fixtures do not share backing arrays", func(t *testing.T) {
		a := OpenHandLandmarks()
		a.Points[ThumbTip].X = 0
		if OpenHandLandmarks().Points[ThumbTip].X == 0 {
			t.Error("mutating one fixture leaked into the next")
		}
	})
}
