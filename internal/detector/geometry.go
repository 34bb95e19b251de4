package detector

import "math"

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point2D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PalmHeight returns the wrist to middle finger MCP distance, the per-hand
// size reference used for scale-free comparisons.
func PalmHeight(f *Frame) float64 {
	return Distance(f.points[Wrist], f.points[MiddleMCP])
}

// Rescale maps the frame into pixel space for a width x height image.
// Each coordinate becomes min(floor(c*dim), dim-1), clamped below at 0.
// A pixel frame is scaled with integer arithmetic from its own dimensions,
// so rescaling to the same size returns the same coordinates. Rescale
// returns nil for non-positive dimensions.
func (f *Frame) Rescale(width, height int) *Frame {
	if f == nil || width <= 0 || height <= 0 {
		return nil
	}

	out := &Frame{space: SpacePixel, width: width, height: height}
	if f.space == SpacePixel {
		for i, p := range f.points {
			out.points[i] = Point2D{
				X: float64(scalePixel(p.X, f.width, width)),
				Y: float64(scalePixel(p.Y, f.height, height)),
			}
		}
		return out
	}
	for i, p := range f.points {
		out.points[i] = Point2D{
			X: float64(clampPixel(p.X, width)),
			Y: float64(clampPixel(p.Y, height)),
		}
	}
	return out
}

// Fractional returns the frame in fractional space. Fractional frames are
// returned as is.
func (f *Frame) Fractional() *Frame {
	if f == nil || f.space == SpaceFractional {
		return f
	}

	out := &Frame{space: SpaceFractional}
	w, h := float64(f.width), float64(f.height)
	for i, p := range f.points {
		out.points[i] = Point2D{X: p.X / w, Y: p.Y / h}
	}
	return out
}

// PixelInts returns the frame's landmarks as integer pixel pairs, x then y,
// for a width x height image.
func (f *Frame) PixelInts(width, height int) []int {
	px := f.Rescale(width, height)
	if px == nil {
		return nil
	}
	out := make([]int, 0, 2*NumLandmarks)
	for _, p := range px.points {
		out = append(out, int(p.X), int(p.Y))
	}
	return out
}

// scalePixel maps pixel c of an image from pixels wide onto one to pixels wide.
func scalePixel(c float64, from, to int) int {
	v := int(math.Floor(c)) * to / from
	return clamp(v, to)
}

func clampPixel(c float64, dim int) int {
	return clamp(int(math.Floor(c*float64(dim))), dim)
}

func clamp(v, dim int) int {
	if v > dim-1 {
		v = dim - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}
