// Package editor holds the interactive geometry behind meme composition:
// a percentage-based crop rectangle edited by drag gestures, the caption
// anchors placed over the image, and the rasterizer that turns a confirmed
// crop into a new image blob.
//
// All coordinates are percentages of the image (crop) or of the container
// (overlay), so the stored values stay valid whatever size the image is
// rendered at.
package editor

import "math"

const (
	// MinCropSize is the smallest width or height a crop may be resized to.
	MinCropSize = 10.0
	// MaxPercent is the upper bound of every percentage coordinate.
	MaxPercent = 100.0

	// epsilon absorbs float rounding when checking invariants.
	epsilon = 1e-9
)

// CropRegion is a rectangle over an image, in percent of the image's
// natural dimensions.
type CropRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FullRegion covers the whole image and is the starting point for new crops.
func FullRegion() CropRegion {
	return CropRegion{X: 0, Y: 0, Width: MaxPercent, Height: MaxPercent}
}

// Right is the x coordinate of the right edge.
func (r CropRegion) Right() float64 { return r.X + r.Width }

// Bottom is the y coordinate of the bottom edge.
func (r CropRegion) Bottom() float64 { return r.Y + r.Height }

// Valid reports whether r satisfies the crop invariants.
func (r CropRegion) Valid() bool {
	return r.X >= -epsilon && r.Y >= -epsilon &&
		r.Width >= MinCropSize-epsilon && r.Height >= MinCropSize-epsilon &&
		r.Right() <= MaxPercent+epsilon && r.Bottom() <= MaxPercent+epsilon
}

// Normalize returns the closest region to r that satisfies the crop
// invariants. Sizes are clamped to [MinCropSize, 100] first, then the
// origin is clamped so the region stays inside the image. NaN values
// fall back to the full image on that axis.
func (r CropRegion) Normalize() CropRegion {
	x, w := normalizeAxis(r.X, r.Width)
	y, h := normalizeAxis(r.Y, r.Height)
	return CropRegion{X: x, Y: y, Width: w, Height: h}
}

func normalizeAxis(origin, size float64) (float64, float64) {
	if math.IsNaN(origin) || math.IsNaN(size) {
		return 0, MaxPercent
	}
	size = clamp(size, MinCropSize, MaxPercent)
	origin = clamp(origin, 0, MaxPercent-size)
	return origin, size
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo || math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
