package editor

import (
	"fmt"
	"strings"
)

// DragMode selects which part of the crop rectangle a gesture moves.
type DragMode string

const (
	ModeMove     DragMode = "move"
	ModeResizeNW DragMode = "resize-nw"
	ModeResizeNE DragMode = "resize-ne"
	ModeResizeSW DragMode = "resize-sw"
	ModeResizeSE DragMode = "resize-se"
)

// ParseDragMode accepts the mode names case-insensitively.
func ParseDragMode(s string) (DragMode, error) {
	mode := DragMode(strings.ToLower(strings.TrimSpace(s)))
	switch mode {
	case ModeMove, ModeResizeNW, ModeResizeNE, ModeResizeSW, ModeResizeSE:
		return mode, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Point is a pointer position in client pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is the bounding box of a rendered element in client pixels.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// Empty reports whether the box has no area to map pointer deltas onto.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// PercentDelta converts a pointer movement from start to p into a movement
// in percent of the box.
func (b Box) PercentDelta(start, p Point) (dx, dy float64) {
	if b.Empty() {
		return 0, 0
	}
	return (p.X - start.X) / b.Width * MaxPercent, (p.Y - start.Y) / b.Height * MaxPercent
}

// ApplyDrag returns the region produced by dragging from the snapshot by
// (dx, dy) percent in the given mode. The result always satisfies the crop
// invariants: a move keeps the size and slides the origin within the image;
// a corner resize keeps the two opposite edges fixed and limits the dragged
// edges so neither dimension drops below MinCropSize nor leaves [0, 100].
func ApplyDrag(snapshot CropRegion, mode DragMode, dx, dy float64) CropRegion {
	s := snapshot.Normalize()
	switch mode {
	case ModeMove:
		return CropRegion{
			X:      clamp(s.X+dx, 0, MaxPercent-s.Width),
			Y:      clamp(s.Y+dy, 0, MaxPercent-s.Height),
			Width:  s.Width,
			Height: s.Height,
		}
	case ModeResizeNW:
		x, w := dragLeadingEdge(s.X, s.Right(), dx)
		y, h := dragLeadingEdge(s.Y, s.Bottom(), dy)
		return CropRegion{X: x, Y: y, Width: w, Height: h}
	case ModeResizeNE:
		w := dragTrailingEdge(s.X, s.Right(), dx)
		y, h := dragLeadingEdge(s.Y, s.Bottom(), dy)
		return CropRegion{X: s.X, Y: y, Width: w, Height: h}
	case ModeResizeSW:
		x, w := dragLeadingEdge(s.X, s.Right(), dx)
		h := dragTrailingEdge(s.Y, s.Bottom(), dy)
		return CropRegion{X: x, Y: s.Y, Width: w, Height: h}
	case ModeResizeSE:
		w := dragTrailingEdge(s.X, s.Right(), dx)
		h := dragTrailingEdge(s.Y, s.Bottom(), dy)
		return CropRegion{X: s.X, Y: s.Y, Width: w, Height: h}
	}
	return s
}

// dragLeadingEdge moves the left (or top) edge while the far edge stays put.
func dragLeadingEdge(origin, far, delta float64) (float64, float64) {
	origin = clamp(origin+delta, 0, far-MinCropSize)
	size := far - origin
	if size < MinCropSize {
		size = MinCropSize
	}
	return origin, size
}

// dragTrailingEdge moves the right (or bottom) edge while the origin stays put.
func dragTrailingEdge(origin, far, delta float64) float64 {
	return clamp((far-origin)+delta, MinCropSize, MaxPercent-origin)
}
