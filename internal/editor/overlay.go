package editor

import (
	"fmt"
	"strings"
)

const (
	// OverlayMin and OverlayMax bound caption anchors on both axes so a
	// label can never be dragged off the image.
	OverlayMin = 5.0
	OverlayMax = 95.0
)

// Caption names a caption slot on a meme.
type Caption string

const (
	CaptionTop    Caption = "top"
	CaptionBottom Caption = "bottom"
)

// ParseCaption accepts "top" or "bottom" case-insensitively.
func ParseCaption(s string) (Caption, error) {
	c := Caption(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CaptionTop, CaptionBottom:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCaption, s)
}

// OverlayPosition is the anchor point of a caption in percent of the
// container it is drawn over.
type OverlayPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamp limits both coordinates to [OverlayMin, OverlayMax].
func (p OverlayPosition) Clamp() OverlayPosition {
	return OverlayPosition{
		X: clamp(p.X, OverlayMin, OverlayMax),
		Y: clamp(p.Y, OverlayMin, OverlayMax),
	}
}

// Overlays holds the anchors of both captions of a meme.
type Overlays struct {
	Top    OverlayPosition `json:"top"`
	Bottom OverlayPosition `json:"bottom"`
}

// DefaultOverlays places the captions centred near the top and bottom edges.
func DefaultOverlays() Overlays {
	return Overlays{
		Top:    OverlayPosition{X: 50, Y: 10},
		Bottom: OverlayPosition{X: 50, Y: 90},
	}
}

// Get returns the anchor of a caption slot.
func (o Overlays) Get(c Caption) OverlayPosition {
	if c == CaptionBottom {
		return o.Bottom
	}
	return o.Top
}

// With returns a copy of o with the anchor of c replaced.
func (o Overlays) With(c Caption, p OverlayPosition) Overlays {
	if c == CaptionBottom {
		o.Bottom = p
	} else {
		o.Top = p
	}
	return o
}

// PositionFromPointer maps a pointer position to a clamped anchor inside
// the container box.
func PositionFromPointer(p Point, container Box) OverlayPosition {
	if container.Empty() {
		return OverlayPosition{X: OverlayMin, Y: OverlayMin}
	}
	return OverlayPosition{
		X: (p.X - container.Left) / container.Width * MaxPercent,
		Y: (p.Y - container.Top) / container.Height * MaxPercent,
	}.Clamp()
}

// OverlayEditor turns pointer moves into caption anchors. It keeps no
// position of its own: every computed position is handed to OnChange and
// the caller decides what to do with it.
type OverlayEditor struct {
	editable bool
	onChange func(Caption, OverlayPosition)
	active   *Caption
}

// NewOverlayEditor creates an editor. A read-only editor never captures a
// gesture, so it never reports positions.
func NewOverlayEditor(editable bool, onChange func(Caption, OverlayPosition)) *OverlayEditor {
	return &OverlayEditor{editable: editable, onChange: onChange}
}

// Editable reports whether drags are accepted.
func (e *OverlayEditor) Editable() bool { return e.editable }

// Begin captures a drag of the given caption.
func (e *OverlayEditor) Begin(c Caption) error {
	if !e.editable {
		return ErrReadOnly
	}
	if _, err := ParseCaption(string(c)); err != nil {
		return err
	}
	e.active = &c
	return nil
}

// Move reports the position under the pointer for the captured caption.
func (e *OverlayEditor) Move(p Point, container Box) (OverlayPosition, error) {
	if e.active == nil {
		return OverlayPosition{}, ErrNoGesture
	}
	pos := PositionFromPointer(p, container)
	if e.onChange != nil {
		e.onChange(*e.active, pos)
	}
	return pos, nil
}

// End releases the captured caption.
func (e *OverlayEditor) End() {
	e.active = nil
}

// Drag is a complete single-step gesture: Begin, one Move and End.
func (e *OverlayEditor) Drag(c Caption, p Point, container Box) (OverlayPosition, error) {
	if err := e.Begin(c); err != nil {
		return OverlayPosition{}, err
	}
	defer e.End()
	return e.Move(p, container)
}
