package editor

import "fmt"

// Gesture is a drag in progress: where the pointer went down, what it is
// dragging, and the region as it was at that moment.
type Gesture struct {
	Mode     DragMode   `json:"mode"`
	Start    Point      `json:"start"`
	Box      Box        `json:"box"`
	Snapshot CropRegion `json:"snapshot"`
}

// CropState is the serialisable state of a CropEditor.
type CropState struct {
	Region   CropRegion `json:"region"`
	Original CropRegion `json:"original"`
	Gesture  *Gesture   `json:"gesture,omitempty"`
}

// CropEditor tracks one crop editing session. The region it was opened with
// is kept so that Cancel can restore it exactly. At most one gesture is
// active at a time; it is captured by Begin and released by End.
type CropEditor struct {
	region   CropRegion
	original CropRegion
	gesture  *Gesture
}

// NewCropEditor opens an editing session on the given region.
func NewCropEditor(initial CropRegion) *CropEditor {
	r := initial.Normalize()
	return &CropEditor{region: r, original: r}
}

// RestoreCropEditor rebuilds an editor from a saved state.
func RestoreCropEditor(state CropState) *CropEditor {
	e := &CropEditor{
		region:   state.Region.Normalize(),
		original: state.Original.Normalize(),
	}
	if state.Gesture != nil {
		g := *state.Gesture
		g.Snapshot = g.Snapshot.Normalize()
		e.gesture = &g
	}
	return e
}

// State returns a copy of the editor state suitable for persisting.
func (e *CropEditor) State() CropState {
	state := CropState{Region: e.region, Original: e.original}
	if e.gesture != nil {
		g := *e.gesture
		state.Gesture = &g
	}
	return state
}

// Region is the current, possibly edited, region.
func (e *CropEditor) Region() CropRegion { return e.region }

// Original is the region the session was opened with.
func (e *CropEditor) Original() CropRegion { return e.original }

// Active reports whether a gesture is captured.
func (e *CropEditor) Active() bool { return e.gesture != nil }

// Begin captures a new gesture. A gesture still active from an earlier
// Begin is released first.
func (e *CropEditor) Begin(mode DragMode, start Point, box Box) error {
	if _, err := ParseDragMode(string(mode)); err != nil {
		return err
	}
	if box.Empty() {
		return fmt.Errorf("%w: rendered box is %gx%g", ErrNoImage, box.Width, box.Height)
	}
	e.gesture = &Gesture{
		Mode:     mode,
		Start:    start,
		Box:      box,
		Snapshot: e.region,
	}
	return nil
}

// Move applies a pointer position to the active gesture and returns the
// updated region. Positions are always measured from the gesture start, so
// a sequence of moves is equivalent to its last one.
func (e *CropEditor) Move(p Point) (CropRegion, error) {
	if e.gesture == nil {
		return e.region, ErrNoGesture
	}
	dx, dy := e.gesture.Box.PercentDelta(e.gesture.Start, p)
	e.region = ApplyDrag(e.gesture.Snapshot, e.gesture.Mode, dx, dy)
	return e.region, nil
}

// End releases the gesture. It is safe to call without an active gesture.
func (e *CropEditor) End() CropRegion {
	e.gesture = nil
	return e.region
}

// Cancel discards every edit made in this session and returns the region
// the session was opened with.
func (e *CropEditor) Cancel() CropRegion {
	e.gesture = nil
	e.region = e.original
	return e.region
}
