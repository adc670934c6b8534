package editor

import "errors"

var (
	// ErrNoImage is returned when the source image is not available, either
	// because no bytes were supplied or the rendered box has no size.
	ErrNoImage = errors.New("image not available")
	// ErrNoRaster is returned when a raster to draw into cannot be produced:
	// the source does not decode, the pixel rectangle is empty or encoding
	// fails.
	ErrNoRaster = errors.New("raster context not available")
	// ErrNoGesture is returned when a drag update arrives without a gesture
	// having been started.
	ErrNoGesture = errors.New("no active gesture")
	// ErrUnknownMode is returned for an unrecognised drag mode.
	ErrUnknownMode = errors.New("unknown drag mode")
	// ErrReadOnly is returned when a drag is started on a read-only overlay.
	ErrReadOnly = errors.New("overlay is read-only")
	// ErrUnknownCaption is returned for a caption slot other than top or bottom.
	ErrUnknownCaption = errors.New("unknown caption")
)
