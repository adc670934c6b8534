package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/cinememe/internal/backend/commandstructure"
	"golang.org/x/image/draw"
)

// ScaleParams bounds the output size. Either dimension may be zero, in which
// case it follows from the aspect ratio.
type ScaleParams struct {
	MaxWidth  int
	MaxHeight int
}

// NewScaleParamsFromMap reads maxWidth and maxHeight; at least one is required.
func NewScaleParamsFromMap(params map[string]any) (*ScaleParams, error) {
	_, hasWidth := params["maxWidth"]
	_, hasHeight := params["maxHeight"]
	if !hasWidth && !hasHeight {
		return nil, fmt.Errorf("at least one of 'maxWidth' or 'maxHeight' must be specified")
	}

	p := &ScaleParams{
		MaxWidth:  commandstructure.GetIntParam(params, "maxWidth", 0),
		MaxHeight: commandstructure.GetIntParam(params, "maxHeight", 0),
	}
	if hasWidth && p.MaxWidth <= 0 {
		return nil, fmt.Errorf("maxWidth must be positive, got %d", p.MaxWidth)
	}
	if hasHeight && p.MaxHeight <= 0 {
		return nil, fmt.Errorf("maxHeight must be positive, got %d", p.MaxHeight)
	}
	return p, nil
}

// ScaleCommand shrinks a PNG to fit the configured bounds while keeping its
// aspect ratio. Images that already fit are returned unchanged.
type ScaleCommand struct {
	name   string
	params *ScaleParams
}

// NewScaleCommand creates a scale command from configuration parameters
func NewScaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ScaleCommand{
		name:   "ScaleCommand",
		params: typedParams,
	}, nil
}

// NewThumbnailCommand scales to the given width.
func NewThumbnailCommand(width int) (*ScaleCommand, error) {
	if width <= 0 {
		return nil, fmt.Errorf("thumbnail width must be positive, got %d", width)
	}
	return &ScaleCommand{
		name:   "ScaleCommand",
		params: &ScaleParams{MaxWidth: width},
	}, nil
}

// Name returns the command name
func (c *ScaleCommand) Name() string {
	return c.name
}

// Execute scales the image down to fit the bounds.
func (c *ScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodeImage(imageData)
	if err != nil {
		slog.Error("ScaleCommand: failed to decode image", "error", err)
		return nil, err
	}

	bounds := img.Bounds()
	targetWidth, targetHeight := fitWithin(bounds.Dx(), bounds.Dy(), c.params.MaxWidth, c.params.MaxHeight)
	if targetWidth == bounds.Dx() && targetHeight == bounds.Dy() {
		slog.Debug("ScaleCommand: image already fits; skipping scaling",
			"width", bounds.Dx(),
			"height", bounds.Dy())
		return imageData, nil
	}

	slog.Debug("ScaleCommand: scaling image",
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"target_width", targetWidth,
		"target_height", targetHeight)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	out, err := encodePNG(dst)
	if err != nil {
		slog.Error("ScaleCommand: failed to encode scaled image", "error", err)
		return nil, err
	}
	return out, nil
}

// fitWithin returns the largest size no bigger than the original that fits
// inside maxW x maxH (zero meaning unbounded) with the same aspect ratio.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}
	if scale >= 1.0 {
		return w, h
	}
	tw := int(float64(w)*scale + 0.5)
	th := int(float64(h)*scale + 0.5)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ScaleCommand", NewScaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register ScaleCommand: %v", err))
	}
}
