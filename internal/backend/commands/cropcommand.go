package commands

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/cinememe/internal/backend/commandstructure"
	"github.com/jo-hoe/cinememe/internal/editor"
)

// CropParams selects a region in percent of the source image.
type CropParams struct {
	Region  editor.CropRegion
	Format  editor.Format
	Quality int // JPEG only
}

// NewCropParamsFromMap reads x, y, width and height (all percentages) and an
// optional output format. Out-of-range values are clamped into a valid
// region rather than rejected.
func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"x", "y", "width", "height"}); err != nil {
		return nil, err
	}
	format, err := editor.ParseFormat(commandstructure.GetStringParam(params, "format", string(editor.FormatPNG)))
	if err != nil {
		return nil, err
	}

	region := editor.CropRegion{
		X:      commandstructure.GetFloatParam(params, "x", 0),
		Y:      commandstructure.GetFloatParam(params, "y", 0),
		Width:  commandstructure.GetFloatParam(params, "width", editor.MaxPercent),
		Height: commandstructure.GetFloatParam(params, "height", editor.MaxPercent),
	}
	return &CropParams{
		Region:  region.Normalize(),
		Format:  format,
		Quality: commandstructure.GetIntParam(params, "quality", editor.DefaultJPEGQuality),
	}, nil
}

// CropCommand cuts a percentage region out of an image.
type CropCommand struct {
	name   string
	params *CropParams
}

// NewCropCommand creates a crop command from configuration parameters
func NewCropCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return NewCropCommandWithRegion(typedParams.Region, typedParams.Format).WithQuality(typedParams.Quality), nil
}

// NewCropCommandWithRegion creates a crop command from a region directly.
func NewCropCommandWithRegion(region editor.CropRegion, format editor.Format) *CropCommand {
	return &CropCommand{
		name: "CropCommand",
		params: &CropParams{
			Region: region.Normalize(),
			Format: format,
		},
	}
}

// WithQuality sets the JPEG quality used when the output format is JPEG.
func (c *CropCommand) WithQuality(quality int) *CropCommand {
	c.params.Quality = quality
	return c
}

// Name returns the command name
func (c *CropCommand) Name() string {
	return c.name
}

// Region returns the normalized crop region.
func (c *CropCommand) Region() editor.CropRegion {
	return c.params.Region
}

// Execute crops the image to the configured region.
func (c *CropCommand) Execute(imageData []byte) ([]byte, error) {
	slog.Debug("CropCommand: cropping image",
		"input_size_bytes", len(imageData),
		"x", c.params.Region.X,
		"y", c.params.Region.Y,
		"width", c.params.Region.Width,
		"height", c.params.Region.Height,
		"format", c.params.Format)

	out, err := editor.CropBlob(imageData, c.params.Region, editor.EncodeOptions{Format: c.params.Format, Quality: c.params.Quality})
	if err != nil {
		slog.Error("CropCommand: crop failed", "error", err)
		return nil, fmt.Errorf("failed to crop image: %w", err)
	}

	slog.Debug("CropCommand: crop complete", "output_size_bytes", len(out))
	return out, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("CropCommand", NewCropCommand); err != nil {
		panic(fmt.Sprintf("failed to register CropCommand: %v", err))
	}
}
