package commands

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/jo-hoe/cinememe/internal/backend/commandstructure"
	"github.com/jo-hoe/cinememe/internal/editor"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"
)

const (
	defaultFontScale = 0.08
	minFontSize      = 12.0
	// captions wrap once a line would cover more than this share of the width
	maxLineWidthRatio = 0.9
)

var (
	captionFont     *truetype.Font
	captionFontErr  error
	captionFontOnce sync.Once
)

func loadCaptionFont() (*truetype.Font, error) {
	captionFontOnce.Do(func() {
		captionFont, captionFontErr = truetype.Parse(gobold.TTF)
	})
	return captionFont, captionFontErr
}

// CaptionParams holds the caption texts, their anchors and the font size as
// a fraction of the image height.
type CaptionParams struct {
	Top       string
	Bottom    string
	Overlays  editor.Overlays
	FontScale float64
}

// NewCaptionParamsFromMap reads top/bottom texts and anchors (topX, topY,
// bottomX, bottomY in percent). Anchors are clamped like editor drags.
func NewCaptionParamsFromMap(params map[string]any) (*CaptionParams, error) {
	defaults := editor.DefaultOverlays()
	p := &CaptionParams{
		Top:    commandstructure.GetStringParam(params, "top", ""),
		Bottom: commandstructure.GetStringParam(params, "bottom", ""),
		Overlays: editor.Overlays{
			Top: editor.OverlayPosition{
				X: commandstructure.GetFloatParam(params, "topX", defaults.Top.X),
				Y: commandstructure.GetFloatParam(params, "topY", defaults.Top.Y),
			}.Clamp(),
			Bottom: editor.OverlayPosition{
				X: commandstructure.GetFloatParam(params, "bottomX", defaults.Bottom.X),
				Y: commandstructure.GetFloatParam(params, "bottomY", defaults.Bottom.Y),
			}.Clamp(),
		},
		FontScale: commandstructure.GetFloatParam(params, "fontScale", defaultFontScale),
	}
	if p.FontScale <= 0 || p.FontScale > 0.5 {
		return nil, fmt.Errorf("fontScale must be in (0, 0.5], got %v", p.FontScale)
	}
	return p, nil
}

// CaptionCommand draws the top and bottom captions onto an image, centred
// on their anchors, in outlined white uppercase text.
type CaptionCommand struct {
	name   string
	params *CaptionParams
}

// NewCaptionCommand creates a caption command from configuration parameters
func NewCaptionCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewCaptionParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return NewCaptionCommandWithParams(*typedParams), nil
}

// NewCaptionCommandWithParams creates a caption command from typed parameters.
func NewCaptionCommandWithParams(params CaptionParams) *CaptionCommand {
	if params.FontScale <= 0 {
		params.FontScale = defaultFontScale
	}
	params.Overlays.Top = params.Overlays.Top.Clamp()
	params.Overlays.Bottom = params.Overlays.Bottom.Clamp()
	return &CaptionCommand{
		name:   "CaptionCommand",
		params: &params,
	}
}

// Name returns the command name
func (c *CaptionCommand) Name() string {
	return c.name
}

// Execute renders the captions. An image without caption text is returned
// unchanged.
func (c *CaptionCommand) Execute(imageData []byte) ([]byte, error) {
	top := strings.TrimSpace(c.params.Top)
	bottom := strings.TrimSpace(c.params.Bottom)
	if top == "" && bottom == "" {
		slog.Debug("CaptionCommand: no caption text; returning input")
		return imageData, nil
	}

	img, err := decodeImage(imageData)
	if err != nil {
		slog.Error("CaptionCommand: failed to decode image", "error", err)
		return nil, err
	}
	f, err := loadCaptionFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load caption font: %w", err)
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	size := float64(bounds.Dy()) * c.params.FontScale
	if size < minFontSize {
		size = minFontSize
	}

	for _, caption := range []struct {
		text string
		pos  editor.OverlayPosition
	}{
		{top, c.params.Overlays.Top},
		{bottom, c.params.Overlays.Bottom},
	} {
		if caption.text == "" {
			continue
		}
		if err := drawCaption(dst, f, size, caption.text, caption.pos); err != nil {
			slog.Error("CaptionCommand: failed to draw caption", "error", err)
			return nil, fmt.Errorf("failed to draw caption: %w", err)
		}
	}

	slog.Debug("CaptionCommand: captions rendered",
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"font_size", size)
	return encodePNG(dst)
}

// drawCaption draws text as a block of lines whose centre sits on pos.
func drawCaption(dst *image.RGBA, f *truetype.Font, size float64, text string, pos editor.OverlayPosition) error {
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	defer func() { _ = face.Close() }()

	width := dst.Bounds().Dx()
	lines := wrapLines(face, strings.ToUpper(text), int(float64(width)*maxLineWidthRatio))

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()
	blockHeight := lineHeight * len(lines)

	centreX := int(pos.X / editor.MaxPercent * float64(width))
	centreY := int(pos.Y / editor.MaxPercent * float64(dst.Bounds().Dy()))
	top := centreY - blockHeight/2

	outline := int(size / 16)
	if outline < 1 {
		outline = 1
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(f)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingFull)
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)

	for i, line := range lines {
		lineWidth := font.MeasureString(face, line).Ceil()
		x := centreX - lineWidth/2
		baseline := top + i*lineHeight + ascent

		ctx.SetSrc(image.NewUniform(color.Black))
		for dy := -outline; dy <= outline; dy++ {
			for dx := -outline; dx <= outline; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if _, err := ctx.DrawString(line, freetype.Pt(x+dx, baseline+dy)); err != nil {
					return err
				}
			}
		}
		ctx.SetSrc(image.NewUniform(color.White))
		if _, err := ctx.DrawString(line, freetype.Pt(x, baseline)); err != nil {
			return err
		}
	}
	return nil
}

// wrapLines splits text on spaces into lines no wider than maxWidth. A
// single word wider than maxWidth gets a line of its own.
func wrapLines(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	limit := fixed.I(maxWidth)

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if font.MeasureString(face, candidate) <= limit {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("CaptionCommand", NewCaptionCommand); err != nil {
		panic(fmt.Sprintf("failed to register CaptionCommand: %v", err))
	}
}
