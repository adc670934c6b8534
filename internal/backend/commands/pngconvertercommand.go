package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strings"

	"github.com/jo-hoe/cinememe/internal/backend/commandstructure"
	"github.com/jo-hoe/cinememe/internal/editor"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// defaultMaxPixels rejects uploads above roughly 40 megapixels before
	// they are decoded.
	defaultMaxPixels = 40_000_000
)

// hasCorrectPngSignature checks whether the provided data begins with a valid PNG signature
func hasCorrectPngSignature(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	expected := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	return bytes.Equal(data[:8], expected)
}

// PngConverterParams configures upload normalization.
type PngConverterParams struct {
	SvgFallbackWidth  int
	SvgFallbackHeight int
	MaxPixels         int
}

// NewPngConverterParamsFromMap reads the optional SVG fallback size and the
// pixel limit.
func NewPngConverterParamsFromMap(params map[string]any) (*PngConverterParams, error) {
	p := &PngConverterParams{
		SvgFallbackWidth:  commandstructure.GetIntParam(params, "svgFallbackWidth", 0),
		SvgFallbackHeight: commandstructure.GetIntParam(params, "svgFallbackHeight", 0),
		MaxPixels:         commandstructure.GetIntParam(params, "maxPixels", defaultMaxPixels),
	}
	if p.SvgFallbackWidth < 0 || p.SvgFallbackHeight < 0 {
		return nil, fmt.Errorf("svg fallback size must not be negative, got %dx%d", p.SvgFallbackWidth, p.SvgFallbackHeight)
	}
	if p.MaxPixels <= 0 {
		return nil, fmt.Errorf("maxPixels must be positive, got %d", p.MaxPixels)
	}
	return p, nil
}

// PngConverterCommand turns any supported upload (PNG, JPEG, GIF, BMP,
// TIFF, WebP or SVG) into PNG so that every later step can rely on one
// format.
type PngConverterCommand struct {
	name   string
	params *PngConverterParams
}

// NewPngConverterCommand creates the converter from configuration parameters.
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewPngConverterParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &PngConverterCommand{
		name:   "PngConverterCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	slog.Debug("PngConverterCommand: start",
		"input_size_bytes", len(imageData),
		"max_pixels", c.params.MaxPixels)

	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	if isSVGData(imageData) {
		return c.convertSVG(imageData)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("PngConverterCommand: unsupported image", "error", err)
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width*cfg.Height > c.params.MaxPixels {
		return nil, fmt.Errorf("image of %dx%d exceeds the limit of %d pixels", cfg.Width, cfg.Height, c.params.MaxPixels)
	}

	// PNG input only needs the size check above.
	if hasCorrectPngSignature(imageData) {
		slog.Debug("PngConverterCommand: PNG detected; returning original bytes")
		return imageData, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("PngConverterCommand: failed to decode image", "format", format, "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	slog.Debug("PngConverterCommand: decoded raster image",
		"current_format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	out, err := encodePNG(img)
	if err != nil {
		slog.Error("PngConverterCommand: failed to encode image to PNG", "error", err)
		return nil, err
	}
	slog.Debug("PngConverterCommand: raster conversion complete", "output_size_bytes", len(out))
	return out, nil
}

func (c *PngConverterCommand) convertSVG(imageData []byte) ([]byte, error) {
	w, h, ok := parseSvgExplicitSize(imageData)
	if !ok {
		w, h = c.params.SvgFallbackWidth, c.params.SvgFallbackHeight
		if w <= 0 || h <= 0 {
			slog.Error("PngConverterCommand: SVG has no explicit size and no fallback is configured")
			return nil, fmt.Errorf("SVG fallback size not set; cannot render SVG without explicit size")
		}
		slog.Debug("PngConverterCommand: SVG lacks explicit size; using fallback", "width", w, "height", h)
	}
	if w*h > c.params.MaxPixels {
		return nil, fmt.Errorf("SVG render size %dx%d exceeds the limit of %d pixels", w, h, c.params.MaxPixels)
	}

	out, err := renderSVGToPNG(imageData, w, h)
	if err != nil {
		slog.Error("PngConverterCommand: failed to render SVG", "error", err, "width", w, "height", h)
		return nil, fmt.Errorf("failed to render SVG to PNG: %w", err)
	}
	slog.Debug("PngConverterCommand: SVG render complete", "output_size_bytes", len(out))
	return out, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("PngConverterCommand", NewPngConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register PngConverterCommand: %v", err))
	}
}

// parseSvgExplicitSize extracts the width and height attributes of the
// root <svg> tag. viewBox is not treated as a pixel size.
func parseSvgExplicitSize(data []byte) (int, int, bool) {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	s := strings.ToLower(string(data[:n]))
	i := strings.Index(s, "<svg")
	if i < 0 {
		return 0, 0, false
	}
	j := strings.Index(s[i:], ">")
	if j < 0 {
		j = len(s)
	} else {
		j = i + j
	}
	tag := s[i:j]

	w, wOk := parseNumericAttr(tag, "width")
	h, hOk := parseNumericAttr(tag, "height")
	if wOk && hOk && w > 0 && h > 0 {
		return w, h, true
	}
	return 0, 0, false
}

// parseNumericAttr extracts the leading integer of an attribute value,
// e.g. 123 from width="123px". The attribute must be preceded by
// whitespace so that stroke-width does not match width.
func parseNumericAttr(tag, attr string) (int, bool) {
	pos := -1
	for _, sep := range []string{" ", "\t", "\n", "\r"} {
		if p := strings.Index(tag, sep+attr+"="); p >= 0 && (pos < 0 || p < pos) {
			pos = p + 1
		}
	}
	if pos < 0 {
		return 0, false
	}
	rest := tag[pos+len(attr)+1:]
	if rest == "" {
		return 0, false
	}
	if quote := rest[0]; quote == '"' || quote == '\'' {
		rest = rest[1:]
		if end := strings.IndexByte(rest, quote); end >= 0 {
			rest = rest[:end]
		}
	}

	num := 0
	found := false
	for i := 0; i < len(rest); i++ {
		ch := rest[i]
		if ch < '0' || ch > '9' {
			break
		}
		found = true
		num = num*10 + int(ch-'0')
	}
	if !found || num <= 0 {
		return 0, false
	}
	return num, true
}

// isSVGData looks for an <svg tag or the SVG namespace in the first 4KB.
func isSVGData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	n := len(data)
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("xmlns=\"http://www.w3.org/2000/svg\"")) ||
		bytes.Contains(header, []byte("xmlns='http://www.w3.org/2000/svg'"))
}

// renderSVGToPNG rasterizes an SVG onto a white canvas of the given size.
func renderSVGToPNG(svgData []byte, targetW, targetH int) ([]byte, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("invalid target dimensions for SVG rendering: %dx%d", targetW, targetH)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := createTargetCanvas(targetW, targetH, color.RGBA{255, 255, 255, 255})
	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)

	return encodePNG(dst)
}

func createTargetCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return dst
}

// decodeImage reads any registered format, so later pipeline steps also
// accept the JPEG output of a crop.
func decodeImage(data []byte) (image.Image, error) {
	img, err := editor.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG image: %w", err)
	}
	return buf.Bytes(), nil
}
