package editor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// Format is the encoding of a rasterized crop.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"

	// DefaultJPEGQuality is used when EncodeOptions leaves Quality unset.
	DefaultJPEGQuality = 90
)

// ParseFormat accepts png, jpeg and jpg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// MimeType returns the content type of the format.
func (f Format) MimeType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// EncodeOptions controls how a crop is encoded.
type EncodeOptions struct {
	Format  Format
	Quality int
}

// PixelRect converts a region into a pixel rectangle against an image of
// the given natural size. The rectangle is relative to (0, 0) and never
// extends past the image.
func PixelRect(r CropRegion, natural image.Point) image.Rectangle {
	r = r.Normalize()
	x0 := int(math.Round(r.X / MaxPercent * float64(natural.X)))
	y0 := int(math.Round(r.Y / MaxPercent * float64(natural.Y)))
	w := int(math.Round(r.Width / MaxPercent * float64(natural.X)))
	h := int(math.Round(r.Height / MaxPercent * float64(natural.Y)))
	return image.Rect(x0, y0, x0+w, y0+h).Intersect(image.Rect(0, 0, natural.X, natural.Y))
}

// Crop draws the part of src selected by r onto a new raster sized to the
// crop. src is left untouched.
func Crop(src image.Image, r CropRegion) (*image.RGBA, error) {
	if src == nil {
		return nil, ErrNoImage
	}
	bounds := src.Bounds()
	rect := PixelRect(r, bounds.Size())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: crop of %dx%d image is empty", ErrNoRaster, bounds.Dx(), bounds.Dy())
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min.Add(rect.Min), draw.Src)
	return dst, nil
}

// Encode writes img in the requested format.
func Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch opts.Format {
	case FormatJPEG:
		quality := opts.Quality
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: failed to encode jpeg: %v", ErrNoRaster, err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: failed to encode png: %v", ErrNoRaster, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode reads an encoded image using the decoders registered with the
// image package.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrNoRaster, err)
	}
	return img, nil
}

// CropBlob decodes data, crops it to r and encodes the result. On any
// failure no output is produced.
func CropBlob(data []byte, r CropRegion, opts EncodeOptions) ([]byte, error) {
	src, err := Decode(data)
	if err != nil {
		return nil, err
	}
	cropped, err := Crop(src, r)
	if err != nil {
		return nil, err
	}
	return Encode(cropped, opts)
}
