package editor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPixelRect(t *testing.T) {
	got := PixelRect(CropRegion{X: 10, Y: 20, Width: 50, Height: 30}, image.Pt(1000, 2000))
	require.Equal(t, image.Rect(100, 400, 600, 1000), got)
	require.Equal(t, 500, got.Dx())
	require.Equal(t, 600, got.Dy())
}

func TestCrop_SizeAndOffset(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 2000))
	marker := color.RGBA{R: 255, A: 255}
	src.Set(100, 400, marker)
	src.Set(599, 999, color.RGBA{B: 255, A: 255})

	out, err := Crop(src, CropRegion{X: 10, Y: 20, Width: 50, Height: 30})
	require.NoError(t, err)
	require.Equal(t, 500, out.Bounds().Dx())
	require.Equal(t, 600, out.Bounds().Dy())
	require.Equal(t, marker, out.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{B: 255, A: 255}, out.RGBAAt(499, 599))

	// Source is not modified.
	require.Equal(t, marker, src.RGBAAt(100, 400))
}

func TestCrop_NonZeroOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(50, 50, 150, 150))
	src.Set(100, 100, color.RGBA{G: 255, A: 255})

	out, err := Crop(src, CropRegion{X: 50, Y: 50, Width: 50, Height: 50})
	require.NoError(t, err)
	require.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(0, 0))
}

func TestCrop_Failures(t *testing.T) {
	_, err := Crop(nil, FullRegion())
	require.ErrorIs(t, err, ErrNoImage)

	_, err = Crop(image.NewRGBA(image.Rect(0, 0, 0, 0)), FullRegion())
	require.ErrorIs(t, err, ErrNoRaster)
}

func TestCropBlob(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := CropBlob(buf.Bytes(), CropRegion{X: 25, Y: 50, Width: 50, Height: 50}, EncodeOptions{Format: FormatPNG})
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Width)
	require.Equal(t, 50, cfg.Height)

	out, err = CropBlob(buf.Bytes(), FullRegion(), EncodeOptions{Format: FormatJPEG, Quality: 80})
	require.NoError(t, err)
	jcfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 200, jcfg.Width)
}

func TestCropBlob_Failures(t *testing.T) {
	_, err := CropBlob(nil, FullRegion(), EncodeOptions{})
	require.ErrorIs(t, err, ErrNoImage)

	_, err = CropBlob([]byte("definitely not an image"), FullRegion(), EncodeOptions{})
	require.ErrorIs(t, err, ErrNoRaster)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JPG")
	require.NoError(t, err)
	require.Equal(t, FormatJPEG, f)
	require.Equal(t, "image/jpeg", f.MimeType())

	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatPNG, f)

	_, err = ParseFormat("gif")
	require.Error(t, err)
}
