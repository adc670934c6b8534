package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// newTestPNG encodes a w x h image filled with c.
func newTestPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := createTargetCanvas(w, h, c)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

// mustDecodePNG decodes PNG bytes or fails the test.
func mustDecodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not a valid PNG: %v", err)
	}
	return img
}
