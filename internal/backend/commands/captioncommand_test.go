package commands

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/golang/freetype/truetype"
	"github.com/jo-hoe/cinememe/internal/editor"
	"golang.org/x/image/font"
)

func TestNewCaptionCommand_Params(t *testing.T) {
	command, err := NewCaptionCommand(map[string]any{
		"top":     "one does not simply",
		"bottom":  "crop a meme",
		"topX":    2.0,
		"bottomY": 120,
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	params := command.(*CaptionCommand).params
	if params.Overlays.Top.X != editor.OverlayMin {
		t.Errorf("Expected top anchor clamped to %v, got %v", editor.OverlayMin, params.Overlays.Top.X)
	}
	if params.Overlays.Bottom.Y != editor.OverlayMax {
		t.Errorf("Expected bottom anchor clamped to %v, got %v", editor.OverlayMax, params.Overlays.Bottom.Y)
	}
	if params.FontScale != defaultFontScale {
		t.Errorf("Expected default font scale, got %v", params.FontScale)
	}

	if _, err := NewCaptionCommand(map[string]any{"fontScale": 0.9}); err == nil {
		t.Error("Expected error for oversized font scale")
	}
}

func TestCaptionCommand_Execute_NoTextPassesThrough(t *testing.T) {
	command := NewCaptionCommandWithParams(CaptionParams{Top: "  ", Overlays: editor.DefaultOverlays()})
	input := newTestPNG(t, 100, 100, color.White)
	result, err := command.Execute(input)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !bytes.Equal(input, result) {
		t.Error("Expected input to be returned unchanged")
	}
}

func TestCaptionCommand_Execute_DrawsAtAnchor(t *testing.T) {
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	command := NewCaptionCommandWithParams(CaptionParams{
		Top:      "HELLO",
		Overlays: editor.Overlays{Top: editor.OverlayPosition{X: 50, Y: 50}, Bottom: editor.DefaultOverlays().Bottom},
	})

	result, err := command.Execute(newTestPNG(t, 400, 400, gray))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	img := mustDecodePNG(t, result)
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 400 {
		t.Fatalf("Expected size to be kept, got %dx%d", b.Dx(), b.Dy())
	}

	changedNearAnchor := 0
	for y := 180; y < 220; y++ {
		for x := 120; x < 280; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r>>8 != 128 || g>>8 != 128 || b>>8 != 128 {
				changedNearAnchor++
			}
		}
	}
	if changedNearAnchor == 0 {
		t.Error("Expected caption pixels around the anchor")
	}

	r, g, b, _ := img.At(5, 395).RGBA()
	if r>>8 != 128 || g>>8 != 128 || b>>8 != 128 {
		t.Error("Expected far corner to be untouched")
	}
}

func TestWrapLines(t *testing.T) {
	f, err := loadCaptionFont()
	if err != nil {
		t.Fatalf("Failed to load font: %v", err)
	}
	face := truetype.NewFace(f, &truetype.Options{Size: 20, DPI: 72})
	defer func() { _ = face.Close() }()

	single := wrapLines(face, "SHORT", 1000)
	if len(single) != 1 || single[0] != "SHORT" {
		t.Errorf("Expected a single line, got %q", single)
	}

	text := "THIS CAPTION IS FAR TOO LONG FOR ONE LINE"
	maxWidth := font.MeasureString(face, "THIS CAPTION").Ceil()
	lines := wrapLines(face, text, maxWidth)
	if len(lines) < 3 {
		t.Fatalf("Expected the caption to wrap, got %q", lines)
	}
	for _, line := range lines[:len(lines)-1] {
		if font.MeasureString(face, line).Ceil() > maxWidth {
			t.Errorf("Line %q exceeds %dpx", line, maxWidth)
		}
	}

	if got := wrapLines(face, "   ", 100); got != nil {
		t.Errorf("Expected no lines for blank text, got %q", got)
	}
}
