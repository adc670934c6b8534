package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jo-hoe/cinememe/internal/backend/commands"
	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/editor"
)

// SetOverlayPosition stores a caption anchor given in percent. The position
// is clamped like a drag would be.
func (service *CoreService) SetOverlayPosition(ctx context.Context, id string, caption editor.Caption, pos editor.OverlayPosition) (editor.Overlays, error) {
	if _, err := editor.ParseCaption(string(caption)); err != nil {
		return editor.Overlays{}, err
	}
	return service.updateOverlays(ctx, id, func(o editor.Overlays, editable bool) (editor.Overlays, error) {
		if !editable {
			return o, editor.ErrReadOnly
		}
		return o.With(caption, pos.Clamp()), nil
	})
}

// DragOverlay moves a caption to the pointer position inside the rendered
// container. Memes that left moderation are read-only and report
// editor.ErrReadOnly.
func (service *CoreService) DragOverlay(ctx context.Context, id string, caption editor.Caption, p editor.Point, container editor.Box) (editor.Overlays, error) {
	return service.updateOverlays(ctx, id, func(o editor.Overlays, editable bool) (editor.Overlays, error) {
		oe := editor.NewOverlayEditor(editable, func(c editor.Caption, pos editor.OverlayPosition) {
			o = o.With(c, pos)
		})
		if _, err := oe.Drag(caption, p, container); err != nil {
			return o, err
		}
		return o, nil
	})
}

func (service *CoreService) updateOverlays(ctx context.Context, id string, fn func(o editor.Overlays, editable bool) (editor.Overlays, error)) (editor.Overlays, error) {
	unlock := service.locks.Lock(id)
	defer unlock()

	meme, err := service.databaseService.GetMeme(ctx, id, "id", "overlays", "status")
	if err != nil {
		return editor.Overlays{}, err
	}
	current, err := meme.OverlayPositions()
	if err != nil {
		return editor.Overlays{}, err
	}
	updated, err := fn(current, meme.Status == database.StatusPending)
	if err != nil {
		return current, err
	}
	encoded, err := database.EncodeOverlays(updated)
	if err != nil {
		return current, err
	}
	if err := service.databaseService.UpdateOverlays(ctx, id, encoded); err != nil {
		return current, err
	}
	service.metrics.IncOverlayMove()
	return updated, nil
}

// SubmitMeme burns the captions into the edited image (or the original when
// no crop was confirmed) at their stored anchors.
func (service *CoreService) SubmitMeme(ctx context.Context, id, topText, bottomText string) (*database.Meme, error) {
	unlock := service.locks.Lock(id)
	defer unlock()

	meme, err := service.databaseService.GetMeme(ctx, id, "id", "original_image", "edited_image", "overlays", "status")
	if err != nil {
		return nil, err
	}
	if meme.Status != database.StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEditable, id, meme.Status)
	}
	base := meme.EditedImage
	if len(base) == 0 {
		base = meme.OriginalImage
	}
	if len(base) == 0 {
		return nil, fmt.Errorf("%w: meme %s", editor.ErrNoImage, id)
	}
	overlays, err := meme.OverlayPositions()
	if err != nil {
		return nil, err
	}

	topText = strings.TrimSpace(topText)
	bottomText = strings.TrimSpace(bottomText)
	command := commands.NewCaptionCommandWithParams(commands.CaptionParams{
		Top:       topText,
		Bottom:    bottomText,
		Overlays:  overlays,
		FontScale: service.config.Editor.CaptionFontScale,
	})
	start := service.now()
	composed, err := command.Execute(base)
	service.metrics.ObservePipeline("caption", start)
	if err != nil {
		return nil, fmt.Errorf("failed to render captions of %s: %w", id, err)
	}

	encoded, err := database.EncodeOverlays(overlays)
	if err != nil {
		return nil, err
	}
	if err := service.databaseService.UpdateComposition(ctx, id, database.Composition{
		TopText:    topText,
		BottomText: bottomText,
		Overlays:   encoded,
		Composed:   composed,
	}); err != nil {
		return nil, err
	}
	service.metrics.IncSubmission()
	slog.Info("meme submitted", "id", id, "output_size_bytes", len(composed))

	return service.databaseService.GetMeme(ctx, id, summaryColumns...)
}
