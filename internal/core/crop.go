package core

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/cinememe/internal/backend/commands"
	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/backend/session"
	"github.com/jo-hoe/cinememe/internal/editor"
)

// OpenCrop starts a crop session on a pending meme. The editor opens on
// the region stored with the meme; an earlier unfinished session is
// replaced.
func (service *CoreService) OpenCrop(ctx context.Context, id string) (*session.Session, error) {
	unlock := service.locks.Lock(id)
	defer unlock()

	meme, err := service.databaseService.GetMeme(ctx, id, "id", "original_image", "crop_region", "status")
	if err != nil {
		return nil, err
	}
	if meme.Status != database.StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEditable, id, meme.Status)
	}
	if len(meme.OriginalImage) == 0 {
		return nil, fmt.Errorf("%w: meme %s", editor.ErrNoImage, id)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(meme.OriginalImage))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", editor.ErrNoRaster, err)
	}
	region, err := meme.Region()
	if err != nil {
		return nil, err
	}

	s := &session.Session{
		MemeID:        id,
		Editor:        editor.NewCropEditor(region).State(),
		NaturalWidth:  cfg.Width,
		NaturalHeight: cfg.Height,
		OpenedAt:      service.now().UTC(),
	}
	if err := service.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	slog.Debug("crop session opened", "id", id, "width", cfg.Width, "height", cfg.Height)
	return s, nil
}

// CropSession returns the open session of a meme.
func (service *CoreService) CropSession(ctx context.Context, id string) (*session.Session, error) {
	return service.sessions.Load(ctx, id)
}

// BeginCropDrag captures a drag gesture on the crop box.
func (service *CoreService) BeginCropDrag(ctx context.Context, id string, mode editor.DragMode, start editor.Point, box editor.Box) (editor.CropRegion, error) {
	region, err := service.withCropEditor(ctx, id, func(e *editor.CropEditor) (editor.CropRegion, error) {
		if err := e.Begin(mode, start, box); err != nil {
			return e.Region(), err
		}
		return e.Region(), nil
	})
	if err == nil {
		service.metrics.IncCropGesture(string(mode))
	}
	return region, err
}

// MoveCropDrag applies a pointer position to the active gesture.
func (service *CoreService) MoveCropDrag(ctx context.Context, id string, p editor.Point) (editor.CropRegion, error) {
	return service.withCropEditor(ctx, id, func(e *editor.CropEditor) (editor.CropRegion, error) {
		return e.Move(p)
	})
}

// EndCropDrag releases the active gesture, if any.
func (service *CoreService) EndCropDrag(ctx context.Context, id string) (editor.CropRegion, error) {
	return service.withCropEditor(ctx, id, func(e *editor.CropEditor) (editor.CropRegion, error) {
		return e.End(), nil
	})
}

// DragCrop runs a whole gesture from start to end in one call.
func (service *CoreService) DragCrop(ctx context.Context, id string, mode editor.DragMode, start, end editor.Point, box editor.Box) (editor.CropRegion, error) {
	region, err := service.withCropEditor(ctx, id, func(e *editor.CropEditor) (editor.CropRegion, error) {
		if err := e.Begin(mode, start, box); err != nil {
			return e.Region(), err
		}
		if _, err := e.Move(end); err != nil {
			return e.Region(), err
		}
		return e.End(), nil
	})
	if err == nil {
		service.metrics.IncCropGesture(string(mode))
	}
	return region, err
}

// CancelCrop discards the session. The meme keeps the region it had
// before the session was opened, which is returned.
func (service *CoreService) CancelCrop(ctx context.Context, id string) (editor.CropRegion, error) {
	unlock := service.locks.Lock(id)
	defer unlock()

	s, err := service.sessions.Load(ctx, id)
	if err != nil {
		return editor.CropRegion{}, err
	}
	original := editor.RestoreCropEditor(s.Editor).Cancel()
	if err := service.sessions.Delete(ctx, id); err != nil {
		return editor.CropRegion{}, err
	}
	slog.Debug("crop session cancelled", "id", id)
	return original, nil
}

// ConfirmCrop rasterizes the session region from the original upload and
// stores the result as the edited image. On failure nothing is written and
// the session stays open.
func (service *CoreService) ConfirmCrop(ctx context.Context, id string) (*database.Meme, error) {
	unlock := service.locks.Lock(id)
	defer unlock()

	s, err := service.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	region := editor.RestoreCropEditor(s.Editor).End()

	start := service.now()
	edited, err := service.rasterize(ctx, id, region)
	service.metrics.ObserveCropConfirm(err, start)
	if err != nil {
		slog.Error("crop confirm failed", "id", id, "error", err)
		return nil, err
	}

	encoded, err := database.EncodeRegion(region)
	if err != nil {
		return nil, err
	}
	if err := service.databaseService.UpdateEdit(ctx, id, encoded, edited); err != nil {
		return nil, err
	}
	if err := service.sessions.Delete(ctx, id); err != nil {
		slog.Warn("failed to drop confirmed crop session", "id", id, "error", err)
	}
	slog.Info("crop confirmed", "id", id,
		"x", region.X, "y", region.Y, "width", region.Width, "height", region.Height,
		"output_size_bytes", len(edited))

	return service.databaseService.GetMeme(ctx, id, summaryColumns...)
}

func (service *CoreService) rasterize(ctx context.Context, id string, region editor.CropRegion) ([]byte, error) {
	meme, err := service.databaseService.GetMeme(ctx, id, "original_image", "status")
	if err != nil {
		return nil, err
	}
	if meme.Status != database.StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEditable, id, meme.Status)
	}
	if len(meme.OriginalImage) == 0 {
		return nil, fmt.Errorf("%w: meme %s", editor.ErrNoImage, id)
	}
	command := commands.NewCropCommandWithRegion(region, service.encode.Format).WithQuality(service.encode.Quality)
	return command.Execute(meme.OriginalImage)
}

// withCropEditor applies fn to the session of id as one atomic update.
// A failing fn leaves the stored session untouched.
func (service *CoreService) withCropEditor(ctx context.Context, id string, fn func(e *editor.CropEditor) (editor.CropRegion, error)) (editor.CropRegion, error) {
	unlock := service.locks.Lock(id)
	defer unlock()

	var region editor.CropRegion
	err := service.sessions.Update(ctx, id, func(s *session.Session) error {
		e := editor.RestoreCropEditor(s.Editor)
		r, err := fn(e)
		region = r
		if err != nil {
			return err
		}
		s.Editor = e.State()
		return nil
	})
	return region, err
}
