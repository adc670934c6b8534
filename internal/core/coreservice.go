package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jo-hoe/cinememe/internal/backend/commands"
	"github.com/jo-hoe/cinememe/internal/backend/commandstructure"
	"github.com/jo-hoe/cinememe/internal/backend/database"
	"github.com/jo-hoe/cinememe/internal/backend/session"
	"github.com/jo-hoe/cinememe/internal/common"
	"github.com/jo-hoe/cinememe/internal/editor"
)

const pngConverterName = "PngConverterCommand"

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	sessions        session.Store
	metrics         *common.Metrics
	upload          *commandstructure.CommandInvoker
	encode          editor.EncodeOptions
	locks           *keyedMutex
	now             func() time.Time
}

// NewCoreService connects the configured database and session store.
func NewCoreService(ctx context.Context, config *ServiceConfig, metrics *common.Metrics) (*CoreService, error) {
	databaseService, err := getDatabaseService(ctx, config)
	if err != nil {
		return nil, err
	}
	sessions, err := getSessionStore(ctx, config)
	if err != nil {
		_ = databaseService.Close()
		return nil, err
	}
	service, err := NewCoreServiceWith(config, databaseService, sessions, metrics)
	if err != nil {
		_ = sessions.Close()
		_ = databaseService.Close()
		return nil, err
	}
	return service, nil
}

// NewCoreServiceWith wires already constructed dependencies.
func NewCoreServiceWith(config *ServiceConfig, databaseService database.DatabaseService, sessions session.Store, metrics *common.Metrics) (*CoreService, error) {
	format, err := editor.ParseFormat(config.Editor.OutputFormat)
	if err != nil {
		return nil, err
	}
	upload, err := commandstructure.NewCommandInvokerFromConfigs("upload", commandstructure.DefaultRegistry, uploadCommands(config.Commands))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload pipeline: %w", err)
	}
	return &CoreService{
		config:          config,
		databaseService: databaseService,
		sessions:        sessions,
		metrics:         metrics,
		upload:          upload,
		encode:          editor.EncodeOptions{Format: format, Quality: config.Editor.JPEGQuality},
		locks:           newKeyedMutex(),
		now:             time.Now,
	}, nil
}

// uploadCommands makes sure every upload is turned into PNG before any
// configured step runs.
func uploadCommands(configured []commandstructure.CommandConfig) []commandstructure.CommandConfig {
	for _, c := range configured {
		if c.Name == pngConverterName {
			return configured
		}
	}
	return append([]commandstructure.CommandConfig{{Name: pngConverterName}}, configured...)
}

func (service *CoreService) Close() error {
	return errors.Join(service.sessions.Close(), service.databaseService.Close())
}

// Ready reports whether the database answers.
func (service *CoreService) Ready(ctx context.Context) bool {
	return service.databaseService.DoesDatabaseExist(ctx)
}

// AddMeme normalizes an upload and stores it as a new pending meme.
func (service *CoreService) AddMeme(ctx context.Context, title string, upload []byte) (*database.Meme, error) {
	if len(upload) == 0 {
		return nil, editor.ErrNoImage
	}
	if limit := service.config.Editor.MaxUploadBytes; limit > 0 && int64(len(upload)) > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(upload), limit)
	}

	start := service.now()
	normalized, err := service.upload.Execute(upload)
	service.metrics.ObservePipeline("upload", start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	region, err := database.EncodeRegion(editor.FullRegion())
	if err != nil {
		return nil, err
	}
	overlays, err := database.EncodeOverlays(editor.DefaultOverlays())
	if err != nil {
		return nil, err
	}

	id, err := service.databaseService.CreateMeme(ctx, &database.Meme{
		Title:         title,
		OriginalImage: normalized,
		CropRegion:    region,
		Overlays:      overlays,
		CreatedAt:     service.now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store meme: %w", err)
	}
	service.metrics.IncUpload()
	slog.Info("meme uploaded", "id", id, "input_size_bytes", len(upload), "stored_size_bytes", len(normalized))

	return service.databaseService.GetMeme(ctx, id, summaryColumns...)
}

// summaryColumns is every column except the image blobs.
var summaryColumns = []string{"id", "title", "top_text", "bottom_text", "crop_region", "overlays", "status", "likes", "feed_rank", "created_at"}

// GetMeme returns a meme without its images.
func (service *CoreService) GetMeme(ctx context.Context, id string) (*database.Meme, error) {
	return service.databaseService.GetMeme(ctx, id, summaryColumns...)
}

// ImageKind selects one rendition of a meme.
type ImageKind string

const (
	ImageOriginal ImageKind = "original"
	ImageEdited   ImageKind = "edited"
	ImageComposed ImageKind = "composed"
	ImageDisplay  ImageKind = "display"
)

// Image returns the requested rendition. Missing edited or composed images
// yield database.ErrNotFound.
func (service *CoreService) Image(ctx context.Context, id string, kind ImageKind) ([]byte, error) {
	var columns []string
	switch kind {
	case ImageOriginal:
		columns = []string{"original_image"}
	case ImageEdited:
		columns = []string{"edited_image"}
	case ImageComposed:
		columns = []string{"composed_image"}
	case ImageDisplay, "":
		columns = []string{"original_image", "edited_image", "composed_image"}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownImageKind, kind)
	}

	meme, err := service.databaseService.GetMeme(ctx, id, columns...)
	if err != nil {
		return nil, err
	}
	var data []byte
	switch kind {
	case ImageOriginal:
		data = meme.OriginalImage
	case ImageEdited:
		data = meme.EditedImage
	case ImageComposed:
		data = meme.ComposedImage
	default:
		data = meme.DisplayImage()
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s has no %s image", database.ErrNotFound, id, kind)
	}
	return data, nil
}

// Thumbnail returns the display image scaled to the configured width.
func (service *CoreService) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	data, err := service.Image(ctx, id, ImageDisplay)
	if err != nil {
		return nil, err
	}
	command, err := commands.NewThumbnailCommand(service.config.Editor.ThumbnailWidth)
	if err != nil {
		return nil, err
	}
	start := service.now()
	thumb, err := command.Execute(data)
	service.metrics.ObservePipeline("thumbnail", start)
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail of %s: %w", id, err)
	}
	return thumb, nil
}

// DeleteMeme removes a meme and any crop session open on it.
func (service *CoreService) DeleteMeme(ctx context.Context, id string) error {
	unlock := service.locks.Lock(id)
	defer unlock()

	if err := service.sessions.Delete(ctx, id); err != nil {
		slog.Warn("failed to drop crop session of deleted meme", "id", id, "error", err)
	}
	if err := service.databaseService.DeleteMeme(ctx, id); err != nil {
		return err
	}
	slog.Info("meme deleted", "id", id)
	return nil
}

func getDatabaseService(ctx context.Context, config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(ctx, config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

func getSessionStore(ctx context.Context, config *ServiceConfig) (session.Store, error) {
	if config.Redis.Addr == "" {
		slog.Info("crop sessions kept in memory", "ttl", config.Editor.SessionTTL)
		return session.NewMemoryStore(config.Editor.SessionTTL), nil
	}
	store, err := session.NewRedisStore(ctx, session.RedisOptions{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		TTL:      config.Editor.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	slog.Info("crop sessions kept in redis", "addr", config.Redis.Addr, "ttl", config.Editor.SessionTTL)
	return store, nil
}
