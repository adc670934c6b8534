package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jo-hoe/cinememe/internal/backend/database"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100

	feedLockKey = "\x00feed"
)

// Moderate moves a pending meme to approved or rejected. Every other
// transition fails with ErrInvalidTransition.
func (service *CoreService) Moderate(ctx context.Context, id string, to database.Status) error {
	if to != database.StatusApproved && to != database.StatusRejected {
		return fmt.Errorf("%w: to %q", ErrInvalidTransition, to)
	}
	unlock := service.locks.Lock(id)
	defer unlock()

	err := service.databaseService.SetStatus(ctx, id, database.StatusPending, to)
	if errors.Is(err, database.ErrStatusConflict) {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	if err != nil {
		return err
	}
	if err := service.sessions.Delete(ctx, id); err != nil {
		slog.Warn("failed to drop crop session of moderated meme", "id", id, "error", err)
	}
	service.metrics.IncModeration(string(to))
	slog.Info("meme moderated", "id", id, "status", to)
	return nil
}

// FeedQuery selects a page of approved memes. A zero Since shows all time.
type FeedQuery struct {
	Since time.Duration
	Page  int
	Size  int
}

type FeedPage struct {
	Memes   []*database.Meme
	Page    int
	Size    int
	Total   int64
	HasNext bool
}

// ListFeed returns approved memes in feed order, without image data.
func (service *CoreService) ListFeed(ctx context.Context, query FeedQuery) (*FeedPage, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Size < 1 {
		query.Size = DefaultPageSize
	}
	query.Size = min(query.Size, MaxPageSize)

	filter := database.ListFilter{
		Status: database.StatusApproved,
		Limit:  query.Size,
		Offset: (query.Page - 1) * query.Size,
	}
	if query.Since > 0 {
		filter.Since = service.now().Add(-query.Since)
	}

	total, err := service.databaseService.CountMemes(ctx, filter)
	if err != nil {
		return nil, err
	}
	memes, err := service.databaseService.ListMemes(ctx, filter, summaryColumns...)
	if err != nil {
		return nil, err
	}
	return &FeedPage{
		Memes:   memes,
		Page:    query.Page,
		Size:    query.Size,
		Total:   total,
		HasNext: int64(query.Page*query.Size) < total,
	}, nil
}

// ListPending returns the moderation queue, newest first.
func (service *CoreService) ListPending(ctx context.Context) ([]*database.Meme, error) {
	return service.databaseService.ListMemes(ctx, database.ListFilter{Status: database.StatusPending}, summaryColumns...)
}

// Like adds one like to an approved meme and returns the new count.
func (service *CoreService) Like(ctx context.Context, id string) (int64, error) {
	meme, err := service.databaseService.GetMeme(ctx, id, "status")
	if err != nil {
		return 0, err
	}
	if meme.Status != database.StatusApproved {
		return 0, fmt.Errorf("%w: %s is %s", ErrNotPublished, id, meme.Status)
	}
	likes, err := service.databaseService.IncrementLikes(ctx, id)
	if err != nil {
		return 0, err
	}
	service.metrics.IncLike()
	return likes, nil
}

type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

// ParseDirection accepts "up" and "down".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	}
	return 0, fmt.Errorf("unknown direction: %q", s)
}

// MoveMeme swaps an approved meme with its neighbour in the feed. Moving
// past either end is a no-op.
func (service *CoreService) MoveMeme(ctx context.Context, id string, direction Direction) error {
	unlock := service.locks.Lock(feedLockKey)
	defer unlock()

	memes, err := service.databaseService.ListMemes(ctx, database.ListFilter{Status: database.StatusApproved}, "id", "feed_rank")
	if err != nil {
		return err
	}
	order := make([]string, len(memes))
	existing := make(map[string]string, len(memes))
	for i, m := range memes {
		order[i] = m.ID
		existing[m.ID] = m.Rank
	}

	idx := slices.Index(order, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s is not in the feed", database.ErrNotFound, id)
	}
	target := idx + int(direction)
	if target < 0 || target >= len(order) {
		return nil
	}
	order[idx], order[target] = order[target], order[idx]

	updates := database.Reorder(existing, order)
	if err := service.databaseService.UpdateRanks(ctx, updates); err != nil {
		return err
	}
	slog.Debug("meme moved", "id", id, "from", idx, "to", target, "rank_updates", len(updates))
	return nil
}
