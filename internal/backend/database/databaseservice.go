package database

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNotFound       = errors.New("meme not found")
	ErrStatusConflict = errors.New("meme is not in the expected status")
	ErrUnknownColumn  = errors.New("unknown column")
)

type DatabaseService interface {
	CreateDatabase(ctx context.Context) (*sql.DB, error)
	DoesDatabaseExist(ctx context.Context) bool
	Close() error

	// CreateMeme stores a new pending meme ranked before every existing one
	// and returns its generated ID.
	CreateMeme(ctx context.Context, meme *Meme) (string, error)
	// GetMeme loads one meme. With columns given only those are selected;
	// the others stay at their zero value.
	GetMeme(ctx context.Context, id string, columns ...string) (*Meme, error)
	ListMemes(ctx context.Context, filter ListFilter, columns ...string) ([]*Meme, error)
	CountMemes(ctx context.Context, filter ListFilter) (int64, error)

	UpdateEdit(ctx context.Context, id string, cropRegion string, edited []byte) error
	UpdateOverlays(ctx context.Context, id string, overlays string) error
	UpdateComposition(ctx context.Context, id string, composition Composition) error
	// SetStatus moves a meme from one status to another. It fails with
	// ErrStatusConflict when the meme is not currently in from.
	SetStatus(ctx context.Context, id string, from, to Status) error
	IncrementLikes(ctx context.Context, id string) (int64, error)
	// UpdateRanks writes all given id to rank pairs in one transaction.
	UpdateRanks(ctx context.Context, ranks map[string]string) error
	DeleteMeme(ctx context.Context, id string) error
}
