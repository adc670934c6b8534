// Package session keeps crop editing sessions between requests.
//
// A crop spans many requests: open, a series of drag gestures, then confirm
// or cancel. The editor state of each open session is held here, keyed by
// meme ID, and expires when the user walks away.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/jo-hoe/cinememe/internal/editor"
)

var (
	ErrNotFound = errors.New("crop session not found")
	// ErrConflict is returned when an update kept losing against
	// concurrent writers to the same session.
	ErrConflict = errors.New("crop session changed concurrently")
)

// DefaultTTL applies when a store is created without an expiry.
const DefaultTTL = 30 * time.Minute

// Session is one open crop of a meme.
type Session struct {
	MemeID string           `json:"memeId"`
	Editor editor.CropState `json:"editor"`
	// Natural size of the original image in pixels.
	NaturalWidth  int       `json:"naturalWidth"`
	NaturalHeight int       `json:"naturalHeight"`
	OpenedAt      time.Time `json:"openedAt"`
}

type Store interface {
	Save(ctx context.Context, s *Session) error
	// Load returns ErrNotFound for unknown and expired sessions.
	Load(ctx context.Context, memeID string) (*Session, error)
	// Update loads the session, applies fn and stores the result as one
	// atomic step. When fn fails nothing is written and its error is
	// returned as is.
	Update(ctx context.Context, memeID string, fn func(s *Session) error) error
	Delete(ctx context.Context, memeID string) error
	Close() error
}
