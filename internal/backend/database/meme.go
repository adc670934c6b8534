package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jo-hoe/cinememe/internal/editor"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus accepts the three moderation states.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status: %q", s)
}

type Meme struct {
	ID            string `db:"id"`
	Title         string `db:"title"`
	TopText       string `db:"top_text"`
	BottomText    string `db:"bottom_text"`
	OriginalImage []byte `db:"original_image"` // normalized PNG upload
	EditedImage   []byte `db:"edited_image"`   // last confirmed crop, nil until cropped
	ComposedImage []byte `db:"composed_image"` // edited image with captions burned in
	CropRegion    string `db:"crop_region"`    // JSON encoded editor.CropRegion
	Overlays      string `db:"overlays"`       // JSON encoded editor.Overlays
	Status        Status `db:"status"`
	Likes         int64  `db:"likes"`
	Rank          string `db:"feed_rank"` // LexoRank string to maintain ordering
	CreatedAt     int64  `db:"created_at"`
}

// Created returns CreatedAt as a time.
func (m *Meme) Created() time.Time {
	return time.Unix(m.CreatedAt, 0).UTC()
}

// Region decodes the stored crop region. An empty column is the full image.
func (m *Meme) Region() (editor.CropRegion, error) {
	if m.CropRegion == "" {
		return editor.FullRegion(), nil
	}
	var r editor.CropRegion
	if err := json.Unmarshal([]byte(m.CropRegion), &r); err != nil {
		return editor.CropRegion{}, fmt.Errorf("failed to decode crop region of meme %s: %w", m.ID, err)
	}
	return r.Normalize(), nil
}

// OverlayPositions decodes the stored caption anchors, falling back to the
// defaults for an empty column.
func (m *Meme) OverlayPositions() (editor.Overlays, error) {
	if m.Overlays == "" {
		return editor.DefaultOverlays(), nil
	}
	var o editor.Overlays
	if err := json.Unmarshal([]byte(m.Overlays), &o); err != nil {
		return editor.Overlays{}, fmt.Errorf("failed to decode overlays of meme %s: %w", m.ID, err)
	}
	o.Top = o.Top.Clamp()
	o.Bottom = o.Bottom.Clamp()
	return o, nil
}

// DisplayImage is the most finished rendition available.
func (m *Meme) DisplayImage() []byte {
	switch {
	case len(m.ComposedImage) > 0:
		return m.ComposedImage
	case len(m.EditedImage) > 0:
		return m.EditedImage
	}
	return m.OriginalImage
}

// EncodeRegion is the column form of a crop region.
func EncodeRegion(r editor.CropRegion) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("could not encode crop region: %w", err)
	}
	return string(b), nil
}

// EncodeOverlays is the column form of the caption anchors.
func EncodeOverlays(o editor.Overlays) (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("could not encode overlays: %w", err)
	}
	return string(b), nil
}

// Composition is what a submit writes back to a meme.
type Composition struct {
	TopText    string
	BottomText string
	Overlays   string
	Composed   []byte
}

// ListFilter narrows ListMemes and CountMemes. Zero values do not filter.
type ListFilter struct {
	Status Status
	Since  time.Time
	Limit  int
	Offset int
}
