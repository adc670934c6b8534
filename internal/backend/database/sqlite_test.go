package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) DatabaseService {
	t.Helper()

	ds, err := NewDatabase(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func mustCreate(t *testing.T, ds DatabaseService, meme *Meme) string {
	t.Helper()
	id, err := ds.CreateMeme(context.Background(), meme)
	if err != nil {
		t.Fatalf("CreateMeme error: %v", err)
	}
	return id
}

func TestSQLite_DoesDatabaseExist(t *testing.T) {
	ds := newTestDB(t)
	if !ds.DoesDatabaseExist(context.Background()) {
		t.Fatalf("expected DoesDatabaseExist to return true")
	}
}

func TestSQLite_CreateDatabaseIsIdempotent(t *testing.T) {
	ds := newTestDB(t)
	if _, err := ds.CreateDatabase(context.Background()); err != nil {
		t.Fatalf("second CreateDatabase error: %v", err)
	}
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	if _, err := NewDatabase(context.Background(), "postgres", ""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestSQLite_CreateMeme_Defaults(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	id := mustCreate(t, ds, &Meme{Title: "Here's looking at you", OriginalImage: []byte("original")})

	meme, err := ds.GetMeme(ctx, id)
	if err != nil {
		t.Fatalf("GetMeme error: %v", err)
	}
	if meme.ID != id {
		t.Errorf("expected ID %q, got %q", id, meme.ID)
	}
	if meme.Status != StatusPending {
		t.Errorf("expected status pending, got %q", meme.Status)
	}
	if meme.Rank == "" {
		t.Errorf("Rank is empty; expected non-empty")
	}
	if meme.CreatedAt == 0 {
		t.Errorf("CreatedAt is zero")
	}
	if !bytes.Equal(meme.OriginalImage, []byte("original")) {
		t.Errorf("OriginalImage mismatch: got %q", string(meme.OriginalImage))
	}
	if len(meme.EditedImage) != 0 || len(meme.ComposedImage) != 0 {
		t.Errorf("expected no edited or composed image on a new meme")
	}

	if _, err := ds.CreateMeme(ctx, &Meme{Title: "empty"}); err == nil {
		t.Fatalf("expected error for meme without image")
	}
}

func TestSQLite_NewestMemeIsRankedFirst(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	first := mustCreate(t, ds, &Meme{OriginalImage: []byte{1}})
	second := mustCreate(t, ds, &Meme{OriginalImage: []byte{2}})
	third := mustCreate(t, ds, &Meme{OriginalImage: []byte{3}})

	memes, err := ds.ListMemes(ctx, ListFilter{}, "id", "feed_rank")
	if err != nil {
		t.Fatalf("ListMemes error: %v", err)
	}
	want := []string{third, second, first}
	if len(memes) != len(want) {
		t.Fatalf("expected %d memes, got %d", len(want), len(memes))
	}
	for i, id := range want {
		if memes[i].ID != id {
			t.Fatalf("position %d: expected %q, got %q", i, id, memes[i].ID)
		}
	}
}

func TestSQLite_GetMeme_Projection(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	id := mustCreate(t, ds, &Meme{Title: "t", OriginalImage: []byte{0x01, 0x02}})

	meme, err := ds.GetMeme(ctx, id, "id", "feed_rank")
	if err != nil {
		t.Fatalf("GetMeme(id, feed_rank) error: %v", err)
	}
	if meme.ID != id || meme.Rank == "" {
		t.Errorf("expected id and rank to be selected, got %+v", meme)
	}
	if meme.OriginalImage != nil {
		t.Errorf("OriginalImage is not nil; expected nil when not selected")
	}
	if meme.Title != "" {
		t.Errorf("Title is %q; expected empty when not selected", meme.Title)
	}
}

func TestSQLite_GetMeme_UnknownColumnAndMissing(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	if _, err := ds.GetMeme(ctx, "x", "nonexistent_field"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if _, err := ds.ListMemes(ctx, ListFilter{}, "id; DROP TABLE memes"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if _, err := ds.GetMeme(ctx, "non-existent-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_ListMemes_FilterAndPaging(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).Unix()
	oldID := mustCreate(t, ds, &Meme{OriginalImage: []byte{1}, CreatedAt: old})
	var recent []string
	for i := 0; i < 5; i++ {
		recent = append(recent, mustCreate(t, ds, &Meme{OriginalImage: []byte{byte(i)}}))
	}
	for _, id := range append([]string{oldID}, recent[:4]...) {
		if err := ds.SetStatus(ctx, id, StatusPending, StatusApproved); err != nil {
			t.Fatalf("SetStatus error: %v", err)
		}
	}

	approved := ListFilter{Status: StatusApproved}
	n, err := ds.CountMemes(ctx, approved)
	if err != nil {
		t.Fatalf("CountMemes error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 approved memes, got %d", n)
	}

	approved.Since = time.Now().Add(-24 * time.Hour)
	n, err = ds.CountMemes(ctx, approved)
	if err != nil {
		t.Fatalf("CountMemes error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 approved memes in the last day, got %d", n)
	}

	approved.Limit = 3
	approved.Offset = 3
	page, err := ds.ListMemes(ctx, approved, "id")
	if err != nil {
		t.Fatalf("ListMemes error: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 meme on the second page, got %d", len(page))
	}
	// Newest first: recent[3], recent[2], recent[1] on page one, recent[0] on page two.
	if page[0].ID != recent[0] {
		t.Fatalf("expected %q on second page, got %q", recent[0], page[0].ID)
	}
}

func TestSQLite_SetStatus_Transitions(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	id := mustCreate(t, ds, &Meme{OriginalImage: []byte{1}})

	if err := ds.SetStatus(ctx, id, StatusPending, StatusRejected); err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if err := ds.SetStatus(ctx, id, StatusPending, StatusApproved); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := ds.SetStatus(ctx, "missing", StatusPending, StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	meme, err := ds.GetMeme(ctx, id, "status")
	if err != nil {
		t.Fatalf("GetMeme error: %v", err)
	}
	if meme.Status != StatusRejected {
		t.Fatalf("expected status rejected, got %q", meme.Status)
	}
}

func TestSQLite_UpdateEditAndComposition(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	id := mustCreate(t, ds, &Meme{OriginalImage: []byte("orig")})

	if err := ds.UpdateEdit(ctx, id, `{"x":10,"y":10,"width":50,"height":50}`, []byte("edited")); err != nil {
		t.Fatalf("UpdateEdit error: %v", err)
	}
	if err := ds.UpdateOverlays(ctx, id, `{"top":{"x":40,"y":20},"bottom":{"x":50,"y":90}}`); err != nil {
		t.Fatalf("UpdateOverlays error: %v", err)
	}
	if err := ds.UpdateComposition(ctx, id, Composition{
		TopText:    "top",
		BottomText: "bottom",
		Overlays:   `{"top":{"x":40,"y":20},"bottom":{"x":60,"y":80}}`,
		Composed:   []byte("composed"),
	}); err != nil {
		t.Fatalf("UpdateComposition error: %v", err)
	}

	meme, err := ds.GetMeme(ctx, id)
	if err != nil {
		t.Fatalf("GetMeme error: %v", err)
	}
	region, err := meme.Region()
	if err != nil {
		t.Fatalf("Region error: %v", err)
	}
	if region.X != 10 || region.Width != 50 {
		t.Errorf("unexpected region %+v", region)
	}
	overlays, err := meme.OverlayPositions()
	if err != nil {
		t.Fatalf("OverlayPositions error: %v", err)
	}
	if overlays.Bottom.X != 60 || overlays.Bottom.Y != 80 {
		t.Errorf("unexpected overlays %+v", overlays)
	}
	if meme.TopText != "top" || meme.BottomText != "bottom" {
		t.Errorf("unexpected captions %q / %q", meme.TopText, meme.BottomText)
	}
	if !bytes.Equal(meme.DisplayImage(), []byte("composed")) {
		t.Errorf("expected composed image to be displayed, got %q", string(meme.DisplayImage()))
	}

	if err := ds.UpdateEdit(ctx, "missing", "", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_IncrementLikes(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	id := mustCreate(t, ds, &Meme{OriginalImage: []byte{1}})

	for want := int64(1); want <= 3; want++ {
		got, err := ds.IncrementLikes(ctx, id)
		if err != nil {
			t.Fatalf("IncrementLikes error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d likes, got %d", want, got)
		}
	}
	if _, err := ds.IncrementLikes(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_UpdateRanks(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	a := mustCreate(t, ds, &Meme{OriginalImage: []byte{1}})
	b := mustCreate(t, ds, &Meme{OriginalImage: []byte{2}})

	// b is on top; put a first.
	if err := ds.UpdateRanks(ctx, map[string]string{a: "0U"}); err != nil {
		t.Fatalf("UpdateRanks error: %v", err)
	}
	memes, err := ds.ListMemes(ctx, ListFilter{}, "id")
	if err != nil {
		t.Fatalf("ListMemes error: %v", err)
	}
	if memes[0].ID != a || memes[1].ID != b {
		t.Fatalf("expected order [%s %s], got [%s %s]", a, b, memes[0].ID, memes[1].ID)
	}

	err = ds.UpdateRanks(ctx, map[string]string{b: "00U", "missing": "1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// The transaction rolled back, b keeps its rank.
	meme, err := ds.GetMeme(ctx, b, "feed_rank")
	if err != nil {
		t.Fatalf("GetMeme error: %v", err)
	}
	if meme.Rank == "00U" {
		t.Fatalf("expected rank update of %s to be rolled back", b)
	}
}

func TestSQLite_DeleteMeme(t *testing.T) {
	ds := newTestDB(t)
	ctx := context.Background()
	id1 := mustCreate(t, ds, &Meme{OriginalImage: []byte("a")})
	id2 := mustCreate(t, ds, &Meme{OriginalImage: []byte("b")})

	if err := ds.DeleteMeme(ctx, id1); err != nil {
		t.Fatalf("DeleteMeme error: %v", err)
	}
	if err := ds.DeleteMeme(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	memes, err := ds.ListMemes(ctx, ListFilter{}, "id")
	if err != nil {
		t.Fatalf("ListMemes error: %v", err)
	}
	if len(memes) != 1 || memes[0].ID != id2 {
		t.Fatalf("expected only %q to remain, got %+v", id2, memes)
	}
}
