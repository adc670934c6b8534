package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const memesTable = "memes"

// memeColumns is the projection allowlist for GetMeme and ListMemes.
var memeColumns = []string{
	"id",
	"title",
	"top_text",
	"bottom_text",
	"original_image",
	"edited_image",
	"composed_image",
	"crop_region",
	"overlays",
	"status",
	"likes",
	"feed_rank",
	"created_at",
}

type SQLiteDatabase struct {
	db               *sql.DB
	builder          *goqu.Database
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// A second connection to ":memory:" would open a second, empty database.
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		builder:          goqu.Dialect("sqlite3").DB(db),
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase(ctx context.Context) (*sql.DB, error) {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("could not set goose dialect to sqlite3: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return nil, fmt.Errorf("could not migrate sqlite: %w", err)
	}
	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist(ctx context.Context) bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	return s.db.PingContext(ctx) == nil
}

func (s *SQLiteDatabase) CreateMeme(ctx context.Context, meme *Meme) (string, error) {
	if meme == nil || len(meme.OriginalImage) == 0 {
		return "", fmt.Errorf("meme without image")
	}
	id, err := generateID()
	if err != nil {
		return "", err
	}
	createdAt := meme.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	err = s.withTx(ctx, func(tx *goqu.TxDatabase) error {
		var first sql.NullString
		if _, err := tx.From(memesTable).Prepared(true).
			Select(goqu.MIN("feed_rank")).
			Where(goqu.C("feed_rank").Neq("")).
			ScanValContext(ctx, &first); err != nil {
			return fmt.Errorf("could not read first rank: %w", err)
		}

		_, err := tx.Insert(memesTable).Prepared(true).Rows(goqu.Record{
			"id":             id,
			"title":          meme.Title,
			"top_text":       meme.TopText,
			"bottom_text":    meme.BottomText,
			"original_image": meme.OriginalImage,
			"edited_image":   meme.EditedImage,
			"composed_image": meme.ComposedImage,
			"crop_region":    meme.CropRegion,
			"overlays":       meme.Overlays,
			"status":         string(StatusPending),
			"likes":          0,
			"feed_rank":      Before(first.String),
			"created_at":     createdAt,
		}).Executor().ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("could not insert meme: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteDatabase) GetMeme(ctx context.Context, id string, columns ...string) (*Meme, error) {
	cols, err := selectColumns(columns)
	if err != nil {
		return nil, err
	}

	var meme Meme
	found, err := s.builder.From(memesTable).Prepared(true).
		Select(cols...).
		Where(goqu.C("id").Eq(id)).
		ScanStructContext(ctx, &meme)
	if err != nil {
		return nil, fmt.Errorf("could not load meme %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &meme, nil
}

func (s *SQLiteDatabase) ListMemes(ctx context.Context, filter ListFilter, columns ...string) ([]*Meme, error) {
	cols, err := selectColumns(columns)
	if err != nil {
		return nil, err
	}

	ds := s.filtered(filter).
		Select(cols...).
		Order(goqu.C("feed_rank").Asc(), goqu.C("created_at").Desc(), goqu.C("id").Asc())
	// SQLite only accepts OFFSET together with LIMIT.
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
		if filter.Offset > 0 {
			ds = ds.Offset(uint(filter.Offset))
		}
	}

	var memes []*Meme
	if err := ds.ScanStructsContext(ctx, &memes); err != nil {
		return nil, fmt.Errorf("could not list memes: %w", err)
	}
	return memes, nil
}

func (s *SQLiteDatabase) CountMemes(ctx context.Context, filter ListFilter) (int64, error) {
	n, err := s.filtered(filter).CountContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not count memes: %w", err)
	}
	return n, nil
}

func (s *SQLiteDatabase) UpdateEdit(ctx context.Context, id string, cropRegion string, edited []byte) error {
	// A new crop invalidates any composition made from the previous one.
	return s.update(ctx, s.builder, id, goqu.Record{
		"crop_region":    cropRegion,
		"edited_image":   edited,
		"composed_image": nil,
	})
}

func (s *SQLiteDatabase) UpdateOverlays(ctx context.Context, id string, overlays string) error {
	return s.update(ctx, s.builder, id, goqu.Record{"overlays": overlays})
}

func (s *SQLiteDatabase) UpdateComposition(ctx context.Context, id string, composition Composition) error {
	return s.update(ctx, s.builder, id, goqu.Record{
		"top_text":       composition.TopText,
		"bottom_text":    composition.BottomText,
		"overlays":       composition.Overlays,
		"composed_image": composition.Composed,
	})
}

func (s *SQLiteDatabase) SetStatus(ctx context.Context, id string, from, to Status) error {
	res, err := s.builder.Update(memesTable).Prepared(true).
		Set(goqu.Record{"status": string(to)}).
		Where(goqu.C("id").Eq(id), goqu.C("status").Eq(string(from))).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not update status of meme %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update status of meme %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	var current string
	found, err := s.builder.From(memesTable).Prepared(true).
		Select(goqu.C("status")).
		Where(goqu.C("id").Eq(id)).
		ScanValContext(ctx, &current)
	if err != nil {
		return fmt.Errorf("could not read status of meme %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("%w: meme %s is %s, not %s", ErrStatusConflict, id, current, from)
}

func (s *SQLiteDatabase) IncrementLikes(ctx context.Context, id string) (int64, error) {
	var likes int64
	err := s.withTx(ctx, func(tx *goqu.TxDatabase) error {
		if err := s.update(ctx, tx, id, goqu.Record{"likes": goqu.L("likes + 1")}); err != nil {
			return err
		}
		if _, err := tx.From(memesTable).Prepared(true).
			Select(goqu.C("likes")).
			Where(goqu.C("id").Eq(id)).
			ScanValContext(ctx, &likes); err != nil {
			return fmt.Errorf("could not read likes of meme %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return likes, nil
}

func (s *SQLiteDatabase) UpdateRanks(ctx context.Context, ranks map[string]string) error {
	if len(ranks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(ranks))
	for id := range ranks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return s.withTx(ctx, func(tx *goqu.TxDatabase) error {
		for _, id := range ids {
			if err := s.update(ctx, tx, id, goqu.Record{"feed_rank": ranks[id]}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteDatabase) DeleteMeme(ctx context.Context, id string) error {
	res, err := s.builder.Delete(memesTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not delete meme %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// updater is satisfied by both goqu.Database and goqu.TxDatabase.
type updater interface {
	Update(table interface{}) *goqu.UpdateDataset
}

func (s *SQLiteDatabase) update(ctx context.Context, b updater, id string, rec goqu.Record) error {
	res, err := b.Update(memesTable).Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id)).
		Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("could not update meme %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update meme %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteDatabase) filtered(filter ListFilter) *goqu.SelectDataset {
	ds := s.builder.From(memesTable).Prepared(true)
	if filter.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(filter.Status)))
	}
	if !filter.Since.IsZero() {
		ds = ds.Where(goqu.C("created_at").Gte(filter.Since.Unix()))
	}
	return ds
}

func (s *SQLiteDatabase) withTx(ctx context.Context, fn func(tx *goqu.TxDatabase) error) error {
	tx, err := s.builder.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin tx: %w", err)
	}
	return tx.Wrap(func() error { return fn(tx) })
}

func selectColumns(columns []string) ([]interface{}, error) {
	if len(columns) == 0 {
		columns = memeColumns
	}
	cols := make([]interface{}, 0, len(columns))
	for _, c := range columns {
		if !slices.Contains(memeColumns, c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
		cols = append(cols, goqu.C(c))
	}
	return cols, nil
}

// gooseLogger routes migration output to slog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(format, v...))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
	os.Exit(1)
}
