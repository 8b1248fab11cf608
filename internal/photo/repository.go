// Package photo manages the photos of a competition: listing in display
// order, reordering, deletion with blob cleanup and the download proxy.
package photo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acgallery/service/internal/apperr"
)

// Photo is one uploaded image with its derived thumbnail.
type Photo struct {
	ID            string    `json:"id"`
	CompetitionID string    `json:"competitionId"`
	Filename      string    `json:"filename"`
	OriginalURL   string    `json:"originalUrl"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	Size          int64     `json:"size"`
	Order         int       `json:"order"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CompetitionRef identifies the competition a photo belongs to.
type CompetitionRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	YearID string `json:"yearId"`
	Year   int    `json:"year"`
}

// WithCompetition is a Photo together with its competition.
type WithCompetition struct {
	Photo
	Competition CompetitionRef `json:"competition"`
}

// NewPhoto holds the fields of a photo row created by the confirm phase.
type NewPhoto struct {
	CompetitionID string
	Filename      string
	OriginalURL   string
	ThumbnailURL  string
	Width         int
	Height        int
	Size          int64
	Order         int
}

// Totals aggregates the photo table.
type Totals struct {
	Count int
	Bytes int64
}

const photoColumns = `p.id, p.competition_id, p.filename, p.original_url, p.thumbnail_url,
	p.width, p.height, p.size, p."order", p.created_at, p.updated_at`

// Repository handles all photo database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPhoto(row pgx.Row, extra ...any) (*Photo, error) {
	p := &Photo{}
	dest := append([]any{
		&p.ID, &p.CompetitionID, &p.Filename, &p.OriginalURL, &p.ThumbnailURL,
		&p.Width, &p.Height, &p.Size, &p.Order, &p.CreatedAt, &p.UpdatedAt,
	}, extra...)
	return p, row.Scan(dest...)
}

// Create inserts a photo row.
func (r *Repository) Create(ctx context.Context, in NewPhoto) (*Photo, error) {
	p, err := scanPhoto(r.db.QueryRow(ctx,
		`INSERT INTO photos AS p
		   (competition_id, filename, original_url, thumbnail_url, width, height, size, "order")
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+photoColumns,
		in.CompetitionID, in.Filename, in.OriginalURL, in.ThumbnailURL,
		in.Width, in.Height, in.Size, in.Order,
	))
	if err != nil {
		return nil, fmt.Errorf("create photo: %w", err)
	}
	return p, nil
}

// CountByCompetition returns how many photos a competition has.
func (r *Repository) CountByCompetition(ctx context.Context, competitionID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM photos WHERE competition_id = $1`, competitionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return n, nil
}

// ListByCompetition returns the photos of a competition in display order.
func (r *Repository) ListByCompetition(ctx context.Context, competitionID string) ([]Photo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+photoColumns+`
		 FROM photos p
		 WHERE p.competition_id = $1
		 ORDER BY p."order" ASC, p.created_at ASC`,
		competitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	out := []Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Get fetches a photo together with its competition.
func (r *Repository) Get(ctx context.Context, id string) (*WithCompetition, error) {
	var ref CompetitionRef
	p, err := scanPhoto(r.db.QueryRow(ctx,
		`SELECT `+photoColumns+`, c.id, c.name, c.slug, y.id, y.year
		 FROM photos p
		 JOIN competitions c ON c.id = p.competition_id
		 JOIN years y ON y.id = c.year_id
		 WHERE p.id = $1`, id),
		&ref.ID, &ref.Name, &ref.Slug, &ref.YearID, &ref.Year,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("photo")
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return &WithCompetition{Photo: *p, Competition: ref}, nil
}

// SetOrder updates the display position of a photo.
func (r *Repository) SetOrder(ctx context.Context, id string, order int) (*Photo, error) {
	p, err := scanPhoto(r.db.QueryRow(ctx,
		`UPDATE photos AS p SET "order" = $2, updated_at = NOW()
		 WHERE p.id = $1
		 RETURNING `+photoColumns,
		id, order,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("photo")
	}
	if err != nil {
		return nil, fmt.Errorf("update photo order: %w", err)
	}
	return p, nil
}

// Delete removes a photo row and clears every cover reference to it in one
// transaction.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE competitions SET cover_photo_id = NULL, updated_at = NOW() WHERE cover_photo_id = $1`, id,
	); err != nil {
		return fmt.Errorf("clear competition cover: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE years SET cover_photo_id = NULL, updated_at = NOW() WHERE cover_photo_id = $1`, id,
	); err != nil {
		return fmt.Errorf("clear year cover: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("photo")
	}
	return tx.Commit(ctx)
}

// OriginalURLs returns the original URL of every photo.
func (r *Repository) OriginalURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT original_url FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("list original urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan original url: %w", err)
	}
	return urls, nil
}

// Totals counts photos and sums their sizes.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM photos`,
	).Scan(&t.Count, &t.Bytes); err != nil {
		return Totals{}, fmt.Errorf("photo totals: %w", err)
	}
	return t, nil
}

// ThumbnailByID returns the thumbnail URL of a photo.
func (r *Repository) ThumbnailByID(ctx context.Context, photoID string) (string, bool, error) {
	return r.thumbnail(ctx, `SELECT thumbnail_url FROM photos WHERE id = $1`, photoID)
}

// FirstThumbnailInCompetition returns the thumbnail of the first photo of a
// competition in display order.
func (r *Repository) FirstThumbnailInCompetition(ctx context.Context, competitionID string) (string, bool, error) {
	return r.thumbnail(ctx,
		`SELECT thumbnail_url FROM photos
		 WHERE competition_id = $1
		 ORDER BY "order" ASC, created_at ASC
		 LIMIT 1`, competitionID)
}

// FirstThumbnailInYear returns the thumbnail of the first photo of a year,
// ordered by competition order then photo order.
func (r *Repository) FirstThumbnailInYear(ctx context.Context, yearID string) (string, bool, error) {
	return r.thumbnail(ctx,
		`SELECT p.thumbnail_url FROM photos p
		 JOIN competitions c ON c.id = p.competition_id
		 WHERE c.year_id = $1
		 ORDER BY c."order" ASC, p."order" ASC, p.created_at ASC
		 LIMIT 1`, yearID)
}

func (r *Repository) thumbnail(ctx context.Context, query, arg string) (string, bool, error) {
	var url string
	err := r.db.QueryRow(ctx, query, arg).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup thumbnail: %w", err)
	}
	return url, true, nil
}
