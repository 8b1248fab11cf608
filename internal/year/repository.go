// Package year manages gallery years, the top of the Year → Competition →
// Photo hierarchy.
package year

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/db"
	"github.com/acgallery/service/internal/patch"
)

// Year is one season of competitions.
type Year struct {
	ID           string    `json:"id"`
	Year         int       `json:"year"`
	CoverPhotoID *string   `json:"coverPhotoId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Summary is a Year as shown in listings.
type Summary struct {
	Year
	CompetitionCount int     `json:"competitionCount"`
	PhotoCount       int     `json:"photoCount"`
	CoverURL         *string `json:"coverUrl"`
}

// Changes is the field mask accepted by Update.
type Changes struct {
	Year         patch.Field[int]    `json:"year"`
	CoverPhotoID patch.Field[string] `json:"coverPhotoId"`
}

const yearColumns = `id, year, cover_photo_id, created_at, updated_at`

// Repository handles all year database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanYear(row pgx.Row) (*Year, error) {
	y := &Year{}
	err := row.Scan(&y.ID, &y.Year, &y.CoverPhotoID, &y.CreatedAt, &y.UpdatedAt)
	return y, err
}

// List returns every year, newest first, with competition and photo counts.
func (r *Repository) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT y.id, y.year, y.cover_photo_id, y.created_at, y.updated_at,
		        COUNT(DISTINCT c.id), COUNT(p.id)
		 FROM years y
		 LEFT JOIN competitions c ON c.year_id = y.id
		 LEFT JOIN photos p ON p.competition_id = c.id
		 GROUP BY y.id
		 ORDER BY y.year DESC`)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Year.Year, &s.CoverPhotoID, &s.CreatedAt, &s.UpdatedAt,
			&s.CompetitionCount, &s.PhotoCount); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a new year and returns the created record.
func (r *Repository) Create(ctx context.Context, number int) (*Year, error) {
	y, err := scanYear(r.db.QueryRow(ctx,
		`INSERT INTO years (year) VALUES ($1) RETURNING `+yearColumns,
		number,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("year already exists")
		}
		return nil, fmt.Errorf("create year: %w", err)
	}
	return y, nil
}

// FindOrCreate returns the year with the given number, inserting it first
// when missing.
func (r *Repository) FindOrCreate(ctx context.Context, number int) (*Year, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	y, err := scanYear(r.db.QueryRow(ctx,
		`INSERT INTO years (year) VALUES ($1)
		 ON CONFLICT (year) DO UPDATE SET year = EXCLUDED.year
		 RETURNING `+yearColumns,
		number,
	))
	if err != nil {
		return nil, fmt.Errorf("find or create year: %w", err)
	}
	return y, nil
}

// GetByID fetches a year by its id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Year, error) {
	y, err := scanYear(r.db.QueryRow(ctx,
		`SELECT `+yearColumns+` FROM years WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("year")
	}
	if err != nil {
		return nil, fmt.Errorf("get year by id: %w", err)
	}
	return y, nil
}

// GetByNumber fetches a year by its calendar number.
func (r *Repository) GetByNumber(ctx context.Context, number int) (*Year, error) {
	y, err := scanYear(r.db.QueryRow(ctx,
		`SELECT `+yearColumns+` FROM years WHERE year = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("year")
	}
	if err != nil {
		return nil, fmt.Errorf("get year by number: %w", err)
	}
	return y, nil
}

// Update applies the fields present in ch.
func (r *Repository) Update(ctx context.Context, id string, ch Changes) (*Year, error) {
	var cols patch.Columns
	cols.Add("updated_at", time.Now())
	if ch.Year.Set && !ch.Year.Null {
		cols.Add("year", ch.Year.Value)
	}
	if ch.CoverPhotoID.Set {
		cols.Add("cover_photo_id", ch.CoverPhotoID.Ptr())
	}

	query := fmt.Sprintf(`UPDATE years SET %s WHERE id = %s RETURNING %s`,
		cols.Clause(), cols.Placeholder(id), yearColumns)

	y, err := scanYear(r.db.QueryRow(ctx, query, cols.Args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("year")
	}
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.Conflict("year already exists")
		}
		return nil, fmt.Errorf("update year: %w", err)
	}
	return y, nil
}

// Delete removes the year row; competitions and photos cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM years WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete year: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("year")
	}
	return nil
}

// PhotoURLs returns the original and thumbnail URLs of every photo of the year.
func (r *Repository) PhotoURLs(ctx context.Context, yearID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u FROM photos p
		 JOIN competitions c ON c.id = p.competition_id
		 CROSS JOIN LATERAL (VALUES (p.original_url), (p.thumbnail_url)) AS v(u)
		 WHERE c.year_id = $1`,
		yearID,
	)
	if err != nil {
		return nil, fmt.Errorf("list year photo urls: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan year photo url: %w", err)
	}
	return urls, nil
}

// PhotoBelongs reports whether photoID is a photo of any competition of the year.
func (r *Repository) PhotoBelongs(ctx context.Context, yearID, photoID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM photos p
		   JOIN competitions c ON c.id = p.competition_id
		   WHERE c.year_id = $1 AND p.id = $2)`,
		yearID, photoID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check cover photo: %w", err)
	}
	return ok, nil
}
