// Package competition manages the competitions of a year, identified
// publicly by a slug unique within the year.
package competition

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
	"github.com/acgallery/service/internal/year"
)

// ErrDuplicateSlug is reported when a year already has a competition whose
// name maps to the same slug.
var ErrDuplicateSlug = apperr.Conflict("A competition with this name already exists for this year")

// Competition is one event of a year.
type Competition struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Date         time.Time `json:"date"`
	Location     *string   `json:"location"`
	Description  *string   `json:"description"`
	CoverPhotoID *string   `json:"coverPhotoId"`
	YearID       string    `json:"yearId"`
	Order        int       `json:"order"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WithYear is a Competition together with its year.
type WithYear struct {
	Competition
	Year year.Year `json:"year"`
}

// Summary is a Competition as shown in listings.
type Summary struct {
	WithYear
	PhotoCount int     `json:"photoCount"`
	CoverURL   *string `json:"coverUrl"`
}

// NewCompetition holds the columns of a competition insert.
type NewCompetition struct {
	YearID      string
	Name        string
	Slug        string
	Date        time.Time
	Location    *string
	Description *string
}

// Changes is the field mask accepted by Update. The slug and parsed date are
// filled in by the service from Name and Date.
type Changes struct {
	Name         patch.Field[string] `json:"name"`
	Date         patch.Field[string] `json:"date"`
	Location     patch.Field[string] `json:"location"`
	Description  patch.Field[string] `json:"description"`
	CoverPhotoID patch.Field[string] `json:"coverPhotoId"`
	Order        patch.Field[int]    `json:"order"`

	slug string
	date time.Time
}

const competitionColumns = `c.id, c.name, c.slug, c.date, c.location, c.description,
	c.cover_photo_id, c.year_id, c."order", c.created_at, c.updated_at`

const withYearColumns = competitionColumns + `,
	y.id, y.year, y.cover_photo_id, y.created_at, y.updated_at`

// Repository handles all competition database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func competitionDest(c *Competition) []any {
	return []any{
		&c.ID, &c.Name, &c.Slug, &c.Date, &c.Location, &c.Description,
		&c.CoverPhotoID, &c.YearID, &c.Order, &c.CreatedAt, &c.UpdatedAt,
	}
}

func withYearDest(c *WithYear) []any {
	return append(competitionDest(&c.Competition),
		&c.Year.ID, &c.Year.Year, &c.Year.CoverPhotoID, &c.Year.CreatedAt, &c.Year.UpdatedAt)
}

func scanCompetition(row pgx.Row) (*Competition, error) {
	c := &Competition{}
	return c, row.Scan(competitionDest(c)...)
}

func scanWithYear(row pgx.Row) (*WithYear, error) {
	c := &WithYear{}
	return c, row.Scan(withYearDest(c)...)
}

// List returns competitions, newest date first, with photo counts. An empty
// yearID lists every year.
func (r *Repository) List(ctx context.Context, yearID string) ([]Summary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+withYearColumns+`, COUNT(p.id)
		 FROM competitions c
		 JOIN years y ON y.id = c.year_id
		 LEFT JOIN photos p ON p.competition_id = c.id
		 WHERE $1 = '' OR c.year_id::text = $1
		 GROUP BY c.id, y.id
		 ORDER BY c.date DESC`,
		yearID,
	)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(append(withYearDest(&s.WithYear), &s.PhotoCount)...); err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Recent returns the n most recently created competitions.
func (r *Repository) Recent(ctx context.Context, n int) ([]WithYear, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+withYearColumns+`
		 FROM competitions c
		 JOIN years y ON y.id = c.year_id
		 ORDER BY c.created_at DESC
		 LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent competitions: %w", err)
	}
	defer rows.Close()

	out := []WithYear{}
	for rows.Next() {
		c, err := scanWithYear(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Count returns the number of competitions.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM competitions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count competitions: %w", err)
	}
	return n, nil
}

// Create inserts a competition. A slug already used in the year is a conflict.
func (r *Repository) Create(ctx context.Context, in NewCompetition) (*Competition, error) {
	c, err := scanCompetition(r.db.QueryRow(ctx,
		`INSERT INTO competitions AS c (year_id, name, slug, date, location, description)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+competitionColumns,
		in.YearID, in.Name, in.Slug, in.Date, in.Location, in.Description,
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateSlug
		}
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.NotFound("year")
		}
		return nil, fmt.Errorf("create competition: %w", err)
	}
	return c, nil
}

// Get fetches a competition with its year.
func (r *Repository) Get(ctx context.Context, id string) (*WithYear, error) {
	c, err := scanWithYear(r.db.QueryRow(ctx,
		`SELECT `+withYearColumns+`
		 FROM competitions c
		 JOIN years y ON y.id = c.year_id
		 WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("competition")
	}
	if err != nil {
		return nil, fmt.Errorf("get competition: %w", err)
	}
	return c, nil
}

// GetBySlug fetches a competition of a year by slug.
func (r *Repository) GetBySlug(ctx context.Context, yearID, slug string) (*WithYear, error) {
	c, err := scanWithYear(r.db.QueryRow(ctx,
		`SELECT `+withYearColumns+`
		 FROM competitions c
		 JOIN years y ON y.id = c.year_id
		 WHERE c.year_id = $1 AND c.slug = $2`, yearID, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("competition")
	}
	if err != nil {
		return nil, fmt.Errorf("get competition by slug: %w", err)
	}
	return c, nil
}

// Update applies the fields present in ch.
func (r *Repository) Update(ctx context.Context, id string, ch Changes) (*Competition, error) {
	var cols patch.Columns
	cols.Add("updated_at", time.Now())
	if ch.Name.Set {
		cols.Add("name", ch.Name.Value)
		cols.Add("slug", ch.slug)
	}
	if ch.Date.Set {
		cols.Add("date", ch.date)
	}
	if ch.Location.Set {
		cols.Add("location", ch.Location.Ptr())
	}
	if ch.Description.Set {
		cols.Add("description", ch.Description.Ptr())
	}
	if ch.CoverPhotoID.Set {
		cols.Add("cover_photo_id", ch.CoverPhotoID.Ptr())
	}
	if ch.Order.Set {
		cols.Add(`"order"`, ch.Order.Value)
	}

	query := fmt.Sprintf(`UPDATE competitions AS c SET %s WHERE c.id = %s RETURNING %s`,
		cols.Clause(), cols.Placeholder(id), competitionColumns)

	c, err := scanCompetition(r.db.QueryRow(ctx, query, cols.Args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("competition")
	}
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("update competition: %w", err)
	}
	return c, nil
}

// SetCoverIfEmpty makes photoID the cover unless one is already set. It
// reports whether the cover changed.
func (r *Repository) SetCoverIfEmpty(ctx context.Context, id, photoID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE competitions SET cover_photo_id = $2, updated_at = NOW()
		 WHERE id = $1 AND cover_photo_id IS NULL`, id, photoID)
	if err != nil {
		return false, fmt.Errorf("set competition cover: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the competition row; photos cascade.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM competitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("competition")
	}
	return nil
}

// PhotoBelongs reports whether photoID is a photo of the competition.
func (r *Repository) PhotoBelongs(ctx context.Context, id, photoID string) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM photos WHERE competition_id = $1 AND id = $2)`,
		id, photoID,
	).Scan(&ok); err != nil {
		return false, fmt.Errorf("check cover photo: %w", err)
	}
	return ok, nil
}
