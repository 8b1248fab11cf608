package competition

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/db"
	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/storage"
	"github.com/acgallery/service/internal/year"
)

// coverLookups bounds concurrent cover queries while building listings.
const coverLookups = 8

// dateLayouts are the accepted forms of a competition date.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// Store is the persistence the Service needs; *Repository implements it.
type Store interface {
	List(ctx context.Context, yearID string) ([]Summary, error)
	Recent(ctx context.Context, n int) ([]WithYear, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, in NewCompetition) (*Competition, error)
	Get(ctx context.Context, id string) (*WithYear, error)
	GetBySlug(ctx context.Context, yearID, slug string) (*WithYear, error)
	Update(ctx context.Context, id string, ch Changes) (*Competition, error)
	SetCoverIfEmpty(ctx context.Context, id, photoID string) (bool, error)
	Delete(ctx context.Context, id string) error
	PhotoBelongs(ctx context.Context, id, photoID string) (bool, error)
}

// Years resolves the year a competition is created in.
type Years interface {
	Get(ctx context.Context, id string) (*year.Year, error)
	FindOrCreate(ctx context.Context, number int) (*year.Year, error)
}

// Photos lists the photos of a competition in display order.
type Photos interface {
	ListByCompetition(ctx context.Context, competitionID string) ([]photo.Photo, error)
}

// CoverResolver resolves the cover thumbnail of a competition.
type CoverResolver interface {
	ForCompetition(ctx context.Context, competitionID string, coverPhotoID *string) (*string, error)
}

// CreateInput is the body of POST /competitions. Either YearID or Year must
// be given; Year creates the year when it does not exist yet.
type CreateInput struct {
	Name        string  `json:"name" example:"Coupe Régionale"`
	Date        string  `json:"date" example:"2024-05-12"`
	YearID      string  `json:"yearId,omitempty"`
	Year        *int    `json:"year,omitempty" example:"2024"`
	Location    *string `json:"location,omitempty" example:"Lyon"`
	Description *string `json:"description,omitempty"`
}

// Validate checks the required fields of a new competition.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required.Error("name is required"), validation.Length(1, 200)),
		validation.Field(&in.Date, validation.Required.Error("date is required"), validation.By(validDate)),
		validation.Field(&in.YearID, validation.When(in.Year == nil,
			validation.Required.Error("yearId or year is required"))),
	)
}

func validDate(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	_, err := parseDate(s)
	return err
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date must be a date such as 2024-05-12")
}

// Detail is a competition with its year, ordered photos and cover.
type Detail struct {
	WithYear
	CoverURL *string       `json:"coverUrl"`
	Photos   []photo.Photo `json:"photos"`
}

// Service contains business logic for competitions.
type Service struct {
	repo   Store
	years  Years
	photos Photos
	covers CoverResolver
	store  storage.Storage
}

// NewService creates a new competition Service.
func NewService(repo Store, years Years, photos Photos, covers CoverResolver, store storage.Storage) *Service {
	return &Service{repo: repo, years: years, photos: photos, covers: covers, store: store}
}

// List returns competitions, newest first, optionally restricted to a year.
func (s *Service) List(ctx context.Context, yearID string) ([]Summary, error) {
	if yearID != "" && !db.ValidID(yearID) {
		return []Summary{}, nil
	}
	comps, err := s.repo.List(ctx, yearID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveCovers(ctx, comps); err != nil {
		return nil, err
	}
	if comps == nil {
		comps = []Summary{}
	}
	return comps, nil
}

func (s *Service) resolveCovers(ctx context.Context, comps []Summary) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(coverLookups)
	for i := range comps {
		g.Go(func() error {
			url, err := s.covers.ForCompetition(gctx, comps[i].ID, comps[i].CoverPhotoID)
			if err != nil {
				return fmt.Errorf("cover of competition %s: %w", comps[i].ID, err)
			}
			comps[i].CoverURL = url
			return nil
		})
	}
	return g.Wait()
}

// Create adds a competition to a year. The slug is derived from the name.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Competition, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	slug := Slugify(in.Name)
	if slug == "" {
		return nil, apperr.Validation("name must contain letters or digits")
	}
	date, _ := parseDate(in.Date)

	var (
		y   *year.Year
		err error
	)
	if in.YearID != "" {
		y, err = s.years.Get(ctx, in.YearID)
	} else {
		y, err = s.years.FindOrCreate(ctx, *in.Year)
	}
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Create(ctx, NewCompetition{
		YearID:      y.ID,
		Name:        in.Name,
		Slug:        slug,
		Date:        date,
		Location:    in.Location,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("competition_id", c.ID).Int("year", y.Year).Str("slug", slug).Msg("competition created")
	return c, nil
}

// Get returns a competition with its year.
func (s *Service) Get(ctx context.Context, id string) (*WithYear, error) {
	if !db.ValidID(id) {
		return nil, apperr.NotFound("competition")
	}
	return s.repo.Get(ctx, id)
}

// GetBySlug returns the competition of a year with the given slug.
func (s *Service) GetBySlug(ctx context.Context, yearID, slug string) (*WithYear, error) {
	return s.repo.GetBySlug(ctx, yearID, slug)
}

// Detail returns a competition with its year, photos in display order and
// resolved cover.
func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, c)
}

// DetailBySlug is Detail for a competition addressed by year and slug.
func (s *Service) DetailBySlug(ctx context.Context, yearID, slug string) (*Detail, error) {
	c, err := s.GetBySlug(ctx, yearID, slug)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, c)
}

func (s *Service) detail(ctx context.Context, c *WithYear) (*Detail, error) {
	photos, err := s.photos.ListByCompetition(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	cover, err := s.covers.ForCompetition(ctx, c.ID, c.CoverPhotoID)
	if err != nil {
		return nil, err
	}
	return &Detail{WithYear: *c, CoverURL: cover, Photos: photos}, nil
}

// Recent returns the n most recently created competitions.
func (s *Service) Recent(ctx context.Context, n int) ([]WithYear, error) {
	return s.repo.Recent(ctx, n)
}

// Count returns the number of competitions.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Update applies a partial update. Renaming regenerates the slug; an
// explicit cover must be a photo of the competition.
func (s *Service) Update(ctx context.Context, id string, ch Changes) (*Competition, error) {
	if !db.ValidID(id) {
		return nil, apperr.NotFound("competition")
	}
	if ch.Name.Set {
		ch.Name.Value = strings.TrimSpace(ch.Name.Value)
		if ch.Name.Null || ch.Name.Value == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		ch.slug = Slugify(ch.Name.Value)
		if ch.slug == "" {
			return nil, apperr.Validation("name must contain letters or digits")
		}
	}
	if ch.Date.Set {
		if ch.Date.Null {
			return nil, apperr.Validation("date cannot be null")
		}
		t, err := parseDate(ch.Date.Value)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		ch.date = t
	}
	if ch.Order.Set && ch.Order.Null {
		return nil, apperr.Validation("order cannot be null")
	}
	if ch.CoverPhotoID.Set && !ch.CoverPhotoID.Null {
		ok := db.ValidID(ch.CoverPhotoID.Value)
		if ok {
			var err error
			if ok, err = s.repo.PhotoBelongs(ctx, id, ch.CoverPhotoID.Value); err != nil {
				return nil, err
			}
		}
		if !ok {
			return nil, apperr.Validation("coverPhotoId is not a photo of this competition")
		}
	}
	return s.repo.Update(ctx, id, ch)
}

// SetCoverIfEmpty assigns photoID as cover when the competition has none.
func (s *Service) SetCoverIfEmpty(ctx context.Context, id, photoID string) (bool, error) {
	return s.repo.SetCoverIfEmpty(ctx, id, photoID)
}

// Delete removes the competition's blob folder, then the competition and its
// photos. Photos stored under a former slug are removed one by one.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	photos, err := s.photos.ListByCompetition(ctx, id)
	if err != nil {
		return err
	}

	prefix := storage.CompetitionPrefix(c.Year.Year, c.Slug)
	if err := s.store.DeleteFolder(ctx, prefix); err != nil {
		return apperr.Upstream("delete competition folder", err)
	}
	for _, p := range photos {
		for _, url := range []string{p.OriginalURL, p.ThumbnailURL} {
			key, ok := s.store.KeyFromURL(url)
			if !ok || strings.HasPrefix(key, prefix) {
				continue
			}
			if err := s.store.Delete(ctx, key); err != nil {
				return apperr.Upstream("delete photo blob", err)
			}
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("competition_id", id).Str("prefix", prefix).Int("photos", len(photos)).Msg("competition deleted")
	return nil
}
