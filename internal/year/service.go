package year

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/db"
	"github.com/acgallery/service/internal/storage"
)

// coverLookups bounds concurrent cover queries while building listings.
const coverLookups = 8

// Store is the persistence the Service needs; *Repository implements it.
type Store interface {
	List(ctx context.Context) ([]Summary, error)
	Create(ctx context.Context, number int) (*Year, error)
	FindOrCreate(ctx context.Context, number int) (*Year, error)
	GetByID(ctx context.Context, id string) (*Year, error)
	GetByNumber(ctx context.Context, number int) (*Year, error)
	Update(ctx context.Context, id string, ch Changes) (*Year, error)
	Delete(ctx context.Context, id string) error
	PhotoURLs(ctx context.Context, yearID string) ([]string, error)
	PhotoBelongs(ctx context.Context, yearID, photoID string) (bool, error)
}

// CoverResolver resolves the cover thumbnail of a year.
type CoverResolver interface {
	ForYear(ctx context.Context, yearID string, coverPhotoID *string) (*string, error)
}

// CreateInput is the body of POST /years.
type CreateInput struct {
	Year int `json:"year" example:"2025"`
}

// Validate checks the year number.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Year,
			validation.Required.Error("year is required and must be a number"),
			validation.Min(1900).Error("year must be 1900 or later"),
			validation.Max(9999).Error("year must have four digits"),
		),
	)
}

// Service contains business logic for years.
type Service struct {
	repo   Store
	covers CoverResolver
	store  storage.Storage
}

// NewService creates a new year Service.
func NewService(repo Store, covers CoverResolver, store storage.Storage) *Service {
	return &Service{repo: repo, covers: covers, store: store}
}

// List returns every year, newest first, with counts and resolved covers.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	years, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(coverLookups)
	for i := range years {
		g.Go(func() error {
			url, err := s.covers.ForYear(gctx, years[i].ID, years[i].CoverPhotoID)
			if err != nil {
				return fmt.Errorf("cover of year %d: %w", years[i].Year.Year, err)
			}
			years[i].CoverURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if years == nil {
		years = []Summary{}
	}
	return years, nil
}

// Create adds a year; an existing number is a conflict.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Year, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return s.repo.Create(ctx, in.Year)
}

// FindOrCreate returns the year with the given number, creating it when missing.
func (s *Service) FindOrCreate(ctx context.Context, number int) (*Year, error) {
	if err := (CreateInput{Year: number}).Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return s.repo.FindOrCreate(ctx, number)
}

// Get returns a year by id.
func (s *Service) Get(ctx context.Context, id string) (*Year, error) {
	if !db.ValidID(id) {
		return nil, apperr.NotFound("year")
	}
	return s.repo.GetByID(ctx, id)
}

// GetByNumber returns a year by its calendar number.
func (s *Service) GetByNumber(ctx context.Context, number int) (*Year, error) {
	return s.repo.GetByNumber(ctx, number)
}

// Update applies a partial update. An explicit cover must be a photo of one
// of the year's competitions.
func (s *Service) Update(ctx context.Context, id string, ch Changes) (*Year, error) {
	if !db.ValidID(id) {
		return nil, apperr.NotFound("year")
	}
	if ch.Year.Set {
		if ch.Year.Null {
			return nil, apperr.Validation("year cannot be null")
		}
		if err := (CreateInput{Year: ch.Year.Value}).Validate(); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}
	if ch.CoverPhotoID.Set && !ch.CoverPhotoID.Null {
		if !db.ValidID(ch.CoverPhotoID.Value) {
			return nil, apperr.Validation("coverPhotoId is not a photo of this year")
		}
		ok, err := s.repo.PhotoBelongs(ctx, id, ch.CoverPhotoID.Value)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Validation("coverPhotoId is not a photo of this year")
		}
	}
	return s.repo.Update(ctx, id, ch)
}

// Delete removes the year's blob folder, then the year with everything it owns.
// Blobs stored under a former year number are removed one by one. The steps
// are not atomic: a failure after the blob delete leaves rows pointing at
// missing objects.
func (s *Service) Delete(ctx context.Context, id string) error {
	y, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	urls, err := s.repo.PhotoURLs(ctx, id)
	if err != nil {
		return err
	}

	prefix := storage.YearPrefix(y.Year)
	if err := s.store.DeleteFolder(ctx, prefix); err != nil {
		return apperr.Upstream("delete year folder", err)
	}
	for _, url := range urls {
		key, ok := s.store.KeyFromURL(url)
		if !ok || strings.HasPrefix(key, prefix) {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return apperr.Upstream("delete photo blob", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	log.Info().Str("year_id", id).Int("year", y.Year).Str("prefix", prefix).Msg("year deleted")
	return nil
}
