// Package gallery serves the read-only views of the public site and the
// admin dashboard, composed from years, competitions and photos.
package gallery

import (
	"context"
	"strconv"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/competition"
	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/year"
)

// recentCount is how many competitions the dashboard shows.
const recentCount = 5

// Years is what the gallery needs from years.
type Years interface {
	List(ctx context.Context) ([]year.Summary, error)
	GetByNumber(ctx context.Context, number int) (*year.Year, error)
}

// Competitions is what the gallery needs from competitions.
type Competitions interface {
	List(ctx context.Context, yearID string) ([]competition.Summary, error)
	DetailBySlug(ctx context.Context, yearID, slug string) (*competition.Detail, error)
	Recent(ctx context.Context, n int) ([]competition.WithYear, error)
	Count(ctx context.Context) (int, error)
}

// PhotoTotals aggregates the photo table.
type PhotoTotals interface {
	Totals(ctx context.Context) (photo.Totals, error)
}

// YearCovers resolves the cover of a year.
type YearCovers interface {
	ForYear(ctx context.Context, yearID string, coverPhotoID *string) (*string, error)
}

// YearPage is the public page of one year.
type YearPage struct {
	year.Year
	CoverURL     *string               `json:"coverUrl"`
	Competitions []competition.Summary `json:"competitions"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Years              int                    `json:"years"`
	Competitions       int                    `json:"competitions"`
	Photos             int                    `json:"photos"`
	TotalBytes         int64                  `json:"totalBytes"`
	TotalSize          string                 `json:"totalSize" example:"1.2 GB"`
	RecentCompetitions []competition.WithYear `json:"recentCompetitions"`
}

// Service builds gallery views.
type Service struct {
	years  Years
	comps  Competitions
	photos PhotoTotals
	covers YearCovers
}

// NewService creates a new gallery Service.
func NewService(years Years, comps Competitions, photos PhotoTotals, covers YearCovers) *Service {
	return &Service{years: years, comps: comps, photos: photos, covers: covers}
}

// parseYear turns a path segment into a year number. Anything that is not
// a number cannot name a year.
func parseYear(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, apperr.NotFound("year")
	}
	return n, nil
}

// Year returns the page of a year: the year, its cover and its
// competitions, newest first.
func (s *Service) Year(ctx context.Context, number string) (*YearPage, error) {
	n, err := parseYear(number)
	if err != nil {
		return nil, err
	}
	y, err := s.years.GetByNumber(ctx, n)
	if err != nil {
		return nil, err
	}

	page := &YearPage{Year: *y}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := s.covers.ForYear(gctx, y.ID, y.CoverPhotoID)
		page.CoverURL = url
		return err
	})
	g.Go(func() error {
		comps, err := s.comps.List(gctx, y.ID)
		page.Competitions = comps
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

// Competition returns the page of a competition addressed by year number
// and slug.
func (s *Service) Competition(ctx context.Context, number, slug string) (*competition.Detail, error) {
	n, err := parseYear(number)
	if err != nil {
		return nil, err
	}
	y, err := s.years.GetByNumber(ctx, n)
	if err != nil {
		return nil, err
	}
	return s.comps.DetailBySlug(ctx, y.ID, slug)
}

// Stats gathers the dashboard counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var (
		st     Stats
		totals photo.Totals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		years, err := s.years.List(gctx)
		st.Years = len(years)
		return err
	})
	g.Go(func() error {
		var err error
		st.Competitions, err = s.comps.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.photos.Totals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		st.RecentCompetitions, err = s.comps.Recent(gctx, recentCount)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st.Photos = totals.Count
	st.TotalBytes = totals.Bytes
	st.TotalSize = humanize.Bytes(uint64(totals.Bytes))
	if st.RecentCompetitions == nil {
		st.RecentCompetitions = []competition.WithYear{}
	}
	return &st, nil
}
