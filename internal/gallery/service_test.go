package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/competition"
	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/year"
)

type fakeYears struct{ years []year.Year }

func (f fakeYears) List(context.Context) ([]year.Summary, error) {
	out := make([]year.Summary, 0, len(f.years))
	for _, y := range f.years {
		out = append(out, year.Summary{Year: y})
	}
	return out, nil
}

func (f fakeYears) GetByNumber(_ context.Context, n int) (*year.Year, error) {
	for _, y := range f.years {
		if y.Year == n {
			return &y, nil
		}
	}
	return nil, apperr.NotFound("year")
}

type fakeComps struct {
	byYear map[string][]competition.Summary
	err    error
}

func (f fakeComps) List(_ context.Context, yearID string) ([]competition.Summary, error) {
	return f.byYear[yearID], f.err
}

func (f fakeComps) DetailBySlug(_ context.Context, yearID, slug string) (*competition.Detail, error) {
	for _, c := range f.byYear[yearID] {
		if c.Slug == slug {
			return &competition.Detail{WithYear: c.WithYear, Photos: []photo.Photo{}}, nil
		}
	}
	return nil, apperr.NotFound("competition")
}

func (f fakeComps) Recent(_ context.Context, n int) ([]competition.WithYear, error) {
	var out []competition.WithYear
	for _, cs := range f.byYear {
		for _, c := range cs {
			if len(out) < n {
				out = append(out, c.WithYear)
			}
		}
	}
	return out, nil
}

func (f fakeComps) Count(context.Context) (int, error) {
	n := 0
	for _, cs := range f.byYear {
		n += len(cs)
	}
	return n, nil
}

type fakeTotals photo.Totals

func (f fakeTotals) Totals(context.Context) (photo.Totals, error) { return photo.Totals(f), nil }

type fakeCovers struct{}

func (fakeCovers) ForYear(_ context.Context, yearID string, _ *string) (*string, error) {
	url := "https://cdn.test/" + yearID + ".jpg"
	return &url, nil
}

func newTestService(comps fakeComps) *Service {
	years := fakeYears{years: []year.Year{{ID: "y24", Year: 2024}, {ID: "y25", Year: 2025}}}
	return NewService(years, comps, fakeTotals{Count: 3, Bytes: 1_500_000}, fakeCovers{})
}

func summary(id, slug, yearID string, number int) competition.Summary {
	return competition.Summary{WithYear: competition.WithYear{
		Competition: competition.Competition{ID: id, Slug: slug, YearID: yearID},
		Year:        year.Year{ID: yearID, Year: number},
	}}
}

func TestYearPage(t *testing.T) {
	svc := newTestService(fakeComps{byYear: map[string][]competition.Summary{
		"y24": {summary("c1", "gala", "y24", 2024), summary("c2", "open", "y24", 2024)},
	}})

	page, err := svc.Year(context.Background(), "2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, page.Year.Year)
	require.NotNil(t, page.CoverURL)
	assert.Equal(t, "https://cdn.test/y24.jpg", *page.CoverURL)
	assert.Len(t, page.Competitions, 2)

	_, err = svc.Year(context.Background(), "1999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Year(context.Background(), "latest")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestYearPagePropagatesErrors(t *testing.T) {
	svc := newTestService(fakeComps{err: errors.New("db down")})

	_, err := svc.Year(context.Background(), "2024")
	assert.EqualError(t, err, "db down")
}

func TestCompetitionPageBySlug(t *testing.T) {
	svc := newTestService(fakeComps{byYear: map[string][]competition.Summary{
		"y24": {summary("c1", "gala", "y24", 2024)},
		"y25": {summary("c2", "gala", "y25", 2025)},
	}})

	d, err := svc.Competition(context.Background(), "2025", "gala")
	require.NoError(t, err)
	assert.Equal(t, "c2", d.ID)

	_, err = svc.Competition(context.Background(), "2025", "open")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStats(t *testing.T) {
	svc := newTestService(fakeComps{byYear: map[string][]competition.Summary{
		"y24": {summary("c1", "gala", "y24", 2024)},
	}})

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Years)
	assert.Equal(t, 1, st.Competitions)
	assert.Equal(t, 3, st.Photos)
	assert.Equal(t, int64(1_500_000), st.TotalBytes)
	assert.Equal(t, "1.5 MB", st.TotalSize)
	assert.Len(t, st.RecentCompetitions, 1)
}

func TestHandlerRoutes(t *testing.T) {
	h := NewHandler(newTestService(fakeComps{byYear: map[string][]competition.Summary{
		"y24": {summary("c1", "gala", "y24", 2024)},
	}}))
	r := chi.NewRouter()
	r.Get("/gallery/{year}", h.Year)
	r.Get("/gallery/{year}/{slug}", h.Competition)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery/2024/gala", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ID   string `json:"id"`
			Year struct {
				Year int `json:"year"`
			} `json:"year"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "c1", body.Data.ID)
	assert.Equal(t, 2024, body.Data.Year.Year)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery/2030", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
