package competition

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/patch"
	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/storage/storagetest"
	"github.com/acgallery/service/internal/year"
)

type fakeYears struct {
	mu    sync.Mutex
	years map[string]*year.Year
}

func newFakeYears() *fakeYears { return &fakeYears{years: map[string]*year.Year{}} }

func (f *fakeYears) Get(_ context.Context, id string) (*year.Year, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	y, ok := f.years[id]
	if !ok {
		return nil, apperr.NotFound("year")
	}
	return y, nil
}

func (f *fakeYears) FindOrCreate(_ context.Context, number int) (*year.Year, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, y := range f.years {
		if y.Year == number {
			return y, nil
		}
	}
	y := &year.Year{ID: uuid.NewString(), Year: number}
	f.years[y.ID] = y
	return y, nil
}

type fakeStore struct {
	years  *fakeYears
	comps  map[string]*Competition
	photos map[string][]photo.Photo // competition id -> photos
}

func newFakeStore(years *fakeYears) *fakeStore {
	return &fakeStore{years: years, comps: map[string]*Competition{}, photos: map[string][]photo.Photo{}}
}

func (f *fakeStore) withYear(c *Competition) *WithYear {
	y, _ := f.years.Get(context.Background(), c.YearID)
	return &WithYear{Competition: *c, Year: *y}
}

func (f *fakeStore) slugTaken(yearID, slug, except string) bool {
	for _, c := range f.comps {
		if c.YearID == yearID && c.Slug == slug && c.ID != except {
			return true
		}
	}
	return false
}

func (f *fakeStore) List(_ context.Context, yearID string) ([]Summary, error) {
	var out []Summary
	for _, c := range f.comps {
		if yearID == "" || c.YearID == yearID {
			out = append(out, Summary{WithYear: *f.withYear(c), PhotoCount: len(f.photos[c.ID])})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeStore) Recent(context.Context, int) ([]WithYear, error) { return nil, nil }

func (f *fakeStore) Count(context.Context) (int, error) { return len(f.comps), nil }

func (f *fakeStore) Create(_ context.Context, in NewCompetition) (*Competition, error) {
	if f.slugTaken(in.YearID, in.Slug, "") {
		return nil, ErrDuplicateSlug
	}
	c := &Competition{
		ID: uuid.NewString(), YearID: in.YearID, Name: in.Name, Slug: in.Slug, Date: in.Date,
		Location: in.Location, Description: in.Description, CreatedAt: time.Now(),
	}
	f.comps[c.ID] = c
	return c, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*WithYear, error) {
	c, ok := f.comps[id]
	if !ok {
		return nil, apperr.NotFound("competition")
	}
	return f.withYear(c), nil
}

func (f *fakeStore) GetBySlug(_ context.Context, yearID, slug string) (*WithYear, error) {
	for _, c := range f.comps {
		if c.YearID == yearID && c.Slug == slug {
			return f.withYear(c), nil
		}
	}
	return nil, apperr.NotFound("competition")
}

func (f *fakeStore) Update(_ context.Context, id string, ch Changes) (*Competition, error) {
	c, ok := f.comps[id]
	if !ok {
		return nil, apperr.NotFound("competition")
	}
	if ch.Name.Set {
		if f.slugTaken(c.YearID, ch.slug, id) {
			return nil, ErrDuplicateSlug
		}
		c.Name, c.Slug = ch.Name.Value, ch.slug
	}
	if ch.Date.Set {
		c.Date = ch.date
	}
	if ch.Location.Set {
		c.Location = ch.Location.Ptr()
	}
	if ch.CoverPhotoID.Set {
		c.CoverPhotoID = ch.CoverPhotoID.Ptr()
	}
	if ch.Order.Set {
		c.Order = ch.Order.Value
	}
	return c, nil
}

func (f *fakeStore) SetCoverIfEmpty(_ context.Context, id, photoID string) (bool, error) {
	c := f.comps[id]
	if c.CoverPhotoID != nil {
		return false, nil
	}
	c.CoverPhotoID = &photoID
	return true, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.comps[id]; !ok {
		return apperr.NotFound("competition")
	}
	delete(f.comps, id)
	delete(f.photos, id)
	return nil
}

func (f *fakeStore) PhotoBelongs(_ context.Context, id, photoID string) (bool, error) {
	for _, p := range f.photos[id] {
		if p.ID == photoID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListByCompetition(_ context.Context, id string) ([]photo.Photo, error) {
	out := append([]photo.Photo{}, f.photos[id]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

type fakeCovers struct{}

func (fakeCovers) ForCompetition(_ context.Context, _ string, coverPhotoID *string) (*string, error) {
	if coverPhotoID == nil {
		return nil, nil
	}
	url := storagetest.PublicBase + "/cover/" + *coverPhotoID
	return &url, nil
}

type fixture struct {
	years *fakeYears
	repo  *fakeStore
	blobs *storagetest.Memory
	svc   *Service
}

func newFixture() *fixture {
	years := newFakeYears()
	repo := newFakeStore(years)
	blobs := storagetest.New()
	return &fixture{
		years: years,
		repo:  repo,
		blobs: blobs,
		svc:   NewService(repo, years, repo, fakeCovers{}, blobs),
	}
}

func (fx *fixture) addPhoto(compID, key string, order int, data []byte) photo.Photo {
	fx.blobs.Put(key, data, "image/jpeg")
	p := photo.Photo{
		ID:            uuid.NewString(),
		CompetitionID: compID,
		Filename:      key[len(key)-len("x_a.jpg"):],
		OriginalURL:   fx.blobs.PublicURL(key),
		Order:         order,
	}
	fx.repo.photos[compID] = append(fx.repo.photos[compID], p)
	return p
}

func intPtr(v int) *int { return &v }

func TestCreateDuplicateSlugPerYear(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	first, err := fx.svc.Create(ctx, CreateInput{Name: "Coupe Régionale", Date: "2024-05-12", Year: intPtr(2024)})
	require.NoError(t, err)
	assert.Equal(t, "coupe-regionale", first.Slug)

	_, err = fx.svc.Create(ctx, CreateInput{Name: "coupe  regionale", Date: "2024-06-01", YearID: first.YearID})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "A competition with this name already exists for this year", apperr.PublicMessage(err, ""))

	other, err := fx.svc.Create(ctx, CreateInput{Name: "Coupe Régionale", Date: "2025-05-11", Year: intPtr(2025)})
	require.NoError(t, err)
	assert.Equal(t, "coupe-regionale", other.Slug)
	assert.NotEqual(t, first.YearID, other.YearID)
}

func TestCreateFindsExistingYearByNumber(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	a, err := fx.svc.Create(ctx, CreateInput{Name: "Gala", Date: "2024-12-01", Year: intPtr(2024)})
	require.NoError(t, err)
	b, err := fx.svc.Create(ctx, CreateInput{Name: "Open", Date: "2024-03-01T10:00:00Z", Year: intPtr(2024)})
	require.NoError(t, err)

	assert.Equal(t, a.YearID, b.YearID)
	assert.Len(t, fx.years.years, 1)
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	cases := []CreateInput{
		{Date: "2024-05-12", Year: intPtr(2024)},
		{Name: "Gala", Year: intPtr(2024)},
		{Name: "Gala", Date: "12/05/2024", Year: intPtr(2024)},
		{Name: "Gala", Date: "2024-05-12"},
		{Name: "!!!", Date: "2024-05-12", Year: intPtr(2024)},
	}
	for _, in := range cases {
		_, err := fx.svc.Create(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", in)
	}

	_, err := fx.svc.Create(ctx, CreateInput{Name: "Gala", Date: "2024-05-12", YearID: uuid.NewString()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateRenameRegeneratesSlug(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	c, err := fx.svc.Create(ctx, CreateInput{Name: "Gala", Date: "2024-12-01", Year: intPtr(2024)})
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, CreateInput{Name: "Open", Date: "2024-03-01", Year: intPtr(2024)})
	require.NoError(t, err)

	updated, err := fx.svc.Update(ctx, c.ID, Changes{Name: patch.Of("Gala de Noël")})
	require.NoError(t, err)
	assert.Equal(t, "gala-de-noel", updated.Slug)

	_, err = fx.svc.Update(ctx, c.ID, Changes{Name: patch.Of("OPEN")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = fx.svc.Update(ctx, c.ID, Changes{Name: patch.Null[string]()})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateDateAndOptionalFields(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	c, err := fx.svc.Create(ctx, CreateInput{Name: "Gala", Date: "2024-12-01", Year: intPtr(2024), Location: strPtr("Lyon")})
	require.NoError(t, err)

	updated, err := fx.svc.Update(ctx, c.ID, Changes{
		Date:     patch.Of("2024-12-08"),
		Location: patch.Null[string](),
		Order:    patch.Of(3),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 8, 0, 0, 0, 0, time.UTC), updated.Date)
	assert.Nil(t, updated.Location)
	assert.Equal(t, 3, updated.Order)

	_, err = fx.svc.Update(ctx, c.ID, Changes{Date: patch.Of("soon")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func strPtr(s string) *string { return &s }

func TestUpdateCoverMustBelongToCompetition(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	a, err := fx.svc.Create(ctx, CreateInput{Name: "A", Date: "2024-01-01", Year: intPtr(2024)})
	require.NoError(t, err)
	b, err := fx.svc.Create(ctx, CreateInput{Name: "B", Date: "2024-02-01", Year: intPtr(2024)})
	require.NoError(t, err)
	pa := fx.addPhoto(a.ID, "photos/2024/a/originals/x_a.jpg", 0, []byte("a"))
	pb := fx.addPhoto(b.ID, "photos/2024/b/originals/x_b.jpg", 0, []byte("b"))

	_, err = fx.svc.Update(ctx, a.ID, Changes{CoverPhotoID: patch.Of(pb.ID)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := fx.svc.Update(ctx, a.ID, Changes{CoverPhotoID: patch.Of(pa.ID)})
	require.NoError(t, err)
	assert.Equal(t, pa.ID, *updated.CoverPhotoID)
}

func TestDetailListsPhotosInOrder(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	c, err := fx.svc.Create(ctx, CreateInput{Name: "Gala", Date: "2024-12-01", Year: intPtr(2024)})
	require.NoError(t, err)
	second := fx.addPhoto(c.ID, "photos/2024/gala/originals/x_b.jpg", 2, nil)
	first := fx.addPhoto(c.ID, "photos/2024/gala/originals/x_a.jpg", 1, nil)

	d, err := fx.svc.Detail(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year.Year)
	require.Len(t, d.Photos, 2)
	assert.Equal(t, first.ID, d.Photos[0].ID)
	assert.Equal(t, second.ID, d.Photos[1].ID)
	assert.Nil(t, d.CoverURL)

	_, err = fx.svc.Detail(ctx, "bogus")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteRemovesFolderAndRenamedBlobs(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	c, err := fx.svc.Create(ctx, CreateInput{Name: "Gala", Date: "2024-12-01", Year: intPtr(2024)})
	require.NoError(t, err)
	fx.addPhoto(c.ID, "photos/2024/gala/originals/x_a.jpg", 0, []byte("a"))
	fx.blobs.Put("photos/2024/gala/thumbnails/x_a.jpg.jpg", []byte("t"), "image/jpeg")
	// stored before a rename
	fx.addPhoto(c.ID, "photos/2024/old-name/originals/x_b.jpg", 1, []byte("b"))
	fx.blobs.Put("photos/2024/other/originals/y_c.jpg", []byte("c"), "image/jpeg")

	require.NoError(t, fx.svc.Delete(ctx, c.ID))

	assert.Equal(t, []string{"photos/2024/other/originals/y_c.jpg"}, fx.blobs.Keys())
	_, err = fx.svc.Get(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListFiltersByYearAndOrdersByDate(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	old, err := fx.svc.Create(ctx, CreateInput{Name: "Old", Date: "2024-01-01", Year: intPtr(2024)})
	require.NoError(t, err)
	recent, err := fx.svc.Create(ctx, CreateInput{Name: "Recent", Date: "2024-11-01", Year: intPtr(2024)})
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, CreateInput{Name: "Other", Date: "2025-01-01", Year: intPtr(2025)})
	require.NoError(t, err)

	comps, err := fx.svc.List(ctx, old.YearID)
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, recent.ID, comps[0].ID)
	assert.Equal(t, old.ID, comps[1].ID)

	all, err := fx.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := fx.svc.List(ctx, "garbage")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestArchiveZipsOriginals(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	c, err := fx.svc.Create(ctx, CreateInput{Name: "Gala", Date: "2024-12-01", Year: intPtr(2024)})
	require.NoError(t, err)
	fx.addPhoto(c.ID, "photos/2024/gala/originals/x_a.jpg", 0, []byte("first"))
	fx.addPhoto(c.ID, "photos/2024/gala/originals/y_a.jpg", 1, []byte("second"))

	a, err := fx.svc.Archive(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-gala.zip", a.Name)

	var buf bytes.Buffer
	require.NoError(t, a.WriteTo(ctx, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "x_a.jpg", zr.File[0].Name)
	assert.Equal(t, "y_a.jpg", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))
}

func TestEntryNameDeduplicates(t *testing.T) {
	seen := map[string]int{}
	assert.Equal(t, "a.jpg", entryName("a.jpg", seen))
	assert.Equal(t, "a-2.jpg", entryName("a.jpg", seen))
	assert.Equal(t, "b.jpg", entryName("dir/b.jpg", seen))
}
