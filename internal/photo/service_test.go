package photo

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/storage/storagetest"
)

type fakeStore struct {
	mu     sync.Mutex
	photos map[string]*Photo
	covers map[string]*string // competition id -> cover photo id
}

func newFakeStore() *fakeStore {
	return &fakeStore{photos: map[string]*Photo{}, covers: map[string]*string{}}
}

func (f *fakeStore) add(competitionID string, order int, createdAt time.Time) *Photo {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	p := &Photo{
		ID:            id,
		CompetitionID: competitionID,
		Filename:      id + ".jpg",
		OriginalURL:   storagetest.PublicBase + "/photos/2024/coupe/originals/" + id + ".jpg",
		ThumbnailURL:  storagetest.PublicBase + "/photos/2024/coupe/thumbnails/" + id + ".jpg.jpg",
		Order:         order,
		CreatedAt:     createdAt,
	}
	f.photos[id] = p
	return p
}

func (f *fakeStore) ListByCompetition(_ context.Context, competitionID string) ([]Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Photo{}
	for _, p := range f.photos {
		if p.CompetitionID == competitionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*WithCompetition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return nil, apperr.NotFound("photo")
	}
	return &WithCompetition{Photo: *p, Competition: CompetitionRef{ID: p.CompetitionID, Slug: "coupe", Year: 2024}}, nil
}

func (f *fakeStore) SetOrder(ctx context.Context, id string, order int) (*Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return nil, apperr.NotFound("photo")
	}
	p.Order = order
	return p, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.photos[id]; !ok {
		return apperr.NotFound("photo")
	}
	for comp, cover := range f.covers {
		if cover != nil && *cover == id {
			f.covers[comp] = nil
		}
	}
	delete(f.photos, id)
	return nil
}

var timeZero = time.Time{}

func keyOf(url string) string {
	return url[len(storagetest.PublicBase)+1:]
}

func seedBlobs(blobs *storagetest.Memory, p *Photo) {
	blobs.Put(keyOf(p.OriginalURL), []byte("original"), "image/jpeg")
	blobs.Put(keyOf(p.ThumbnailURL), []byte("thumb"), "image/jpeg")
}

func TestReorderListsByNewOrder(t *testing.T) {
	repo := newFakeStore()
	svc := NewService(repo, storagetest.New())
	ctx := context.Background()
	comp := uuid.NewString()
	base := time.Now()

	p1 := repo.add(comp, 0, base)
	p2 := repo.add(comp, 1, base.Add(time.Second))
	p3 := repo.add(comp, 2, base.Add(2*time.Second))

	require.NoError(t, svc.Reorder(ctx, ReorderInput{Items: []OrderChange{
		{ID: p1.ID, Order: 5},
		{ID: p2.ID, Order: 1},
	}}))

	photos, err := svc.ListByCompetition(ctx, comp)
	require.NoError(t, err)
	require.Len(t, photos, 3)
	assert.Equal(t, []string{p2.ID, p3.ID, p1.ID}, []string{photos[0].ID, photos[1].ID, photos[2].ID})
}

func TestReorderValidation(t *testing.T) {
	svc := NewService(newFakeStore(), storagetest.New())

	err := svc.Reorder(context.Background(), ReorderInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	err = svc.Reorder(context.Background(), ReorderInput{Items: []OrderChange{{ID: "nope", Order: 1}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReorderReportsMissingPhoto(t *testing.T) {
	repo := newFakeStore()
	svc := NewService(repo, storagetest.New())
	p := repo.add(uuid.NewString(), 0, time.Now())

	err := svc.Reorder(context.Background(), ReorderInput{Items: []OrderChange{
		{ID: p.ID, Order: 3},
		{ID: uuid.NewString(), Order: 1},
	}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReorderAppliesValidItemsDespiteMissingPhoto(t *testing.T) {
	repo := newFakeStore()
	svc := NewService(repo, storagetest.New())
	comp := uuid.NewString()

	items := []OrderChange{{ID: uuid.NewString(), Order: 0}}
	var photos []*Photo
	for i := 0; i < 30; i++ {
		p := repo.add(comp, 0, time.Now())
		photos = append(photos, p)
		items = append(items, OrderChange{ID: p.ID, Order: 100 + i})
	}

	err := svc.Reorder(context.Background(), ReorderInput{Items: items})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	for i, p := range photos {
		got, err := repo.Get(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, 100+i, got.Order, "photo %d", i)
	}
}

func TestUpdateOrderRequiresOrder(t *testing.T) {
	repo := newFakeStore()
	svc := NewService(repo, storagetest.New())
	p := repo.add(uuid.NewString(), 0, time.Now())

	_, err := svc.UpdateOrder(context.Background(), p.ID, UpdateInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	order := 7
	updated, err := svc.UpdateOrder(context.Background(), p.ID, UpdateInput{Order: &order})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Order)
}

func TestDeleteRemovesBlobsAndClearsCover(t *testing.T) {
	repo := newFakeStore()
	blobs := storagetest.New()
	svc := NewService(repo, blobs)
	ctx := context.Background()
	comp := uuid.NewString()

	cover := repo.add(comp, 0, time.Now())
	other := repo.add(comp, 1, time.Now())
	seedBlobs(blobs, cover)
	seedBlobs(blobs, other)
	repo.covers[comp] = &cover.ID

	require.NoError(t, svc.Delete(ctx, other.ID))
	assert.False(t, blobs.Has(keyOf(other.OriginalURL)))
	assert.False(t, blobs.Has(keyOf(other.ThumbnailURL)))
	require.NotNil(t, repo.covers[comp])
	assert.Equal(t, cover.ID, *repo.covers[comp])

	require.NoError(t, svc.Delete(ctx, cover.ID))
	assert.Nil(t, repo.covers[comp])
	assert.Empty(t, blobs.Keys())

	_, err := svc.Get(ctx, cover.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBulkDeleteReportsPartialFailure(t *testing.T) {
	repo := newFakeStore()
	blobs := storagetest.New()
	svc := NewService(repo, blobs)
	comp := uuid.NewString()

	a := repo.add(comp, 0, time.Now())
	b := repo.add(comp, 1, time.Now())
	seedBlobs(blobs, a)
	seedBlobs(blobs, b)

	n, err := svc.BulkDelete(context.Background(), BulkDeleteInput{IDs: []string{a.ID, uuid.NewString(), b.ID}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 2, n)
	assert.Empty(t, blobs.Keys())
}

func TestDownloadRejectsForeignURL(t *testing.T) {
	svc := NewService(newFakeStore(), storagetest.New())

	_, err := svc.Download(context.Background(), "https://evil.test/photos/a.jpg", "a.jpg")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Download(context.Background(), "", "a.jpg")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDownloadStreamsObject(t *testing.T) {
	blobs := storagetest.New()
	svc := NewService(newFakeStore(), blobs)
	blobs.Put("photos/2024/coupe/originals/x_a.jpg", []byte("jpeg-bytes"), "image/jpeg")

	d, err := svc.Download(context.Background(), storagetest.PublicBase+"/photos/2024/coupe/originals/x_a.jpg", "")
	require.NoError(t, err)
	defer d.Close()

	body, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))
	assert.Equal(t, "image/jpeg", d.ContentType)
	assert.Equal(t, "x_a.jpg", d.Filename)
}

func TestDownloadSniffsMissingContentType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	blobs := storagetest.New()
	blobs.Put("photos/2024/coupe/originals/x_b.png", buf.Bytes(), "")
	svc := NewService(newFakeStore(), blobs)

	d, err := svc.Download(context.Background(), storagetest.PublicBase+"/photos/2024/coupe/originals/x_b.png", "b.png")
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, "image/png", d.ContentType)
	body, err := io.ReadAll(d)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), body)
}

func TestDownloadMissingObject(t *testing.T) {
	svc := NewService(newFakeStore(), storagetest.New())

	_, err := svc.Download(context.Background(), storagetest.PublicBase+"/photos/gone.jpg", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
