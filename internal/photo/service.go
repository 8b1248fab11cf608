package photo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/db"
	"github.com/acgallery/service/internal/storage"
)

// batchWorkers bounds the fan-out of reorder and bulk delete.
const batchWorkers = 8

// sniffLen is how much of a download is inspected when the store reports no
// usable content type.
const sniffLen = 3072

// Store is the persistence the Service needs; *Repository implements it.
type Store interface {
	ListByCompetition(ctx context.Context, competitionID string) ([]Photo, error)
	Get(ctx context.Context, id string) (*WithCompetition, error)
	SetOrder(ctx context.Context, id string, order int) (*Photo, error)
	Delete(ctx context.Context, id string) error
}

// OrderChange moves one photo to a new display position.
type OrderChange struct {
	ID    string `json:"id" example:"8f14e45f-ceea-467f-a0e6-0a3a5f7e2b1c"`
	Order int    `json:"order" example:"3"`
}

// ReorderInput is the body of PATCH /photos/reorder.
type ReorderInput struct {
	Items []OrderChange `json:"items"`
}

// Validate checks that items is a non-empty list of well-formed changes.
func (in ReorderInput) Validate() error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Items, validation.Required.Error("items must be a non-empty array")),
	); err != nil {
		return err
	}
	for i, it := range in.Items {
		if !db.ValidID(it.ID) {
			return fmt.Errorf("items[%d]: id is not a photo id", i)
		}
	}
	return nil
}

// UpdateInput is the body of PATCH /photos/{id}.
type UpdateInput struct {
	Order *int `json:"order" example:"2"`
}

// Validate requires order.
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Order, validation.NotNil.Error("order is required and must be a number")),
	)
}

// BulkDeleteInput is the body of POST /photos/bulk-delete.
type BulkDeleteInput struct {
	IDs []string `json:"ids"`
}

// Validate requires at least one id.
func (in BulkDeleteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.IDs, validation.Required.Error("ids must be a non-empty array")),
	)
}

// Download is an object streamed back through the proxy.
type Download struct {
	io.ReadCloser
	ContentType string
	Size        int64
	Filename    string
}

// Service contains business logic for photos.
type Service struct {
	repo  Store
	store storage.Storage
}

// NewService creates a new photo Service.
func NewService(repo Store, store storage.Storage) *Service {
	return &Service{repo: repo, store: store}
}

// ListByCompetition returns the photos of a competition in display order.
func (s *Service) ListByCompetition(ctx context.Context, competitionID string) ([]Photo, error) {
	return s.repo.ListByCompetition(ctx, competitionID)
}

// Get returns a photo with its competition.
func (s *Service) Get(ctx context.Context, id string) (*WithCompetition, error) {
	if !db.ValidID(id) {
		return nil, apperr.NotFound("photo")
	}
	return s.repo.Get(ctx, id)
}

// UpdateOrder moves a single photo.
func (s *Service) UpdateOrder(ctx context.Context, id string, in UpdateInput) (*Photo, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if !db.ValidID(id) {
		return nil, apperr.NotFound("photo")
	}
	return s.repo.SetOrder(ctx, id, *in.Order)
}

// Reorder applies every change independently. Duplicate orders are allowed;
// ties fall back to creation time when listing.
func (s *Service) Reorder(ctx context.Context, in ReorderInput) error {
	if err := in.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}

	// One missing photo must not cancel the remaining updates.
	var g errgroup.Group
	g.SetLimit(batchWorkers)
	for _, it := range in.Items {
		g.Go(func() error {
			if _, err := s.repo.SetOrder(ctx, it.ID, it.Order); err != nil {
				return fmt.Errorf("reorder photo %s: %w", it.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Delete removes both blobs of a photo, clears cover references to it and
// deletes the row.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, url := range []string{p.OriginalURL, p.ThumbnailURL} {
		key, ok := s.store.KeyFromURL(url)
		if !ok {
			log.Warn().Str("photo_id", id).Str("url", url).Msg("photo url outside public base, blob left in place")
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return apperr.Upstream("delete photo blob", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("photo_id", id).Str("competition_id", p.CompetitionID).Msg("photo deleted")
	return nil
}

// BulkDelete deletes every listed photo. Deletions are independent; the first
// failure is reported after all have been attempted.
func (s *Service) BulkDelete(ctx context.Context, in BulkDeleteInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, apperr.Validation(err.Error())
	}

	var g errgroup.Group
	g.SetLimit(batchWorkers)
	deleted := make([]bool, len(in.IDs))
	for i, id := range in.IDs {
		g.Go(func() error {
			if err := s.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete photo %s: %w", id, err)
			}
			deleted[i] = true
			return nil
		})
	}
	err := g.Wait()

	n := 0
	for _, ok := range deleted {
		if ok {
			n++
		}
	}
	return n, err
}

// Download opens the object behind a public URL for proxying. URLs outside
// the configured public base are refused.
func (s *Service) Download(ctx context.Context, url, filename string) (*Download, error) {
	if url == "" {
		return nil, apperr.Validation("url is required")
	}
	key, ok := s.store.KeyFromURL(url)
	if !ok {
		return nil, apperr.Forbidden("Invalid URL")
	}

	obj, err := s.store.Download(ctx, key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("file")
		}
		return nil, apperr.Upstream("fetch file", err)
	}

	if filename == "" {
		filename = path.Base(key)
	}
	d := &Download{ReadCloser: obj.ReadCloser, ContentType: obj.ContentType, Size: obj.Size, Filename: filename}
	if d.ContentType == "" || strings.HasPrefix(d.ContentType, "application/octet-stream") {
		sniff(d)
	}
	return d, nil
}

// sniff detects the content type from the first bytes without consuming them.
func sniff(d *Download) {
	br := bufio.NewReaderSize(d.ReadCloser, sniffLen)
	head, _ := br.Peek(sniffLen)
	d.ContentType = mimetype.Detect(head).String()
	d.ReadCloser = struct {
		io.Reader
		io.Closer
	}{br, d.ReadCloser}
}
