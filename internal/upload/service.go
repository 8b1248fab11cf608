// Package upload implements the two-phase photo upload: presigned PUT URLs
// handed to the browser, then a confirm step that derives thumbnails and
// records the photos.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/competition"
	"github.com/acgallery/service/internal/db"
	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/storage"
	"github.com/acgallery/service/internal/thumbnail"
)

// confirmWorkers bounds how many originals are decoded at once.
const confirmWorkers = 4

// Competitions is what the pipeline needs from competitions.
type Competitions interface {
	Get(ctx context.Context, id string) (*competition.WithYear, error)
	SetCoverIfEmpty(ctx context.Context, id, photoID string) (bool, error)
}

// Photos is what the pipeline needs from photo persistence.
type Photos interface {
	CountByCompetition(ctx context.Context, competitionID string) (int, error)
	Create(ctx context.Context, in photo.NewPhoto) (*photo.Photo, error)
}

// Deriver produces thumbnails; *thumbnail.Deriver implements it.
type Deriver interface {
	Derive(r io.Reader) (*thumbnail.Result, error)
}

// FileSpec describes a file the client is about to upload.
type FileSpec struct {
	Filename    string `json:"filename" example:"IMG_0042.jpg"`
	ContentType string `json:"contentType" example:"image/jpeg"`
}

// Validate requires both fields.
func (f FileSpec) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Filename, validation.Required),
		validation.Field(&f.ContentType, validation.Required),
	)
}

// PresignInput is the body of POST /photos/upload.
type PresignInput struct {
	CompetitionID string     `json:"competitionId"`
	Files         []FileSpec `json:"files"`
}

// Validate checks the presign request.
func (in PresignInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CompetitionID, validation.Required.Error("competitionId is required")),
		validation.Field(&in.Files, validation.Required.Error("files must be a non-empty array")),
	)
}

// PresignedFile is where and how one file must be uploaded. Filename is the
// stored name; OriginalFilename is the name the client sent.
type PresignedFile struct {
	PresignedURL     string `json:"presignedUrl"`
	Key              string `json:"key"`
	ThumbnailKey     string `json:"thumbnailKey"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"originalFilename"`
	PublicURL        string `json:"publicUrl"`
}

// ConfirmFile reports one completed upload. Width, height and size are
// measured by the client; zero values are filled in from the stored object.
type ConfirmFile struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int64  `json:"size"`
}

// Validate requires the key.
func (f ConfirmFile) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Key, validation.Required),
		validation.Field(&f.Width, validation.Min(0)),
		validation.Field(&f.Height, validation.Min(0)),
		validation.Field(&f.Size, validation.Min(int64(0))),
	)
}

// ConfirmInput is the body of POST /photos/confirm.
type ConfirmInput struct {
	CompetitionID string        `json:"competitionId"`
	UploadedFiles []ConfirmFile `json:"uploadedFiles"`
}

// Validate checks the confirm request.
func (in ConfirmInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CompetitionID, validation.Required.Error("competitionId is required")),
		validation.Field(&in.UploadedFiles, validation.Required.Error("uploadedFiles must be a non-empty array")),
	)
}

// Service runs the upload pipeline.
type Service struct {
	comps   Competitions
	photos  Photos
	store   storage.Storage
	deriver Deriver
}

// NewService creates a new upload Service.
func NewService(comps Competitions, photos Photos, store storage.Storage, deriver Deriver) *Service {
	return &Service{comps: comps, photos: photos, store: store, deriver: deriver}
}

func (s *Service) competition(ctx context.Context, id string) (*competition.WithYear, error) {
	if !db.ValidID(id) {
		return nil, apperr.NotFound("competition")
	}
	return s.comps.Get(ctx, id)
}

// Presign returns one presigned PUT URL per file. Nothing is recorded.
func (s *Service) Presign(ctx context.Context, in PresignInput) ([]PresignedFile, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	for i, f := range in.Files {
		if err := f.Validate(); err != nil {
			return nil, apperr.Validation(fmt.Sprintf("files[%d]: %v", i, err))
		}
	}

	c, err := s.competition(ctx, in.CompetitionID)
	if err != nil {
		return nil, err
	}

	out := make([]PresignedFile, 0, len(in.Files))
	for _, f := range in.Files {
		name := xid.New().String() + "_" + safeFilename(f.Filename)
		key := storage.Key(c.Year.Year, c.Slug, storage.Originals, name)
		thumbKey, _ := storage.ThumbnailKeyFor(key)

		url, err := s.store.PresignPut(ctx, key, f.ContentType, storage.PresignExpiry)
		if err != nil {
			return nil, apperr.Upstream("presign upload", err)
		}
		out = append(out, PresignedFile{
			PresignedURL:     url,
			Key:              key,
			ThumbnailKey:     thumbKey,
			Filename:         name,
			OriginalFilename: f.Filename,
			PublicURL:        s.store.PublicURL(key),
		})
	}
	return out, nil
}

// Confirm derives a thumbnail for every uploaded original and records the
// photos, appended after the existing ones in input order. Files are
// processed concurrently and independently: on failure the photos that did
// succeed stay recorded and the returned error joins every failure. The
// first recorded photo of the batch becomes the cover of a competition that
// has none.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) ([]photo.Photo, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	c, err := s.competition(ctx, in.CompetitionID)
	if err != nil {
		return nil, err
	}

	// Keys presigned before a rename no longer match; the sweeper removes them.
	originals := storage.Key(c.Year.Year, c.Slug, storage.Originals, "")
	for i, f := range in.UploadedFiles {
		if err := f.Validate(); err != nil {
			return nil, apperr.Validation(fmt.Sprintf("uploadedFiles[%d]: %v", i, err))
		}
		if !strings.HasPrefix(f.Key, originals) || strings.Contains(f.Key, "..") {
			return nil, apperr.Validation(fmt.Sprintf("uploadedFiles[%d]: key is not an upload of this competition", i))
		}
	}

	existing, err := s.photos.CountByCompetition(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	created := make([]*photo.Photo, len(in.UploadedFiles))
	errs := make([]error, len(in.UploadedFiles))
	var g errgroup.Group
	g.SetLimit(confirmWorkers)
	for i, f := range in.UploadedFiles {
		g.Go(func() error {
			p, err := s.record(ctx, c.ID, f, existing+i)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", f.Key, err)
				return nil
			}
			created[i] = p
			return nil
		})
	}
	_ = g.Wait()

	out := make([]photo.Photo, 0, len(created))
	for _, p := range created {
		if p != nil {
			out = append(out, *p)
		}
	}

	if len(out) > 0 {
		set, err := s.comps.SetCoverIfEmpty(ctx, c.ID, out[0].ID)
		if err != nil {
			return out, err
		}
		if set {
			log.Info().Str("competition_id", c.ID).Str("photo_id", out[0].ID).Msg("cover assigned from upload")
		}
	}

	log.Info().
		Str("competition_id", c.ID).
		Int("requested", len(in.UploadedFiles)).
		Int("created", len(out)).
		Msg("uploads confirmed")

	return out, errors.Join(errs...)
}

// record handles one confirmed original: fetch, derive, store thumbnail,
// insert the row.
func (s *Service) record(ctx context.Context, competitionID string, f ConfirmFile, order int) (*photo.Photo, error) {
	thumbKey, ok := storage.ThumbnailKeyFor(f.Key)
	if !ok {
		return nil, apperr.Validation("key is not an original")
	}

	obj, err := s.store.Download(ctx, f.Key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Validation("original was not uploaded")
		}
		return nil, apperr.Upstream("fetch original", err)
	}
	res, err := s.deriver.Derive(obj)
	obj.Close()
	if err != nil {
		if errors.Is(err, thumbnail.ErrNotImage) {
			return nil, apperr.Validation("original is not a supported image")
		}
		return nil, apperr.Upstream("derive thumbnail", err)
	}

	if err := s.store.Upload(ctx, thumbKey, bytes.NewReader(res.Data), int64(len(res.Data)), thumbnail.ContentType); err != nil {
		return nil, apperr.Upstream("store thumbnail", err)
	}
	log.Debug().
		Str("key", thumbKey).
		Int("width", res.Width).
		Int("height", res.Height).
		Msg("thumbnail stored")

	np := photo.NewPhoto{
		CompetitionID: competitionID,
		Filename:      f.Filename,
		OriginalURL:   s.store.PublicURL(f.Key),
		ThumbnailURL:  s.store.PublicURL(thumbKey),
		Width:         f.Width,
		Height:        f.Height,
		Size:          f.Size,
		Order:         order,
	}
	if np.Filename == "" {
		np.Filename = path.Base(f.Key)
	}
	if np.Width == 0 || np.Height == 0 {
		np.Width, np.Height = res.SourceWidth, res.SourceHeight
	}
	if np.Size == 0 {
		np.Size = obj.Size
	}
	return s.photos.Create(ctx, np)
}

// safeFilename keeps the client's file name readable while making it a
// single path segment.
func safeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "photo"
	}
	return name
}
