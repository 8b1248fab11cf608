package upload

import (
	"context"
	"time"

	"github.com/acgallery/service/internal/apperr"
	"github.com/acgallery/service/internal/logger"
	"github.com/acgallery/service/internal/storage"
)

// References lists the original URL of every recorded photo.
type References interface {
	OriginalURLs(ctx context.Context) ([]string, error)
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned int
	Deleted int
	Bytes   int64
}

// Sweeper removes objects no photo refers to: presigned uploads that were
// never confirmed, and blobs left at an old prefix after a rename. Objects
// younger than maxAge are kept so in-flight uploads survive.
type Sweeper struct {
	refs   References
	store  storage.Storage
	maxAge time.Duration
	now    func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(refs References, store storage.Storage, maxAge time.Duration) *Sweeper {
	return &Sweeper{refs: refs, store: store, maxAge: maxAge, now: time.Now}
}

// Sweep runs one pass over the gallery folder.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	log := logger.Named("sweep")

	urls, err := s.refs.OriginalURLs(ctx)
	if err != nil {
		return rep, err
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key, ok := s.store.KeyFromURL(u); ok {
			referenced[key] = struct{}{}
		}
	}

	objects, err := s.store.List(ctx, storage.RootPrefix)
	if err != nil {
		return rep, apperr.Upstream("list objects", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	for _, obj := range objects {
		rep.Scanned++
		if obj.LastModified.After(cutoff) {
			continue
		}

		original := obj.Key
		if k, ok := storage.OriginalKeyFor(obj.Key); ok {
			original = k
		}
		if _, ok := referenced[original]; ok {
			continue
		}

		if err := s.store.Delete(ctx, obj.Key); err != nil {
			return rep, apperr.Upstream("delete orphan", err)
		}
		rep.Deleted++
		rep.Bytes += obj.Size
		log.Debug().Str("key", obj.Key).Msg("orphan removed")
	}

	log.Info().
		Int("scanned", rep.Scanned).
		Int("deleted", rep.Deleted).
		Int64("bytes", rep.Bytes).
		Msg("orphan sweep finished")
	return rep, nil
}
