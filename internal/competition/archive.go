package competition

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"

	"github.com/acgallery/service/internal/photo"
	"github.com/acgallery/service/internal/storage"
)

// Archive streams every original of a competition as one zip file.
type Archive struct {
	Name   string
	photos []photo.Photo
	store  storage.Storage
}

// Archive prepares the zip download of a competition. Lookup errors are
// reported here, before anything is written.
func (s *Service) Archive(ctx context.Context, id string) (*Archive, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	photos, err := s.photos.ListByCompetition(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Archive{
		Name:   fmt.Sprintf("%d-%s.zip", c.Year.Year, c.Slug),
		photos: photos,
		store:  s.store,
	}, nil
}

// WriteTo writes the zip to w. Images are stored without recompression.
// Photos whose blob cannot be resolved are skipped.
func (a *Archive) WriteTo(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)
	seen := map[string]int{}

	for _, p := range a.photos {
		key, ok := a.store.KeyFromURL(p.OriginalURL)
		if !ok {
			log.Warn().Str("photo_id", p.ID).Msg("archive: original outside public base")
			continue
		}
		if err := a.add(ctx, zw, key, entryName(p.Filename, seen)); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func (a *Archive) add(ctx context.Context, zw *zip.Writer, key, name string) error {
	obj, err := a.store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	defer obj.Close()

	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", name, err)
	}
	if _, err := io.Copy(fw, obj); err != nil {
		return fmt.Errorf("archive copy %s: %w", name, err)
	}
	return nil
}

// entryName makes zip entry names unique by suffixing repeats: a.jpg, a-2.jpg.
func entryName(filename string, seen map[string]int) string {
	name := path.Base(filename)
	seen[name]++
	if n := seen[name]; n > 1 {
		ext := path.Ext(name)
		name = strings.TrimSuffix(name, ext) + "-" + strconv.Itoa(n) + ext
	}
	return name
}
