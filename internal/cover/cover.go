// Package cover resolves the image that represents a year or a competition
// in listings: an explicit choice when it still points at a photo, otherwise
// the first photo by display order, otherwise nothing.
package cover

import (
	"context"
	"fmt"
)

// Source answers the thumbnail lookups the resolver needs. found is false
// when nothing matches; that is not an error.
type Source interface {
	// ThumbnailByID returns the thumbnail of a photo.
	ThumbnailByID(ctx context.Context, photoID string) (url string, found bool, err error)
	// FirstThumbnailInCompetition returns the thumbnail of the photo with the
	// lowest (order, created_at) in the competition.
	FirstThumbnailInCompetition(ctx context.Context, competitionID string) (url string, found bool, err error)
	// FirstThumbnailInYear returns the thumbnail of the first photo of the
	// year ordered by (competition order, photo order).
	FirstThumbnailInYear(ctx context.Context, yearID string) (url string, found bool, err error)
}

// Resolver picks cover thumbnails.
type Resolver struct {
	src Source
}

// NewResolver creates a Resolver backed by src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// ForCompetition returns the cover URL of a competition, or nil.
func (r *Resolver) ForCompetition(ctx context.Context, competitionID string, coverPhotoID *string) (*string, error) {
	return r.resolve(ctx, coverPhotoID, func() (string, bool, error) {
		return r.src.FirstThumbnailInCompetition(ctx, competitionID)
	})
}

// ForYear returns the cover URL of a year, or nil.
func (r *Resolver) ForYear(ctx context.Context, yearID string, coverPhotoID *string) (*string, error) {
	return r.resolve(ctx, coverPhotoID, func() (string, bool, error) {
		return r.src.FirstThumbnailInYear(ctx, yearID)
	})
}

func (r *Resolver) resolve(ctx context.Context, coverPhotoID *string, fallback func() (string, bool, error)) (*string, error) {
	if coverPhotoID != nil && *coverPhotoID != "" {
		url, found, err := r.src.ThumbnailByID(ctx, *coverPhotoID)
		if err != nil {
			return nil, fmt.Errorf("explicit cover: %w", err)
		}
		if found {
			return &url, nil
		}
	}

	url, found, err := fallback()
	if err != nil {
		return nil, fmt.Errorf("fallback cover: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &url, nil
}
