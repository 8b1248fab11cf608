package storage

import (
	"fmt"
	"path"
	"strings"
)

// RootPrefix is the folder every gallery object lives under.
const RootPrefix = "photos/"

// Variant is the kind of image stored under a competition folder.
type Variant string

const (
	Originals  Variant = "originals"
	Thumbnails Variant = "thumbnails"
)

// ThumbnailExt is appended to the original file name to form the thumbnail name.
const ThumbnailExt = ".jpg"

// YearPrefix is the folder holding every object of a year: "photos/2024/".
func YearPrefix(year int) string {
	return fmt.Sprintf("%s%d/", RootPrefix, year)
}

// CompetitionPrefix is the folder holding every object of a competition:
// "photos/2024/regional-cup/".
func CompetitionPrefix(year int, slug string) string {
	return YearPrefix(year) + slug + "/"
}

// Key builds "photos/{year}/{slug}/{variant}/{filename}".
func Key(year int, slug string, variant Variant, filename string) string {
	return CompetitionPrefix(year, slug) + string(variant) + "/" + filename
}

// ThumbnailKeyFor maps an original key to its parallel thumbnail key.
// ok is false when key is not an original.
func ThumbnailKeyFor(originalKey string) (string, bool) {
	dir, file := path.Split(originalKey)
	if !strings.HasSuffix(dir, "/"+string(Originals)+"/") || file == "" {
		return "", false
	}
	base := strings.TrimSuffix(dir, string(Originals)+"/")
	return base + string(Thumbnails) + "/" + file + ThumbnailExt, true
}

// OriginalKeyFor maps a thumbnail key back to the original it was derived from.
func OriginalKeyFor(thumbnailKey string) (string, bool) {
	dir, file := path.Split(thumbnailKey)
	if !strings.HasSuffix(dir, "/"+string(Thumbnails)+"/") || !strings.HasSuffix(file, ThumbnailExt) {
		return "", false
	}
	base := strings.TrimSuffix(dir, string(Thumbnails)+"/")
	return base + string(Originals) + "/" + strings.TrimSuffix(file, ThumbnailExt), true
}
