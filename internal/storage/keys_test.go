package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "photos/2024/", YearPrefix(2024))
	assert.Equal(t, "photos/2024/coupe-regionale/", CompetitionPrefix(2024, "coupe-regionale"))
	assert.Equal(t,
		"photos/2024/coupe-regionale/originals/abc_IMG_1.jpg",
		Key(2024, "coupe-regionale", Originals, "abc_IMG_1.jpg"))
}

func TestThumbnailKeyRoundTrip(t *testing.T) {
	original := "photos/2024/cup/originals/abc_IMG 1.png"

	thumb, ok := ThumbnailKeyFor(original)
	assert.True(t, ok)
	assert.Equal(t, "photos/2024/cup/thumbnails/abc_IMG 1.png.jpg", thumb)

	back, ok := OriginalKeyFor(thumb)
	assert.True(t, ok)
	assert.Equal(t, original, back)
}

func TestThumbnailKeyForRejectsOtherFolders(t *testing.T) {
	_, ok := ThumbnailKeyFor("photos/2024/cup/thumbnails/a.jpg.jpg")
	assert.False(t, ok)

	_, ok = OriginalKeyFor("photos/2024/cup/originals/a.jpg")
	assert.False(t, ok)
}

func TestPublicBase(t *testing.T) {
	b := newPublicBase("https://cdn.example.com/")

	assert.Equal(t, "https://cdn.example.com/photos/a.jpg", b.PublicURL("photos/a.jpg"))

	key, ok := b.KeyFromURL("https://cdn.example.com/photos/a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "photos/a.jpg", key)

	_, ok = b.KeyFromURL("https://evil.example.com/photos/a.jpg")
	assert.False(t, ok)

	_, ok = b.KeyFromURL("https://cdn.example.com.evil.net/photos/a.jpg")
	assert.False(t, ok)

	_, ok = b.KeyFromURL("https://cdn.example.com/../secret")
	assert.False(t, ok)
}
