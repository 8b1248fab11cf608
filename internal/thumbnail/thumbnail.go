// Package thumbnail derives the gallery preview of an uploaded original.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	// MaxWidth bounds the preview width; height follows the aspect ratio.
	MaxWidth = 400
	// Quality is the JPEG quality previews are encoded with.
	Quality = 80
	// ContentType of every derived preview.
	ContentType = "image/jpeg"
)

// ErrNotImage is returned for input that cannot be decoded as an image.
var ErrNotImage = errors.New("not an image")

// Deriver resizes originals into previews.
type Deriver struct {
	maxWidth int
	quality  int
}

// New returns a Deriver with the gallery defaults.
func New() *Deriver {
	return &Deriver{maxWidth: MaxWidth, quality: Quality}
}

// Result is an encoded preview together with the dimensions of the
// original it was derived from.
type Result struct {
	Data         []byte
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
}

// Derive decodes r, shrinks it to the max width (never enlarging) and
// re-encodes it as JPEG. EXIF orientation is applied before resizing so
// portrait shots from phones come out upright.
func (d *Deriver) Derive(r io.Reader) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read original: %w", err)
	}

	if mt := mimetype.Detect(raw); !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("original is %s: %w", mt.String(), ErrNotImage)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode original: %w (%v)", ErrNotImage, err)
	}

	src := img.Bounds()
	if src.Dx() > d.maxWidth {
		img = imaging.Resize(img, d.maxWidth, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(d.quality)); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	b := img.Bounds()
	return &Result{
		Data:         buf.Bytes(),
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceWidth:  src.Dx(),
		SourceHeight: src.Dy(),
	}, nil
}
