// Package assets implements the Asset Loader (spec §4.3): path
// normalisation, decode, and a placeholder-on-failure cache.
package assets

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/sirupsen/logrus"
)

// Image is a decoded, unpremultiplied straight-alpha RGBA bitmap.
type Image struct {
	Pix           []uint8
	Width, Height int
}

// IsPlaceholder reports whether img is the 1x1 transparent placeholder
// substituted for any asset that failed to load.
func (img *Image) IsPlaceholder() bool {
	return img.Width == 1 && img.Height == 1 && img.Pix[3] == 0
}

var placeholder = &Image{Pix: []uint8{0, 0, 0, 0}, Width: 1, Height: 1}

// Loader resolves storyboard image paths relative to a base directory and
// caches decoded bitmaps. A Loader is not safe for concurrent use; each
// frame-driver worker owns its own (spec §9 "Asset caching across
// workers").
type Loader struct {
	baseDir string
	log     *logrus.Entry
	cache   map[string]*Image
}

// NewLoader returns a Loader rooted at baseDir.
func NewLoader(baseDir string, log *logrus.Entry) *Loader {
	if log == nil {
		log = logrus.WithField("component", "assets.loader")
	}
	return &Loader{
		baseDir: baseDir,
		log:     log,
		cache:   make(map[string]*Image),
	}
}

// normalize strips surrounding quotes and converts `\` separators to the
// host path separator, matching the storyboard format's Windows-style
// paths.
func normalize(raw string) string {
	raw = strings.Trim(raw, `"`)
	return strings.ReplaceAll(raw, `\`, string(filepath.Separator))
}

// Load resolves relativePath against the loader's base directory, decoding
// and caching the result. Any failure (missing file, unsupported/corrupt
// image) returns the shared placeholder bitmap and caches that outcome too,
// so a bad path is never re-stat'd.
func (l *Loader) Load(relativePath string) *Image {
	key := normalize(relativePath)

	if img, ok := l.cache[key]; ok {
		return img
	}

	fullPath := filepath.Join(l.baseDir, key)

	f, err := os.Open(fullPath)
	if err != nil {
		l.log.WithField("path", fullPath).Warn("asset not found")
		l.cache[key] = placeholder
		return placeholder
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		l.log.WithError(err).WithField("path", fullPath).Warn("failed to decode asset")
		l.cache[key] = placeholder
		return placeholder
	}

	img := toNRGBA(decoded)
	l.cache[key] = img
	return img
}

// toNRGBA decodes into non-premultiplied (straight) alpha, since image.RGBA
// stores premultiplied values and the spec's blend formulas operate on
// straight alpha throughout.
func toNRGBA(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	return &Image{Pix: nrgba.Pix, Width: w, Height: h}
}

// Placeholder returns the shared 1x1 transparent bitmap.
func Placeholder() *Image { return placeholder }

// AsNRGBA wraps img's straight-alpha pixels as an *image.NRGBA without
// copying, for use as a draw.Interpolator source in the compositor.
func (img *Image) AsNRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    img.Pix,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
}

// CacheSize reports how many distinct keys (including placeholder hits)
// have been resolved by this loader. Useful for diagnostics, not used on
// any hot path.
func (l *Loader) CacheSize() int { return len(l.cache) }
