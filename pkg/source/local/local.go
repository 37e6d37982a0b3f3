// Package local serves gallery pages from a directory of images on disk.
//
// The directory is scanned once at construction. Intrinsic aspect ratios are
// probed by decoding image headers only (image.DecodeConfig), so even large
// galleries open quickly. Beyond the stdlib formats (JPEG, PNG, GIF), the
// golang.org/x/image decoders for WebP, BMP, and TIFF are registered.
package local

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Header decoders for aspect-ratio probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flashlight/pkg/errors"
	"github.com/matzehuels/flashlight/pkg/source"
	"github.com/matzehuels/flashlight/pkg/tiler"
)

// imageExtensions are the filename extensions the scanner considers.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Entry is the render data attached to each item: enough for a host to
// display a label and load the full image on demand.
type Entry struct {
	Path   string
	Name   string
	Width  int
	Height int
}

// Dir is a paginated source over one directory of images, ordered by
// filename for deterministic pagination.
type Dir struct {
	items    []tiler.Item
	pageSize int
}

// NewDir scans dir (non-recursively) and builds a source with the given
// page size. Files that are not images, or whose headers cannot be decoded,
// are skipped with a debug log. A directory with no readable images is not
// an error; the resulting source is simply empty.
func NewDir(dir string, pageSize int, logger *log.Logger) (*Dir, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "cannot read image directory %q", dir)
	}

	var items []tiler.Item
	for _, de := range dirEntries {
		if de.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(de.Name()))] {
			continue
		}
		path := filepath.Join(dir, de.Name())
		w, h, err := probe(path)
		if err != nil {
			logger.Debug("skipping unreadable image", "path", path, "err", err)
			continue
		}
		ar := 1.0
		if h > 0 {
			ar = float64(w) / float64(h)
		}
		items = append(items, tiler.Item{
			ID:          de.Name(),
			AspectRatio: ar,
			Data:        &Entry{Path: path, Name: de.Name(), Width: w, Height: h},
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	if pageSize <= 0 {
		pageSize = 60
	}
	return &Dir{items: items, pageSize: pageSize}, nil
}

// probe decodes just the image header and returns its pixel dimensions.
func probe(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Get returns the page at the integer offset carried by key; nil starts at
// the beginning.
func (d *Dir) Get(ctx context.Context, key source.RequestKey) (source.Page, error) {
	offset := 0
	switch o := key.(type) {
	case nil:
	case int:
		offset = o
	default:
		return source.Page{}, errors.New(errors.ErrCodeInvalidKey, "directory source expects int cursors, got %T", key)
	}
	if offset < 0 || offset > len(d.items) {
		return source.Page{}, errors.New(errors.ErrCodeInvalidKey, "cursor %d out of range [0, %d]", offset, len(d.items))
	}

	end := min(offset+d.pageSize, len(d.items))
	page := source.Page{Items: d.items[offset:end]}
	if end < len(d.items) {
		page.Next = end
	}
	return page, nil
}

// Len returns the number of images found by the scan.
func (d *Dir) Len() int { return len(d.items) }

// Ensure Dir implements source.Source.
var _ source.Source = (*Dir)(nil)
