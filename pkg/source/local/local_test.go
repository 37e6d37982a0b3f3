package local

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/flashlight/pkg/errors"
)

// writePNG writes a w x h PNG into dir under name.
func writePNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestNewDirScansImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "b-wide.png", 200, 100)
	writePNG(t, dir, "a-tall.png", 100, 200)
	writePNG(t, dir, "c-square.png", 64, 64)

	// Non-image and unreadable files are skipped.
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "broken.png"), []byte("truncated"), 0o644)

	d, err := NewDir(dir, 60, nil)
	if err != nil {
		t.Fatalf("NewDir error: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("Len = %d, want 3", d.Len())
	}

	page, err := d.Get(context.Background(), nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}

	// Filename order for deterministic pagination.
	wantIDs := []string{"a-tall.png", "b-wide.png", "c-square.png"}
	wantARs := []float64{0.5, 2, 1}
	for i, it := range page.Items {
		if it.ID != wantIDs[i] {
			t.Errorf("item %d id = %s, want %s", i, it.ID, wantIDs[i])
		}
		if it.AspectRatio != wantARs[i] {
			t.Errorf("item %d aspect ratio = %v, want %v", i, it.AspectRatio, wantARs[i])
		}
		entry := it.Data.(*Entry)
		if entry.Path != filepath.Join(dir, it.ID) {
			t.Errorf("item %d path = %s", i, entry.Path)
		}
	}
	if page.Next != nil {
		t.Errorf("Next = %v, want nil for a single page", page.Next)
	}
}

func TestDirPagination(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.png", "2.png", "3.png", "4.png", "5.png"} {
		writePNG(t, dir, name, 10, 10)
	}

	d, err := NewDir(dir, 2, nil)
	if err != nil {
		t.Fatalf("NewDir error: %v", err)
	}

	ctx := context.Background()
	var ids []string
	var key any
	pages := 0
	for {
		page, err := d.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		pages++
		for _, it := range page.Items {
			ids = append(ids, it.ID)
		}
		if page.Next == nil {
			break
		}
		key = page.Next
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(ids) != 5 {
		t.Errorf("collected %d items, want 5", len(ids))
	}
}

func TestNewDirMissingDirectory(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "does-not-exist"), 10, nil)
	if !errors.Is(err, errors.ErrCodeInvalidSource) {
		t.Errorf("NewDir error = %v, want INVALID_SOURCE", err)
	}
}

func TestDirRejectsBadCursor(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 10, 10)

	d, _ := NewDir(dir, 10, nil)
	if _, err := d.Get(context.Background(), "bogus"); !errors.Is(err, errors.ErrCodeInvalidKey) {
		t.Errorf("Get error = %v, want INVALID_KEY", err)
	}
}
