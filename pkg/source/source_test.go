package source

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matzehuels/flashlight/pkg/cache"
	"github.com/matzehuels/flashlight/pkg/errors"
	"github.com/matzehuels/flashlight/pkg/tiler"
)

func testItems(n int) []tiler.Item {
	rng := rand.New(rand.NewSource(42))
	return GenerateItems(n, rng)
}

func TestSlicePagination(t *testing.T) {
	ctx := context.Background()
	items := testItems(25)
	s := NewSlice(items, 10)

	var got []tiler.Item
	var key RequestKey
	fetches := 0
	for {
		page, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		fetches++
		got = append(got, page.Items...)
		if page.Next == nil {
			break
		}
		key = page.Next
	}

	if fetches != 3 {
		t.Errorf("fetches = %d, want 3", fetches)
	}
	if len(got) != len(items) {
		t.Fatalf("collected %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i].ID != items[i].ID {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, items[i].ID)
		}
	}
}

func TestSliceRejectsBadCursor(t *testing.T) {
	s := NewSlice(testItems(5), 10)

	if _, err := s.Get(context.Background(), "not-an-int"); !errors.Is(err, errors.ErrCodeInvalidKey) {
		t.Errorf("Get with string cursor error = %v, want INVALID_KEY", err)
	}
	if _, err := s.Get(context.Background(), 99); !errors.Is(err, errors.ErrCodeInvalidKey) {
		t.Errorf("Get with out-of-range cursor error = %v, want INVALID_KEY", err)
	}
}

func TestSliceAcceptsJSONRoundTrippedCursor(t *testing.T) {
	s := NewSlice(testItems(25), 10)

	// Cursors decoded from a cached page arrive as float64.
	page, err := s.Get(context.Background(), float64(10))
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(page.Items) != 10 {
		t.Errorf("page items = %d, want 10", len(page.Items))
	}
}

func TestGenerateItems(t *testing.T) {
	items := GenerateItems(100, rand.New(rand.NewSource(1)))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.AspectRatio < 0.5 || it.AspectRatio >= 2.5 {
			t.Errorf("aspect ratio %v outside [0.5, 2.5)", it.AspectRatio)
		}
		if seen[it.ID] {
			t.Errorf("duplicate id %s", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestCachedHitSkipsInnerSource(t *testing.T) {
	ctx := context.Background()
	inner := &countingSource{inner: NewSlice(testItems(25), 10)}
	c, _ := cache.NewFileCache(t.TempDir())
	s := NewCached(inner, c, nil, "test", time.Hour)

	first, err := s.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}

	second, err := s.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (second read should hit the cache)", inner.calls)
	}

	if len(second.Items) != len(first.Items) {
		t.Fatalf("cached page has %d items, want %d", len(second.Items), len(first.Items))
	}
	for i := range first.Items {
		if second.Items[i].ID != first.Items[i].ID {
			t.Errorf("position %d: cached id %s, want %s", i, second.Items[i].ID, first.Items[i].ID)
		}
		if second.Items[i].AspectRatio != first.Items[i].AspectRatio {
			t.Errorf("position %d: cached ratio %v, want %v", i, second.Items[i].AspectRatio, first.Items[i].AspectRatio)
		}
	}

	// The cached cursor still paginates the inner source.
	third, err := s.Get(ctx, second.Next)
	if err != nil {
		t.Fatalf("Get with cached cursor error: %v", err)
	}
	if len(third.Items) != 10 {
		t.Errorf("next page items = %d, want 10", len(third.Items))
	}
}

func TestCachedNullCacheAlwaysFetches(t *testing.T) {
	ctx := context.Background()
	inner := &countingSource{inner: NewSlice(testItems(5), 10)}
	s := NewCached(inner, cache.NewNullCache(), nil, "test", time.Hour)

	_, _ = s.Get(ctx, nil)
	_, _ = s.Get(ctx, nil)
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2 with a null cache", inner.calls)
	}
}

func TestHTTPSource(t *testing.T) {
	pages := map[string]wirePage{
		"": {
			Items: []wireItem{{ID: "a", AspectRatio: 1.5}, {ID: "b", AspectRatio: 0.8}},
			Next:  "tok-2",
		},
		"tok-2": {
			Items: []wireItem{{ID: "c", AspectRatio: 2.1}},
		},
	}

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/api/items" {
			http.NotFound(w, r)
			return
		}
		page, ok := pages[r.URL.Query().Get("key")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	s, err := NewHTTP(server.URL, 60)
	if err != nil {
		t.Fatalf("NewHTTP error: %v", err)
	}

	ctx := context.Background()
	first, err := s.Get(ctx, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != "a" {
		t.Errorf("first page = %+v", first.Items)
	}
	if first.Next != "tok-2" {
		t.Errorf("first.Next = %v, want tok-2", first.Next)
	}

	second, err := s.Get(ctx, first.Next)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != "c" {
		t.Errorf("second page = %+v", second.Items)
	}
	if second.Next != nil {
		t.Errorf("second.Next = %v, want nil (end of stream)", second.Next)
	}

	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestHTTPSourceNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	s, _ := NewHTTP(server.URL, 0)
	_, err := s.Get(context.Background(), "gone")
	if !errors.Is(err, errors.ErrCodePageNotFound) {
		t.Errorf("Get error = %v, want PAGE_NOT_FOUND", err)
	}
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(wirePage{Items: []wireItem{{ID: "a", AspectRatio: 1}}})
	}))
	defer server.Close()

	s, _ := NewHTTP(server.URL, 0)
	page, err := s.Get(context.Background(), nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("page items = %d, want 1", len(page.Items))
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2 (one failure, one retry)", requests)
	}
}

// countingSource counts delegated fetches.
type countingSource struct {
	inner Source
	calls int
}

func (s *countingSource) Get(ctx context.Context, key RequestKey) (Page, error) {
	s.calls++
	return s.inner.Get(ctx, key)
}
