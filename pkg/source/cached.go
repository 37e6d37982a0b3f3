package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/flashlight/pkg/cache"
	"github.com/matzehuels/flashlight/pkg/observability"
	"github.com/matzehuels/flashlight/pkg/tiler"
)

// Cached wraps a Source with a page cache. The engine itself never caches;
// hosts that want warm restarts or shared multi-instance caches compose this
// wrapper around their real source.
//
// Cached pages store item ids and aspect ratios plus JSON-marshalable render
// data. Sources whose item Data does not survive a JSON round trip should
// not be wrapped.
type Cached struct {
	inner Source
	cache cache.Cache
	keyer cache.Keyer
	scope string
	ttl   time.Duration
}

// NewCached creates a caching wrapper. scope identifies the inner source in
// cache keys (e.g., "http:localhost:8080"); keyer may be nil for the default.
func NewCached(inner Source, c cache.Cache, keyer cache.Keyer, scope string, ttl time.Duration) *Cached {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Cached{inner: inner, cache: c, keyer: keyer, scope: scope, ttl: ttl}
}

// cachedItem is the persisted form of a tiler.Item.
type cachedItem struct {
	ID          string          `json:"id"`
	AspectRatio float64         `json:"aspect_ratio"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// cachedPage is the persisted form of a Page. Cursors are persisted as JSON
// and restored as generic values; sources behind a Cached wrapper must
// accept their own cursors after such a round trip.
type cachedPage struct {
	Items []cachedItem    `json:"items"`
	Next  json.RawMessage `json:"next,omitempty"`
}

// Get consults the cache before delegating to the inner source.
// Cache failures degrade to a plain fetch; they are never fatal.
func (s *Cached) Get(ctx context.Context, key RequestKey) (Page, error) {
	cacheKey := s.keyer.PageKey(s.scope, key, cache.PageKeyOpts{})

	if data, hit, err := s.cache.Get(ctx, cacheKey); err == nil && hit {
		if page, err := decodePage(data); err == nil {
			observability.Cache().OnCacheHit(ctx, "page")
			return page, nil
		}
		// Undecodable entry: drop it and fall through to a fresh fetch.
		_ = s.cache.Delete(ctx, cacheKey)
	}
	observability.Cache().OnCacheMiss(ctx, "page")

	page, err := s.inner.Get(ctx, key)
	if err != nil {
		return Page{}, err
	}

	if data, err := encodePage(page); err == nil {
		if err := s.cache.Set(ctx, cacheKey, data, s.ttl); err == nil {
			observability.Cache().OnCacheSet(ctx, "page", len(data))
		}
	}
	return page, nil
}

func encodePage(page Page) ([]byte, error) {
	out := cachedPage{Items: make([]cachedItem, len(page.Items))}
	for i, it := range page.Items {
		ci := cachedItem{ID: it.ID, AspectRatio: it.AspectRatio}
		if it.Data != nil {
			data, err := json.Marshal(it.Data)
			if err != nil {
				return nil, err
			}
			ci.Data = data
		}
		out.Items[i] = ci
	}
	if page.Next != nil {
		next, err := json.Marshal(page.Next)
		if err != nil {
			return nil, err
		}
		out.Next = next
	}
	return json.Marshal(out)
}

func decodePage(data []byte) (Page, error) {
	var in cachedPage
	if err := json.Unmarshal(data, &in); err != nil {
		return Page{}, err
	}
	page := Page{Items: make([]tiler.Item, len(in.Items))}
	for i, ci := range in.Items {
		it := tiler.Item{ID: ci.ID, AspectRatio: ci.AspectRatio}
		if len(ci.Data) > 0 {
			var v any
			if err := json.Unmarshal(ci.Data, &v); err != nil {
				return Page{}, err
			}
			it.Data = v
		}
		page.Items[i] = it
	}
	if len(in.Next) > 0 {
		var next any
		if err := json.Unmarshal(in.Next, &next); err != nil {
			return Page{}, err
		}
		page.Next = next
	}
	return page, nil
}

// Ensure Cached implements Source.
var _ Source = (*Cached)(nil)
