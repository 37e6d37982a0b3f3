// Package source defines the pull-based paginated data source the gallery
// engine consumes, along with ready-made implementations: an in-memory
// slice source, an HTTP client for the page server, a cache-backed wrapper,
// and (in subpackages) directory and MongoDB sources.
//
// Pagination is cursor-based: each page carries an opaque next-request key,
// and a nil key signals end of stream. Sources never see more than one
// request at a time from a single engine (the loading gate serializes
// fetches), but implementations should still be safe for
// concurrent use so several galleries can share one source.
package source

import (
	"context"

	"github.com/matzehuels/flashlight/pkg/tiler"
)

// RequestKey is an opaque pagination cursor owned by the source.
// nil signals end of stream.
type RequestKey any

// Page is one resolved batch of items.
type Page struct {
	// Items are the page's entries in display order.
	Items []tiler.Item

	// Next is the cursor for the following page, or nil when the stream
	// is exhausted.
	Next RequestKey
}

// Source is a pull-based paginated item source.
type Source interface {
	// Get resolves the page identified by key. The first call uses the
	// engine's configured initial key.
	Get(ctx context.Context, key RequestKey) (Page, error)
}

// Func adapts a plain function to the Source interface.
type Func func(ctx context.Context, key RequestKey) (Page, error)

// Get implements Source.
func (f Func) Get(ctx context.Context, key RequestKey) (Page, error) {
	return f(ctx, key)
}
