package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/flashlight/pkg/errors"
	"github.com/matzehuels/flashlight/pkg/httputil"
	"github.com/matzehuels/flashlight/pkg/observability"
	"github.com/matzehuels/flashlight/pkg/tiler"
)

// HTTP fetches pages from a flashlight page server (see the serve command).
// Cursors are the opaque string tokens the server hands out; the wire format
// is the JSON page document described in pkg/httputil.
type HTTP struct {
	base     *url.URL
	client   *http.Client
	pageSize int
}

// wireItem is the JSON form of an item on the page endpoint.
type wireItem struct {
	ID          string  `json:"id"`
	AspectRatio float64 `json:"aspect_ratio"`
	Data        any     `json:"data,omitempty"`
}

// wirePage is the JSON form of a page on the page endpoint.
// An empty next token signals end of stream.
type wirePage struct {
	Items []wireItem `json:"items"`
	Next  string     `json:"next,omitempty"`
}

// NewHTTP creates an HTTP source for the server at baseURL.
// A non-positive page size lets the server choose.
func NewHTTP(baseURL string, pageSize int) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "invalid page server URL %q", baseURL)
	}
	return &HTTP{
		base:     base,
		client:   &http.Client{Timeout: 30 * time.Second},
		pageSize: pageSize,
	}, nil
}

// Get fetches one page, retrying transient failures with backoff.
func (s *HTTP) Get(ctx context.Context, key RequestKey) (Page, error) {
	cursor := ""
	switch k := key.(type) {
	case nil:
	case string:
		cursor = k
	default:
		return Page{}, errors.New(errors.ErrCodeInvalidKey, "http source expects string cursors, got %T", key)
	}

	u := *s.base
	u.Path, _ = url.JoinPath(u.Path, "api", "items")
	q := u.Query()
	if cursor != "" {
		q.Set("key", cursor)
	}
	if s.pageSize > 0 {
		q.Set("limit", fmt.Sprint(s.pageSize))
	}
	u.RawQuery = q.Encode()

	var wire wirePage
	err := httputil.RetryWithBackoff(ctx, func() error {
		return s.fetch(ctx, &u, &wire)
	})
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: make([]tiler.Item, len(wire.Items))}
	for i, wi := range wire.Items {
		page.Items[i] = tiler.Item{ID: wi.ID, AspectRatio: wi.AspectRatio, Data: wi.Data}
	}
	if wire.Next != "" {
		page.Next = wire.Next
	}
	return page, nil
}

// fetch performs a single request attempt, classifying failures so that
// Retry only retries the transient ones.
func (s *HTTP) fetch(ctx context.Context, u *url.URL, out *wirePage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	observability.HTTP().OnRequest(ctx, req.Method, u.Host, u.Path)
	start := time.Now()

	resp, err := s.client.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, u.Host, u.Path, err)
		return httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "page request failed"))
	}
	defer resp.Body.Close()

	observability.HTTP().OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode >= 500:
		return httputil.Retryable(errors.New(errors.ErrCodeNetwork, "page server returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrCodePageNotFound, "page server returned 404 for %s", u.Path)
	default:
		return errors.New(errors.ErrCodeInternal, "page server returned %d", resp.StatusCode)
	}
}

// Ensure HTTP implements Source.
var _ Source = (*HTTP)(nil)
