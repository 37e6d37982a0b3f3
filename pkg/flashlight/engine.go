package flashlight

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flashlight/pkg/errors"
	"github.com/matzehuels/flashlight/pkg/observability"
	"github.com/matzehuels/flashlight/pkg/section"
	"github.com/matzehuels/flashlight/pkg/source"
	"github.com/matzehuels/flashlight/pkg/tiler"
)

const (
	// lookbehindSections is how many sections above the scroll window stay
	// shown so small upward scrolls never hit a blank region.
	lookbehindSections = 2

	// sectionMargin is how close (in layout units) the scroll top must get
	// to a section's bottom edge before the next section becomes the
	// active anchor.
	sectionMargin = 16.0

	// resizeDebounce coalesces resize bursts into one retile.
	resizeDebounce = 16 * time.Millisecond
)

// Host is the surface the engine renders into. Bounds and ScrollTop are read
// on every render pass; SetScrollTop and SetContentHeight let the engine
// anchor the viewport across retiles and reserve scroll height for content
// it has not materialized.
type Host interface {
	Bounds() (width, height float64)
	ScrollTop() float64
	SetScrollTop(top float64)
	SetContentHeight(height float64)
	Container() section.Container
}

// PlaceholderHost is implemented by hosts that can show a loading indicator
// while the gallery is still shorter than the viewport.
type PlaceholderHost interface {
	SetPlaceholderVisible(visible bool)
}

// Config wires an Engine to its source, renderer, and host callbacks.
type Config struct {
	// Source supplies pages of items. Required.
	Source source.Source

	// Render produces a node for one item. Required.
	Render section.Renderer

	// InitialKey is the cursor of the first page; nil starts the source at
	// its beginning.
	InitialKey source.RequestKey

	// Options are the initial tiling options.
	Options Options

	// OnItemClick receives the id of a clicked item along with the mapping
	// from item id to global ordinal. The map is owned by the engine and
	// must not be mutated or retained.
	OnItemClick func(id string, ordinals map[string]int)

	// OnResize, when set, is consulted whenever the frame width changes and
	// may return replacement options (nil keeps the current ones).
	OnResize func(width float64) *Options

	// OnItemResize, when set, is invoked per item during a layout pass so
	// the host can refresh per-item bookkeeping.
	OnItemResize func(id string)

	// OnError receives page-fetch failures. The engine stops paginating
	// after a failed fetch until the next Render or Reset retriggers it.
	OnError func(err error)

	// Logger defaults to a discarding logger.
	Logger *log.Logger
}

// Engine orchestrates fetching, tiling, and windowed showing of sections.
// All exported methods are safe for concurrent use; a single mutex serializes
// every state transition, including the application of fetched pages.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	ctx       context.Context
	host      Host
	container section.Container
	attached  bool

	width  float64
	height float64

	opts Options

	// Pagination state. gen is bumped by Reset so in-flight responses can
	// be recognized as stale and dropped.
	key       source.RequestKey
	gen       int
	loading   bool
	exhausted bool

	sections    []*section.Section
	totalHeight float64

	// ordinals maps item id to arrival ordinal; placedItems counts items
	// already placed into sections, which is the itemIndex of the next one.
	ordinals    map[string]int
	nextOrdinal int
	placedItems int

	// Carry-over between tiling passes.
	itemRemainder []tiler.Item
	rowRemainder  []tiler.Row

	// Scroll window. last is -1 until the first render pass.
	first  int
	last   int
	active int
	shown  map[int]bool

	layoutGen int
	updateGen int
	updater   func(id string, data any)

	resizeTimer *time.Timer

	logger *log.Logger
}

// New validates cfg and builds a detached engine. Nothing is fetched until
// Attach.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "engine requires a source")
	}
	if cfg.Render == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "engine requires a renderer")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{
		cfg:      cfg,
		opts:     cfg.Options,
		key:      cfg.InitialKey,
		ordinals: make(map[string]int),
		shown:    make(map[int]bool),
		last:     -1,
		logger:   logger,
	}, nil
}

// Attach binds the engine to a host and starts the first page fetch. Ctx
// bounds every fetch issued on behalf of this attachment. Attaching the same
// host again is a no-op; attaching a different host (after a Reset) rebinds
// the container and resumes fetching if the stream is not exhausted.
func (e *Engine) Attach(ctx context.Context, host Host) error {
	if host == nil {
		return errors.New(errors.ErrCodeNotAttached, "cannot attach a nil host")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.attached && e.host == host {
		return nil
	}

	// Nodes shown under a previous host's container are stale.
	for idx := range e.shown {
		e.sections[idx].Hide()
		delete(e.shown, idx)
	}

	e.ctx = ctx
	e.host = host
	e.container = host.Container()
	e.width, e.height = host.Bounds()
	e.attached = true

	if e.cfg.OnResize != nil {
		if o := e.cfg.OnResize(e.width); o != nil {
			e.opts, _ = e.opts.merge(*o)
		}
	}

	e.host.SetContentHeight(e.totalHeight)
	e.setPlaceholderVisible(e.totalHeight < e.height && !e.exhausted)
	e.requestPage()
	e.renderLocked(false)
	return nil
}

// IsAttached reports whether the engine currently has a host.
func (e *Engine) IsAttached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached
}

// IsLoading reports whether a page fetch is in flight.
func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Reset discards all sections, ordinals, and remainders, bumps the fetch
// generation so in-flight responses are dropped, and restarts pagination
// from the initial key.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.loading = false
	e.exhausted = false
	e.key = e.cfg.InitialKey

	for idx := range e.shown {
		e.sections[idx].Hide()
		delete(e.shown, idx)
	}
	e.sections = nil
	e.totalHeight = 0
	e.ordinals = make(map[string]int)
	e.nextOrdinal = 0
	e.placedItems = 0
	e.itemRemainder = nil
	e.rowRemainder = nil
	e.first, e.last, e.active = 0, -1, 0

	if !e.attached {
		return
	}
	e.container = e.host.Container()
	e.host.SetContentHeight(0)
	e.setPlaceholderVisible(true)
	e.requestPage()
}

// Render recomputes the scroll window from the host's current scroll top and
// shows, hides, or upgrades sections accordingly. The host calls it on every
// scroll event and UI frame; zooming marks passes during fast scrolling,
// where fresh sections come up in placeholder mode and pending layout or
// update work is deferred.
func (e *Engine) Render(zooming bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderLocked(zooming)
}

func (e *Engine) renderLocked(zooming bool) {
	if !e.attached {
		return
	}
	if len(e.sections) == 0 {
		// Nothing placed yet, which after a failed first fetch is how the
		// host's render cadence restarts pagination.
		e.requestPage()
		return
	}
	scrollTop := e.host.ScrollTop()

	// Anchor the window at the section nearest the scroll top, then grow
	// it backward by the lookbehind margin and forward to the viewport
	// bottom edge.
	nearest := 0
	best := math.Inf(1)
	for i, s := range e.sections {
		if d := math.Abs(s.Top() - scrollTop); d < best {
			best = d
			nearest = i
		}
	}
	first := max(nearest-lookbehindSections, 0)
	last := nearest
	for last+1 < len(e.sections) && e.sections[last+1].Top() <= scrollTop+e.height {
		last++
	}
	active := first
	for active < last && e.sections[active].Bottom()-sectionMargin <= scrollTop {
		active++
	}
	e.first, e.last, e.active = first, last, active

	// Evict before showing so a shrinking window releases nodes promptly.
	for idx := range e.shown {
		if idx < first || idx > last {
			e.sections[idx].Hide()
			observability.Engine().OnSectionHide(e.ctx, idx)
			delete(e.shown, idx)
		}
	}

	e.showWindow(zooming)

	if last == len(e.sections)-1 && !e.exhausted {
		e.requestPage()
	}
}

// showWindow shows every section in [first, last]. Fresh sections come up in
// placeholder mode while zooming and are upgraded on the settled pass;
// deferred layout and update work is flushed once zooming stops or some
// shown section still needs it.
func (e *Engine) showWindow(zooming bool) {
	pending := false
	for i := e.first; i <= e.last; i++ {
		if e.sections[i].NeedsLayout(e.layoutGen) || e.sections[i].NeedsUpdate(e.updateGen) {
			pending = true
			break
		}
	}
	flush := !zooming || pending

	for i := e.first; i <= e.last; i++ {
		s := e.sections[i]
		if !s.IsShown() {
			s.Show(e.container, zooming)
			observability.Engine().OnSectionShow(e.ctx, i, zooming)
		} else if !zooming {
			// Upgrades placeholder sections; a no-op for full ones.
			s.Show(e.container, false)
		}
		e.shown[i] = true

		if !flush {
			continue
		}
		if s.NeedsLayout(e.layoutGen) {
			s.ResizeItems(e.cfg.OnItemResize)
			s.MarkLaidOut(e.layoutGen)
		}
		if s.NeedsUpdate(e.updateGen) {
			s.ApplyUpdate(e.updater)
			s.MarkUpdated(e.updateGen)
		}
	}
}

// UpdateOptions overlays partial onto the current options and, when anything
// changed (or force is set), retiles all placed items under the new options
// and re-anchors the viewport at the previously active item.
func (e *Engine) UpdateOptions(partial Options, force bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged, changed := e.opts.merge(partial)
	e.opts = merged
	if (changed || force) && len(e.sections) > 0 {
		e.retile()
	}
}

// UpdateItems installs updater as the current item updater, applies it
// immediately to every shown section, and marks all others dirty so they
// catch up when next shown.
func (e *Engine) UpdateItems(updater func(id string, data any)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.updater = updater
	e.updateGen++
	for idx := range e.shown {
		e.sections[idx].ApplyUpdate(updater)
		e.sections[idx].MarkUpdated(e.updateGen)
	}
}

// Resize records a new frame size. Width changes trigger a full retile
// (after consulting OnResize for replacement options); the work is debounced
// so a burst of resize events costs one tiling pass.
func (e *Engine) Resize(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.attached {
		return
	}
	if e.resizeTimer != nil {
		e.resizeTimer.Stop()
	}
	e.resizeTimer = time.AfterFunc(resizeDebounce, func() {
		e.applyResize(width, height)
	})
}

func (e *Engine) applyResize(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.attached {
		return
	}
	widthChanged := width != e.width
	e.width, e.height = width, height

	if widthChanged && e.cfg.OnResize != nil {
		if o := e.cfg.OnResize(width); o != nil {
			e.opts, _ = e.opts.merge(*o)
		}
	}
	if widthChanged && len(e.sections) > 0 {
		e.retile()
		return
	}
	e.renderLocked(false)
}

// Click hit-tests the point (x, y) in gallery coordinates against the shown
// sections and reports whether an item was hit. A hit invokes OnItemClick.
func (e *Engine) Click(x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for idx := range e.shown {
		s := e.sections[idx]
		if y < s.Top() || y >= s.Bottom() {
			continue
		}
		return s.Click(x, y)
	}
	return false
}

// Window returns the current scroll window as section indices. Last is -1
// before the first render pass.
func (e *Engine) Window() (first, last, active int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.first, e.last, e.active
}

// SectionCount returns the number of placed sections.
func (e *Engine) SectionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sections)
}

// Section returns the i-th placed section, for read-only inspection.
func (e *Engine) Section(i int) *section.Section {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sections[i]
}

// TotalHeight returns the summed height of all placed sections.
func (e *Engine) TotalHeight() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalHeight
}

// Ordinal returns the arrival ordinal of an item id.
func (e *Engine) Ordinal(id string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ord, ok := e.ordinals[id]
	return ord, ok
}

// requestPage starts a fetch for the current key unless one is already in
// flight or the stream is exhausted. Caller must hold e.mu.
func (e *Engine) requestPage() {
	if e.loading || e.exhausted || !e.attached {
		return
	}
	e.loading = true
	go e.resolvePage(e.ctx, e.gen, e.key)
}

// resolvePage fetches one page and applies it under the lock. Responses from
// a generation older than the current one are dropped wholesale.
func (e *Engine) resolvePage(ctx context.Context, gen int, key source.RequestKey) {
	observability.Engine().OnFetchStart(ctx, key)
	start := time.Now()
	page, err := e.cfg.Source.Get(ctx, key)
	observability.Engine().OnFetchComplete(ctx, key, len(page.Items), time.Since(start), err)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		observability.Engine().OnFetchDropped(ctx, key)
		e.logger.Debug("dropped stale page", "key", key, "gen", gen)
		return
	}
	e.loading = false

	if err != nil {
		e.logger.Error("page fetch failed", "key", key, "err", err)
		if e.cfg.OnError != nil {
			e.cfg.OnError(err)
		}
		return
	}
	e.applyPage(ctx, page)
}

// applyPage folds one fetched page into the gallery: ordinals for new ids,
// a tiling pass over carried-over plus fresh items, new sections for the
// resulting full row batches, and a follow-up fetch when the viewport is
// still hungry. Caller must hold e.mu.
func (e *Engine) applyPage(ctx context.Context, page source.Page) {
	e.key = page.Next
	if page.Next == nil {
		e.exhausted = true
	}
	moreExpected := !e.exhausted

	for _, it := range page.Items {
		if _, ok := e.ordinals[it.ID]; !ok {
			e.ordinals[it.ID] = e.nextOrdinal
			e.nextOrdinal++
		}
	}

	items := append(e.itemRemainder, page.Items...)
	e.itemRemainder = nil

	start := time.Now()
	res := tiler.Tile(items, e.opts.threshold(), moreExpected)
	observability.Engine().OnTileComplete(ctx, len(items), len(res.Rows), time.Since(start))
	e.itemRemainder = res.Remainder

	rows := append(e.rowRemainder, res.Rows...)
	e.rowRemainder = nil
	created := e.appendSections(rows, moreExpected)

	e.host.SetContentHeight(e.totalHeight)
	e.setPlaceholderVisible(e.totalHeight < e.height && moreExpected)

	e.logger.Debug("applied page",
		"items", len(page.Items), "sections", created, "total", len(e.sections), "more", moreExpected)

	if moreExpected {
		// Keep fetching while the viewport is not filled, the page
		// produced nothing placeable, or the reader sits at the tail.
		switch {
		case e.totalHeight < e.height,
			created == 0,
			e.last >= 0 && e.last == len(e.sections)-1-created:
			e.requestPage()
		}
	}

	e.renderLocked(false)
}

// appendSections slices rows into RowsPerSection batches and places them
// below the existing sections. While more data is expected, a trailing
// partial batch is withheld as the row remainder of the next pass. Returns
// the number of sections created. Caller must hold e.mu.
func (e *Engine) appendSections(rows []tiler.Row, moreExpected bool) int {
	if moreExpected {
		full := (len(rows) / section.RowsPerSection) * section.RowsPerSection
		e.rowRemainder = rows[full:]
		rows = rows[:full]
	}

	created := 0
	for start := 0; start < len(rows); start += section.RowsPerSection {
		end := min(start+section.RowsPerSection, len(rows))
		s := section.New(len(e.sections), e.placedItems, rows[start:end], e.cfg.Render, e.handleClick)
		s.Set(e.totalHeight, e.width)
		s.MarkLaidOut(e.layoutGen)
		e.sections = append(e.sections, s)
		e.totalHeight += s.Height()
		e.placedItems += s.Len()
		created++
	}
	return created
}

// retile rebuilds every section from the already-placed rows under the
// current options, then scrolls so the section holding the previously active
// item lands at the viewport top. Caller must hold e.mu.
func (e *Engine) retile() {
	anchor := 0
	if e.active < len(e.sections) {
		anchor = e.sections[e.active].ItemIndex()
	}

	var rows []tiler.Row
	for _, s := range e.sections {
		rows = append(rows, s.Rows()...)
	}
	rows = append(rows, e.rowRemainder...)
	items := tiler.Items(rows)

	for idx := range e.shown {
		e.sections[idx].Hide()
		observability.Engine().OnSectionHide(e.ctx, idx)
		delete(e.shown, idx)
	}
	e.sections = nil
	e.rowRemainder = nil
	e.totalHeight = 0
	e.placedItems = 0
	e.first, e.last, e.active = 0, -1, 0

	moreExpected := !e.exhausted
	start := time.Now()
	res := tiler.Tile(items, e.opts.threshold(), moreExpected)
	observability.Engine().OnTileComplete(e.ctx, len(items), len(res.Rows), time.Since(start))

	// Tail items that no longer fill a row rejoin the pending remainder,
	// ahead of items that arrived after them.
	e.itemRemainder = append(res.Remainder, e.itemRemainder...)
	e.appendSections(res.Rows, moreExpected)

	// The rebuilt sections keep the previous layout generation, so the
	// resize pass (OnItemResize plus a row relayout) runs lazily as each
	// one is shown.
	e.layoutGen++

	e.host.SetContentHeight(e.totalHeight)

	for _, s := range e.sections {
		if s.ItemIndex() >= anchor {
			e.host.SetScrollTop(s.Top())
			break
		}
	}
	e.renderLocked(false)
}

// handleClick forwards a section-level hit to the configured click callback.
func (e *Engine) handleClick(id string, itemIndex int) {
	if e.cfg.OnItemClick != nil {
		e.cfg.OnItemClick(id, e.ordinals)
	}
}

// setPlaceholderVisible forwards to the host when it supports placeholders.
func (e *Engine) setPlaceholderVisible(visible bool) {
	if ph, ok := e.host.(PlaceholderHost); ok {
		ph.SetPlaceholderVisible(visible)
	}
}
