package cli

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/flashlight/pkg/flashlight"
	"github.com/matzehuels/flashlight/pkg/scroll"
	"github.com/matzehuels/flashlight/pkg/section"
	"github.com/matzehuels/flashlight/pkg/source"
	"github.com/matzehuels/flashlight/pkg/source/local"
)

// cellAspect is how many gallery layout units one terminal row spans.
// Terminal cells are roughly twice as tall as wide, so mapping two layout
// units per row keeps item aspect ratios visually plausible.
const cellAspect = 2.0

// frameInterval paces repaints while background work (page fetches, settle
// upgrades) mutates the gallery without a user event.
const frameInterval = 80 * time.Millisecond

// zoomThreshold is the scroll velocity, in layout units per millisecond,
// beyond which the gallery renders placeholders. Tuned for key-repeat and
// wheel flings in a terminal.
const zoomThreshold = 0.8

// keyScrollStep and wheelScrollStep are scroll distances in layout units.
const (
	keyScrollStep   = 4.0
	wheelScrollStep = 6.0
)

// =============================================================================
// Render nodes and container
// =============================================================================

// cellNode is the render node for one item: a labeled box on the cell grid.
type cellNode struct {
	id          string
	label       string
	dims        section.Dimensions
	placeholder bool
}

// cellContainer collects the nodes of shown sections. The engine attaches
// and detaches from its own goroutines, so access is locked.
type cellContainer struct {
	mu    sync.Mutex
	nodes map[*cellNode]struct{}
}

func newCellContainer() *cellContainer {
	return &cellContainer{nodes: make(map[*cellNode]struct{})}
}

func (c *cellContainer) Attach(n section.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[n.(*cellNode)] = struct{}{}
}

func (c *cellContainer) Detach(n section.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, n.(*cellNode))
}

// snapshot returns the attached nodes for drawing.
func (c *cellContainer) snapshot() []*cellNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodes := make([]*cellNode, 0, len(c.nodes))
	for n := range c.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// renderCell is the section renderer for the terminal gallery.
func renderCell(id string, data any, dims section.Dimensions, placeholder bool) section.Node {
	return &cellNode{id: id, label: nodeLabel(id, data), dims: dims, placeholder: placeholder}
}

// nodeLabel picks a human-readable label for an item.
func nodeLabel(id string, data any) string {
	switch d := data.(type) {
	case *local.Entry:
		return d.Name
	case map[string]any:
		if name, ok := d["name"].(string); ok {
			return name
		}
	}
	return id
}

// =============================================================================
// Host
// =============================================================================

// galleryHost adapts the terminal viewport to the engine's host interface.
// The engine reads and writes it from fetch goroutines, so every field is
// behind the lock.
type galleryHost struct {
	mu            sync.Mutex
	width, height float64
	scrollTop     float64
	contentHeight float64
	fetching      bool
	container     *cellContainer

	selectedID  string
	selectedOrd int
	lastErr     error
}

func newGalleryHost() *galleryHost {
	return &galleryHost{container: newCellContainer()}
}

func (h *galleryHost) Bounds() (float64, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

func (h *galleryHost) ScrollTop() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollTop
}

func (h *galleryHost) SetScrollTop(top float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scrollTop = top
}

func (h *galleryHost) SetContentHeight(height float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.contentHeight = height
}

func (h *galleryHost) Container() section.Container { return h.container }

func (h *galleryHost) SetPlaceholderVisible(visible bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetching = visible
}

func (h *galleryHost) resize(width, height float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.width, h.height = width, height
}

func (h *galleryHost) top() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollTop
}

func (h *galleryHost) content() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.contentHeight
}

func (h *galleryHost) viewHeight() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.height
}

func (h *galleryHost) isFetching() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetching
}

func (h *galleryHost) setSelected(id string, ordinal int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selectedID, h.selectedOrd = id, ordinal
}

func (h *galleryHost) selected() (string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selectedID, h.selectedOrd
}

func (h *galleryHost) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
}

func (h *galleryHost) err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// =============================================================================
// Bubbletea model
// =============================================================================

// galleryParams configures the gallery model.
type galleryParams struct {
	src       source.Source
	name      string
	threshold float64
	logger    *log.Logger
}

// frameMsg paces repaints.
type frameMsg time.Time

// galleryModel is the bubbletea model hosting a flashlight engine.
type galleryModel struct {
	ctx    context.Context
	engine *flashlight.Engine
	reader *scroll.Reader
	host   *galleryHost
	logger *log.Logger
	name   string

	termWidth  int
	termHeight int
	ready      bool
}

// newGalleryModel builds the model and its engine. The engine stays detached
// until the first window size message arrives.
func newGalleryModel(ctx context.Context, p galleryParams) (*galleryModel, error) {
	host := newGalleryHost()

	eng, err := flashlight.New(flashlight.Config{
		Source:  p.src,
		Render:  renderCell,
		Options: flashlight.Options{RowAspectRatioThreshold: p.threshold},
		OnItemClick: func(id string, ordinals map[string]int) {
			host.setSelected(id, ordinals[id])
		},
		OnError: func(err error) { host.setErr(err) },
		Logger:  p.logger,
	})
	if err != nil {
		return nil, err
	}

	m := &galleryModel{
		ctx:    ctx,
		engine: eng,
		host:   host,
		logger: p.logger,
		name:   p.name,
	}
	m.reader = scroll.NewReader(
		func(zooming bool) { eng.Render(zooming) },
		scroll.WithThreshold(func(width float64) float64 { return zoomThreshold }),
	)
	return m, nil
}

func (m *galleryModel) Init() tea.Cmd {
	return frameTick()
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// contentRows is the number of terminal rows available to the gallery after
// the header and status lines.
func (m *galleryModel) contentRows() int {
	return max(m.termHeight-2, 1)
}

func (m *galleryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termWidth, m.termHeight = msg.Width, msg.Height
		layoutW := float64(m.termWidth)
		layoutH := cellAspect * float64(m.contentRows())
		m.reader.SetWidth(layoutW)
		if !m.ready {
			m.host.resize(layoutW, layoutH)
			if err := m.engine.Attach(m.ctx, m.host); err != nil {
				m.host.setErr(err)
			}
			m.ready = true
		} else {
			m.host.resize(layoutW, layoutH)
			m.engine.Resize(layoutW, layoutH)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.reader.Stop()
			return m, tea.Quit
		case "up", "k":
			m.scrollBy(-keyScrollStep)
		case "down", "j":
			m.scrollBy(keyScrollStep)
		case "pgup":
			m.scrollBy(-m.host.viewHeight())
		case "pgdown", " ":
			m.scrollBy(m.host.viewHeight())
		case "home":
			m.scrollTo(0)
		case "end":
			m.scrollTo(m.host.content())
		case "r":
			m.host.setErr(nil)
			m.engine.Reset()
		}

	case tea.MouseMsg:
		switch {
		case msg.Button == tea.MouseButtonWheelUp:
			m.scrollBy(-wheelScrollStep)
		case msg.Button == tea.MouseButtonWheelDown:
			m.scrollBy(wheelScrollStep)
		case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			m.click(msg.X, msg.Y)
		}

	case frameMsg:
		return m, frameTick()
	}
	return m, nil
}

// scrollBy moves the viewport by delta layout units, clamped to content.
func (m *galleryModel) scrollBy(delta float64) {
	m.scrollTo(m.host.top() + delta)
}

// scrollTo sets the scroll offset and feeds it to the reader, which decides
// the render mode.
func (m *galleryModel) scrollTo(top float64) {
	if !m.ready {
		return
	}
	limit := max(m.host.content()-m.host.viewHeight(), 0)
	top = min(max(top, 0), limit)
	m.host.SetScrollTop(top)
	m.reader.Scroll(top)
}

// click maps a terminal cell to gallery coordinates and dispatches the hit.
// Row 0 is the header.
func (m *galleryModel) click(x, y int) {
	if !m.ready || y < 1 || y > m.contentRows() {
		return
	}
	layoutX := float64(x)
	layoutY := m.host.top() + float64(y-1)*cellAspect
	m.engine.Click(layoutX, layoutY)
}

func (m *galleryModel) View() string {
	if !m.ready {
		return "\n  starting gallery..."
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render(" flashlight "))
	b.WriteString(StyleDim.Render(m.name))
	b.WriteString("\n")

	lines := drawCanvas(m.host.container.snapshot(), m.host.top(), m.termWidth, m.contentRows())
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine())
	return b.String()
}

// statusLine summarizes scroll position, window, and background activity.
func (m *galleryModel) statusLine() string {
	parts := []string{}

	content, view := m.host.content(), m.host.viewHeight()
	percent := 0.0
	if content > view {
		percent = m.host.top() / (content - view) * 100
	}
	parts = append(parts, fmt.Sprintf("%3.0f%%", percent))

	first, last, _ := m.engine.Window()
	parts = append(parts, fmt.Sprintf("sections %d-%d/%d", first, last, m.engine.SectionCount()))

	if m.engine.IsLoading() || m.host.isFetching() {
		parts = append(parts, StyleWarning.Render("fetching"))
	}
	if !m.reader.Settled() {
		parts = append(parts, StyleDim.Render("zooming"))
	}
	if id, ord := m.host.selected(); id != "" {
		parts = append(parts, StyleValue.Render(fmt.Sprintf("#%d %s", ord, id)))
	}
	if err := m.host.err(); err != nil {
		parts = append(parts, styleIconError.Render(iconError+" "+err.Error()))
	}

	return StyleDim.Render(" ") + strings.Join(parts, StyleDim.Render("  "))
}

// =============================================================================
// Canvas drawing
// =============================================================================

// drawCanvas renders nodes into terminal lines. Layout X maps directly to
// columns; layout Y is scaled down by cellAspect relative to scrollTop.
func drawCanvas(nodes []*cellNode, scrollTop float64, cols, rows int) []string {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = make([]rune, cols)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	for _, n := range nodes {
		x0 := int(math.Round(n.dims.X))
		w := max(int(math.Round(n.dims.Width)), 1)
		y0 := int(math.Round((n.dims.Y - scrollTop) / cellAspect))
		h := max(int(math.Round(n.dims.Height/cellAspect)), 1)
		if y0+h <= 0 || y0 >= rows || x0 >= cols || x0+w <= 0 {
			continue
		}
		drawBox(grid, cols, rows, x0, y0, w, h, n)
	}

	lines := make([]string, rows)
	for i := range grid {
		lines[i] = string(grid[i])
	}
	return lines
}

// drawBox draws one item box, clipped to the grid.
func drawBox(grid [][]rune, cols, rows, x0, y0, w, h int, n *cellNode) {
	set := func(x, y int, r rune) {
		if x >= 0 && x < cols && y >= 0 && y < rows {
			grid[y][x] = r
		}
	}
	x1, y1 := x0+w-1, y0+h-1

	// Too small for a border: a solid block cell.
	if w < 2 || h < 2 {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				set(x, y, '▒')
			}
		}
		return
	}

	for x := x0 + 1; x < x1; x++ {
		set(x, y0, '─')
		set(x, y1, '─')
	}
	for y := y0 + 1; y < y1; y++ {
		set(x0, y, '│')
		set(x1, y, '│')
	}
	set(x0, y0, '┌')
	set(x1, y0, '┐')
	set(x0, y1, '└')
	set(x1, y1, '┘')

	if n.placeholder {
		for y := y0 + 1; y < y1; y++ {
			for x := x0 + 1; x < x1; x++ {
				set(x, y, '░')
			}
		}
		return
	}

	label := []rune(n.label)
	if len(label) > w-2 {
		label = label[:w-2]
	}
	for i, r := range label {
		set(x0+1+i, y0+1, r)
	}
}
