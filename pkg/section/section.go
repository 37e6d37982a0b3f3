// Package section groups tiled rows into fixed-size batches that act as the
// unit of show/hide virtualization.
//
// A Section owns the render nodes for its rows. Nodes are created lazily on
// first show and dropped on hide, so memory stays proportional to the
// visible window rather than to everything ever fetched. Geometry (top
// offset, per-item placement, cached height) is computed by Set and is valid
// before the section is ever shown, which lets the engine reserve correct
// total scroll height for content it never materializes.
package section

import (
	"github.com/matzehuels/flashlight/pkg/tiler"
)

// RowsPerSection is the fixed number of rows a full section holds.
// Only the final section of an exhausted stream may hold fewer.
const RowsPerSection = 10

// Section is a contiguous batch of rows with exclusive ownership of their
// render nodes. Sections are created by the engine during a tiling pass and
// addressed by their integer index; they are not safe for concurrent use.
type Section struct {
	index     int
	itemIndex int
	rows      []tiler.Row

	top    float64
	width  float64
	height float64

	// dims[r][i] is the absolute placement of rows[r].Items[i],
	// computed by Set.
	dims [][]Dimensions

	renderer Renderer
	onClick  ClickHandler

	container   Container
	nodes       []Node
	shown       bool
	placeholder bool

	layoutGen int
	cleanGen  int
}

// New constructs a section. index is the section's position in the overall
// sequence; itemIndex is the global ordinal of its first item. Construction
// never fails; geometry is undefined until Set is called.
func New(index, itemIndex int, rows []tiler.Row, renderer Renderer, onClick ClickHandler) *Section {
	return &Section{
		index:     index,
		itemIndex: itemIndex,
		rows:      rows,
		renderer:  renderer,
		onClick:   onClick,
	}
}

// Set computes the section's geometry for the given top offset and frame
// width: per-row heights (width / row aspect ratio), per-item placements,
// and the cached total height. It is idempotent and callable before the
// section is ever shown. If the section is currently shown, its nodes are
// re-rendered in place to match the new geometry.
func (s *Section) Set(top, width float64) {
	s.top = top
	s.width = width

	s.dims = make([][]Dimensions, len(s.rows))
	y := top
	for r, row := range s.rows {
		rowHeight := 0.0
		if row.AspectRatio > 0 {
			rowHeight = width / row.AspectRatio
		}
		placements := make([]Dimensions, len(row.Items))
		x := 0.0
		for i, it := range row.Items {
			ar := it.AspectRatio
			if ar <= 0 {
				ar = 1
			}
			w := ar * rowHeight
			placements[i] = Dimensions{X: x, Y: y, Width: w, Height: rowHeight}
			x += w
		}
		s.dims[r] = placements
		y += rowHeight
	}
	s.height = y - top

	if s.shown {
		s.renderNodes()
	}
}

// Show lazily creates render nodes for every item and attaches them under
// container. When placeholder is true the renderer's cheap path is used;
// showing an already-shown section in the same mode is a no-op, while a
// mode change re-renders the nodes.
func (s *Section) Show(container Container, placeholder bool) {
	if s.shown && s.container == container && s.placeholder == placeholder {
		return
	}
	if s.shown {
		s.detachNodes()
	}
	s.container = container
	s.placeholder = placeholder
	s.shown = true
	s.renderNodes()
}

// Hide detaches and drops the section's nodes, freeing renderer-side
// resources. Hiding an already-hidden section is a no-op.
func (s *Section) Hide() {
	if !s.shown {
		return
	}
	s.detachNodes()
	s.shown = false
}

// ResizeItems re-invokes the caller-supplied callback for every item (so the
// caller can refresh its per-item bookkeeping after late-arriving real
// dimensions) and re-runs the row layout step without re-tiling. fn may be
// nil, in which case only the layout re-runs.
func (s *Section) ResizeItems(fn func(id string)) {
	if fn != nil {
		for _, row := range s.rows {
			for _, it := range row.Items {
				fn(it.ID)
			}
		}
	}
	s.Set(s.top, s.width)
}

// ApplyUpdate invokes updater for every item in the section, passing the
// item's opaque render data. Shown nodes are re-rendered so that data
// mutations (labels, annotations) become visible without a re-tile.
func (s *Section) ApplyUpdate(updater func(id string, data any)) {
	if updater == nil {
		return
	}
	for _, row := range s.rows {
		for _, it := range row.Items {
			updater(it.ID, it.Data)
		}
	}
	if s.shown {
		s.renderNodes()
	}
}

// Click hit-tests the point (x, y) in gallery coordinates and, when it lands
// on an item, invokes the section's click handler with the item's id and
// global ordinal. It reports whether an item was hit.
func (s *Section) Click(x, y float64) bool {
	ordinal := s.itemIndex
	for r, row := range s.rows {
		for i, it := range row.Items {
			d := s.dims[r][i]
			if x >= d.X && x < d.X+d.Width && y >= d.Y && y < d.Y+d.Height {
				if s.onClick != nil {
					s.onClick(it.ID, ordinal)
				}
				return true
			}
			ordinal++
		}
	}
	return false
}

// renderNodes rebuilds the node list from the renderer. Any previously
// attached nodes must already be detached.
func (s *Section) renderNodes() {
	s.detachNodes()
	for r, row := range s.rows {
		for i, it := range row.Items {
			n := s.renderer(it.ID, it.Data, s.dims[r][i], s.placeholder)
			if n == nil {
				continue
			}
			s.container.Attach(n)
			s.nodes = append(s.nodes, n)
		}
	}
}

// detachNodes removes all nodes from the container and drops them.
func (s *Section) detachNodes() {
	for _, n := range s.nodes {
		s.container.Detach(n)
	}
	s.nodes = nil
}

// NeedsLayout reports whether the section has not yet had a resize pass in
// generation gen.
func (s *Section) NeedsLayout(gen int) bool { return s.layoutGen < gen }

// MarkLaidOut records that the section is current as of generation gen.
func (s *Section) MarkLaidOut(gen int) { s.layoutGen = gen }

// NeedsUpdate reports whether the section has not yet applied the updater of
// generation gen.
func (s *Section) NeedsUpdate(gen int) bool { return s.cleanGen < gen }

// MarkUpdated records that the section is clean as of generation gen.
func (s *Section) MarkUpdated(gen int) { s.cleanGen = gen }

// Index returns the section's position in the overall section sequence.
func (s *Section) Index() int { return s.index }

// ItemIndex returns the global ordinal of the section's first item.
func (s *Section) ItemIndex() int { return s.itemIndex }

// Top returns the section's vertical offset.
func (s *Section) Top() float64 { return s.top }

// Bottom returns the section's bottom edge (top + height).
func (s *Section) Bottom() float64 { return s.top + s.height }

// Height returns the cached section height computed by Set.
func (s *Section) Height() float64 { return s.height }

// Rows returns the section's rows.
func (s *Section) Rows() []tiler.Row { return s.rows }

// Items returns the section's items in row order.
func (s *Section) Items() []tiler.Item { return tiler.Items(s.rows) }

// Len returns the number of items in the section.
func (s *Section) Len() int { return tiler.Count(s.rows) }

// IsShown reports whether the section currently has attached nodes.
func (s *Section) IsShown() bool { return s.shown }
