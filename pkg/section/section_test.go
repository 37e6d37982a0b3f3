package section

import (
	"math"
	"testing"

	"github.com/matzehuels/flashlight/pkg/tiler"
)

// fakeNode is what the test renderer produces.
type fakeNode struct {
	id          string
	dims        Dimensions
	placeholder bool
}

// fakeContainer records attach/detach traffic.
type fakeContainer struct {
	attached map[Node]bool
	attaches int
	detaches int
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{attached: make(map[Node]bool)}
}

func (c *fakeContainer) Attach(n Node) {
	c.attached[n] = true
	c.attaches++
}

func (c *fakeContainer) Detach(n Node) {
	delete(c.attached, n)
	c.detaches++
}

func testRenderer(renders *int) Renderer {
	return func(id string, data any, dims Dimensions, placeholder bool) Node {
		if renders != nil {
			*renders++
		}
		return &fakeNode{id: id, dims: dims, placeholder: placeholder}
	}
}

// twoRows builds two rows of unit squares: 4 items and 2 items.
func twoRows() []tiler.Row {
	mk := func(ids ...string) tiler.Row {
		row := tiler.Row{}
		for _, id := range ids {
			row.Items = append(row.Items, tiler.Item{ID: id, AspectRatio: 1})
			row.AspectRatio++
		}
		return row
	}
	return []tiler.Row{mk("a", "b", "c", "d"), mk("e", "f")}
}

func TestSetGeometry(t *testing.T) {
	s := New(0, 0, twoRows(), testRenderer(nil), nil)
	s.Set(100, 400)

	// Row of 4 unit squares at width 400 renders at height 100;
	// row of 2 at height 200.
	if s.Top() != 100 {
		t.Errorf("Top = %v, want 100", s.Top())
	}
	if s.Height() != 300 {
		t.Errorf("Height = %v, want 300", s.Height())
	}
	if s.Bottom() != 400 {
		t.Errorf("Bottom = %v, want 400", s.Bottom())
	}

	// First item of the second row starts below the first row.
	d := s.dims[1][0]
	if d.Y != 200 || d.X != 0 {
		t.Errorf("second row origin = (%v, %v), want (0, 200)", d.X, d.Y)
	}
	if d.Width != 200 || d.Height != 200 {
		t.Errorf("second row item size = %vx%v, want 200x200", d.Width, d.Height)
	}

	// Item widths within a row fill the frame exactly.
	var sum float64
	for _, d := range s.dims[0] {
		sum += d.Width
	}
	if math.Abs(sum-400) > 1e-9 {
		t.Errorf("first row widths sum = %v, want 400", sum)
	}
}

func TestSetIdempotent(t *testing.T) {
	s := New(0, 0, twoRows(), testRenderer(nil), nil)
	s.Set(0, 400)
	h := s.Height()
	s.Set(0, 400)
	if s.Height() != h {
		t.Errorf("Height changed across identical Set calls: %v != %v", s.Height(), h)
	}
}

func TestShowHideLifecycle(t *testing.T) {
	renders := 0
	c := newFakeContainer()
	s := New(0, 0, twoRows(), testRenderer(&renders), nil)
	s.Set(0, 400)

	if s.IsShown() {
		t.Fatal("section should not be shown before Show")
	}

	s.Show(c, false)
	if !s.IsShown() {
		t.Fatal("section should be shown after Show")
	}
	if renders != 6 {
		t.Errorf("renders = %d, want 6 (one per item)", renders)
	}
	if len(c.attached) != 6 {
		t.Errorf("attached nodes = %d, want 6", len(c.attached))
	}

	// Same mode again is a no-op.
	s.Show(c, false)
	if renders != 6 {
		t.Errorf("renders after redundant Show = %d, want 6", renders)
	}

	s.Hide()
	if s.IsShown() {
		t.Error("section should be hidden after Hide")
	}
	if len(c.attached) != 0 {
		t.Errorf("attached nodes after Hide = %d, want 0", len(c.attached))
	}

	// Hiding again is safe.
	s.Hide()
}

func TestShowPlaceholderUpgrade(t *testing.T) {
	c := newFakeContainer()
	s := New(0, 0, twoRows(), testRenderer(nil), nil)
	s.Set(0, 400)

	// Placeholder path during fast scroll.
	s.Show(c, true)
	for n := range c.attached {
		if !n.(*fakeNode).placeholder {
			t.Fatal("expected placeholder nodes while zooming")
		}
	}

	// Settling upgrades to full content.
	s.Show(c, false)
	if len(c.attached) != 6 {
		t.Fatalf("attached nodes = %d, want 6", len(c.attached))
	}
	for n := range c.attached {
		if n.(*fakeNode).placeholder {
			t.Error("expected full nodes after settling")
		}
	}
}

func TestSetWhileShownRerenders(t *testing.T) {
	c := newFakeContainer()
	s := New(0, 0, twoRows(), testRenderer(nil), nil)
	s.Set(0, 400)
	s.Show(c, false)

	s.Set(0, 800)

	if len(c.attached) != 6 {
		t.Fatalf("attached nodes = %d, want 6", len(c.attached))
	}
	for n := range c.attached {
		fn := n.(*fakeNode)
		if fn.id == "e" && fn.dims.Width != 400 {
			t.Errorf("item e width = %v, want 400 after relayout", fn.dims.Width)
		}
	}
}

func TestResizeItems(t *testing.T) {
	c := newFakeContainer()
	s := New(0, 0, twoRows(), testRenderer(nil), nil)
	s.Set(0, 400)
	s.Show(c, false)

	var seen []string
	s.ResizeItems(func(id string) { seen = append(seen, id) })

	want := []string{"a", "b", "c", "d", "e", "f"}
	if len(seen) != len(want) {
		t.Fatalf("callback invoked %d times, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("callback order[%d] = %s, want %s", i, seen[i], want[i])
		}
	}

	// Nil callback only re-runs layout.
	s.ResizeItems(nil)
}

func TestApplyUpdate(t *testing.T) {
	rows := []tiler.Row{{
		Items: []tiler.Item{
			{ID: "a", AspectRatio: 1, Data: map[string]string{}},
			{ID: "b", AspectRatio: 1, Data: map[string]string{}},
		},
		AspectRatio: 2,
	}}
	c := newFakeContainer()
	s := New(0, 0, rows, testRenderer(nil), nil)
	s.Set(0, 200)
	s.Show(c, false)
	attachesBefore := c.attaches

	s.ApplyUpdate(func(id string, data any) {
		data.(map[string]string)["label"] = "tagged:" + id
	})

	for _, it := range s.Items() {
		if got := it.Data.(map[string]string)["label"]; got != "tagged:"+it.ID {
			t.Errorf("item %s label = %q", it.ID, got)
		}
	}
	if c.attaches == attachesBefore {
		t.Error("ApplyUpdate on a shown section should re-render nodes")
	}
}

func TestClick(t *testing.T) {
	var clickedID string
	var clickedOrdinal int
	s := New(1, 40, twoRows(), testRenderer(nil), func(id string, ordinal int) {
		clickedID = id
		clickedOrdinal = ordinal
	})
	s.Set(100, 400)

	// Second item of the first row: x in [100, 200), y in [100, 200).
	if !s.Click(150, 150) {
		t.Fatal("Click(150, 150) should hit item b")
	}
	if clickedID != "b" {
		t.Errorf("clicked id = %s, want b", clickedID)
	}
	if clickedOrdinal != 41 {
		t.Errorf("clicked ordinal = %d, want 41", clickedOrdinal)
	}

	// A point below the section misses.
	if s.Click(10, 1000) {
		t.Error("Click outside the section should miss")
	}
}

func TestGenerationBookkeeping(t *testing.T) {
	s := New(0, 0, twoRows(), testRenderer(nil), nil)

	if s.NeedsLayout(0) {
		t.Error("fresh section should not need layout at generation 0")
	}
	if !s.NeedsLayout(1) {
		t.Error("fresh section should need layout at generation 1")
	}
	s.MarkLaidOut(1)
	if s.NeedsLayout(1) {
		t.Error("section should be current after MarkLaidOut(1)")
	}

	if s.NeedsUpdate(0) {
		t.Error("fresh section should be clean at generation 0")
	}
	if !s.NeedsUpdate(2) {
		t.Error("section should need update at a later generation")
	}
	s.MarkUpdated(2)
	if s.NeedsUpdate(2) {
		t.Error("section should be clean after MarkUpdated(2)")
	}
}
