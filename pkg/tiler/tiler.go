// Package tiler packs variable-aspect-ratio items into rows whose aggregate
// aspect ratio approaches a target threshold.
//
// An item's aspect ratio is width/height, so a row of items laid out at a
// common height h occupies a width of h * sum(aspect ratios). Packing rows
// until that sum reaches a threshold yields rows of roughly equal height
// once each row is scaled to the frame width.
//
// Tiling is pure and order-preserving: concatenating the emitted rows and
// the remainder always reconstructs the input sequence exactly.
package tiler

// Item is a single gallery entry to be packed.
// The engine treats Data as opaque; it is handed back to the render callback.
type Item struct {
	// ID is the stable unique identifier of the item.
	ID string

	// AspectRatio is the intrinsic width/height ratio used for packing.
	// Non-positive values are treated as 1 (square).
	AspectRatio float64

	// Data is opaque render data owned by the caller.
	Data any
}

// Row is an ordered run of items sharing one display height.
type Row struct {
	// Items are the row members in input order.
	Items []Item

	// AspectRatio is the sum of the members' aspect ratios. At a frame
	// width w the row renders at height w / AspectRatio.
	AspectRatio float64
}

// Result holds the output of one tiling pass.
type Result struct {
	// Rows are the completed rows, in input order.
	Rows []Row

	// Remainder holds trailing items that did not fill a row. They are
	// carried into the next pass, merged ahead of newly fetched items.
	Remainder []Item
}

// aspect returns the packing ratio for an item, defending against
// zero or negative intrinsic sizes from the data source.
func aspect(it Item) float64 {
	if it.AspectRatio <= 0 {
		return 1
	}
	return it.AspectRatio
}

// Tile scans items in order, closing a row whenever the accumulated aspect
// ratio reaches threshold. A single item whose own ratio already exceeds the
// threshold forms a row by itself.
//
// The final partial row is returned as the remainder rather than emitted,
// unless moreExpected is false (the stream is exhausted), in which case it is
// emitted as a short last row. Empty input yields an empty result.
func Tile(items []Item, threshold float64, moreExpected bool) Result {
	var res Result

	var row []Item
	var sum float64
	for _, it := range items {
		row = append(row, it)
		sum += aspect(it)
		if sum >= threshold {
			res.Rows = append(res.Rows, Row{Items: row, AspectRatio: sum})
			row = nil
			sum = 0
		}
	}

	if len(row) == 0 {
		return res
	}
	if moreExpected {
		res.Remainder = row
	} else {
		// Stream exhausted: a short last row is acceptable.
		res.Rows = append(res.Rows, Row{Items: row, AspectRatio: sum})
	}
	return res
}

// Items flattens rows back into the original item sequence.
// Used when already-tiled content must be re-tiled under new options.
func Items(rows []Row) []Item {
	n := 0
	for _, r := range rows {
		n += len(r.Items)
	}
	items := make([]Item, 0, n)
	for _, r := range rows {
		items = append(items, r.Items...)
	}
	return items
}

// Count returns the total number of items across rows.
func Count(rows []Row) int {
	n := 0
	for _, r := range rows {
		n += len(r.Items)
	}
	return n
}
