// Package flashlight implements a virtualized, infinitely-scrolling gallery
// engine.
//
// Given a pull-based paginated source of variable-aspect-ratio items, the
// engine packs them into aspect-ratio-balanced rows (pkg/tiler), groups rows
// into fixed-size sections (pkg/section), and materializes render nodes only
// for the sections inside the current scroll window plus a small margin.
// Total scroll height is reserved for everything fetched, shown or not, so
// the host's scrollbar stays honest.
//
// The engine is deliberately passive about cadence: the host drives it by
// calling Render on scroll events and UI frames (pkg/scroll turns raw scroll
// offsets into appropriately-flagged Render calls). Fetching is the only
// asynchronous edge: one page request at a time, resolved on a background
// goroutine and applied under the engine's lock after a generation check, so
// responses that straddle a Reset are dropped instead of applied to newer
// state.
//
// Callback discipline: the engine invokes the configured callbacks (render,
// click, resize, update) while holding its internal lock. Callbacks must not
// call back into the engine; they should record what they need and return.
package flashlight
