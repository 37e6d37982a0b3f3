// Package scroll observes scroll offsets and drives the engine's render
// cadence.
//
// The Reader classifies scroll velocity into two modes: "zooming" (the user
// is moving too fast to see full content, so placeholders are acceptable)
// and "settled". Every observed offset triggers the render callback with the
// current mode; once offsets stop arriving, a settle timer fires one final
// render with zooming off so placeholders are upgraded to full content.
//
// Velocity classification is tunable through a threshold function of the
// frame width. Without one, the reader never reports zooming; hosts that
// know their UX supply thresholds, and hosts that drive the mode externally
// call their render path directly.
package scroll

import (
	"sync"
	"time"
)

// DefaultSettleDelay is how long after the last scroll event the reader
// waits before declaring the viewport settled.
const DefaultSettleDelay = 150 * time.Millisecond

// RenderFunc is invoked on every observed scroll event and once after
// settling. zooming reports whether placeholder rendering is acceptable.
type RenderFunc func(zooming bool)

// ThresholdFunc returns the zooming velocity threshold, in offset units per
// millisecond, for a given frame width. Wider frames scroll more pixels for
// the same gesture, so thresholds typically scale with width.
type ThresholdFunc func(width float64) float64

// Reader turns raw scroll offsets into render callbacks with a zooming flag.
// Methods are safe for a single goroutine plus the internal settle timer.
type Reader struct {
	mu sync.Mutex

	render    RenderFunc
	threshold ThresholdFunc
	settle    time.Duration
	now       func() time.Time

	width   float64
	lastTop float64
	lastAt  time.Time
	zooming bool

	timer *time.Timer
}

// Option configures a Reader.
type Option func(*Reader)

// WithThreshold sets the zoom velocity threshold function.
func WithThreshold(fn ThresholdFunc) Option {
	return func(r *Reader) { r.threshold = fn }
}

// WithSettleDelay overrides the settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Reader) { r.settle = d }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

// NewReader creates a reader that invokes render on every scroll event.
func NewReader(render RenderFunc, opts ...Option) *Reader {
	r := &Reader{
		render: render,
		settle: DefaultSettleDelay,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetWidth records the current frame width used by the threshold function.
func (r *Reader) SetWidth(width float64) {
	r.mu.Lock()
	r.width = width
	r.mu.Unlock()
}

// Scroll observes a new scroll offset. It classifies the velocity since the
// previous observation, invokes the render callback with the resulting mode,
// and re-arms the settle timer.
func (r *Reader) Scroll(top float64) {
	r.mu.Lock()

	now := r.now()
	zooming := false
	if r.threshold != nil && !r.lastAt.IsZero() {
		elapsed := now.Sub(r.lastAt)
		if elapsed > 0 {
			velocity := abs(top-r.lastTop) / (elapsed.Seconds() * 1000)
			zooming = velocity >= r.threshold(r.width)
		} else {
			// Two events inside the same clock tick keep the current mode.
			zooming = r.zooming
		}
	}
	r.lastTop = top
	r.lastAt = now
	r.zooming = zooming

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.settle, r.settled)

	render := r.render
	r.mu.Unlock()

	render(zooming)
}

// Settled reports whether the last classification was below the zoom
// threshold.
func (r *Reader) Settled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.zooming
}

// Stop cancels the pending settle timer. Call when the host detaches.
func (r *Reader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// settled fires after the settle delay with no further scroll events and
// upgrades the frame out of placeholder mode.
func (r *Reader) settled() {
	r.mu.Lock()
	r.zooming = false
	render := r.render
	r.mu.Unlock()

	render(false)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
