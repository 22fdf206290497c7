// ABOUTME: Scroll position preserver: viewport adjustments for timeline growth.
// ABOUTME: Pure math over viewport metrics; the UI layer applies the returned actions.

package scroll

import "sync"

// Pixel thresholds matching the conversation view's behavior.
const (
	// DefaultEdgeThreshold is how close to the live edge the viewport must
	// be for a new live message to auto-scroll.
	DefaultEdgeThreshold = 100
	// DefaultTopThreshold is how close to the oldest loaded content the
	// viewport must be to trigger fetching an older page.
	DefaultTopThreshold = 100
)

// Viewport is a snapshot of the scroll container's metrics in pixels.
type Viewport struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// DistanceFromLiveEdge is how many pixels of content sit below the
// visible area.
func (v Viewport) DistanceFromLiveEdge() int {
	return v.ScrollHeight - v.ScrollTop - v.ClientHeight
}

// Action tells the UI layer what to do with the viewport.
type Action int

const (
	// ActionNone leaves the viewport untouched (operator is reading history).
	ActionNone Action = iota
	// ActionJump scrolls to the live edge without animation (initial load).
	ActionJump
	// ActionAnimate scrolls to the live edge with animation (new live message).
	ActionAnimate
	// ActionSetTop sets ScrollTop to the Adjustment's value (prepend anchoring).
	ActionSetTop
)

// Adjustment is the preserver's instruction to the UI layer.
type Adjustment struct {
	Action    Action
	ScrollTop int // meaningful only for ActionSetTop
}

// Anchor captures the viewport immediately before older content is
// prepended, so the visible content can be held stationary afterward.
type Anchor struct {
	scrollTop    int
	scrollHeight int
}

// Preserver decides scroll adjustments for one conversation view. It is
// reset whenever the active conversation changes.
type Preserver struct {
	edgeThreshold int
	topThreshold  int

	mu                 sync.Mutex
	hasInitiallyLoaded bool
	olderFetchPending  bool
}

// NewPreserver creates a preserver. Non-positive thresholds fall back to
// the defaults.
func NewPreserver(edgeThreshold, topThreshold int) *Preserver {
	if edgeThreshold <= 0 {
		edgeThreshold = DefaultEdgeThreshold
	}
	if topThreshold <= 0 {
		topThreshold = DefaultTopThreshold
	}
	return &Preserver{
		edgeThreshold: edgeThreshold,
		topThreshold:  topThreshold,
	}
}

// Reset clears per-conversation state when the operator switches.
func (p *Preserver) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasInitiallyLoaded = false
	p.olderFetchPending = false
}

// HasInitiallyLoaded reports whether the first render already happened.
func (p *Preserver) HasInitiallyLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasInitiallyLoaded
}

// ObserveRender is called after each render of the timeline. The first
// render of a non-empty timeline jumps straight to the live edge.
func (p *Preserver) ObserveRender(timelineLen int) Adjustment {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasInitiallyLoaded || timelineLen == 0 {
		return Adjustment{Action: ActionNone}
	}
	p.hasInitiallyLoaded = true
	return Adjustment{Action: ActionJump}
}

// LiveAppend decides what happens when a new live message grows the
// timeline. before is the viewport immediately prior to the growth: if it
// was within the edge threshold the view follows the live edge, otherwise
// the operator is reading history and the viewport is left alone.
func (p *Preserver) LiveAppend(before Viewport) Adjustment {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasInitiallyLoaded {
		return Adjustment{Action: ActionNone}
	}
	if before.DistanceFromLiveEdge() < p.edgeThreshold {
		return Adjustment{Action: ActionAnimate}
	}
	return Adjustment{Action: ActionNone}
}

// BeginOlderFetch reports whether scrolling near the top should trigger an
// older-page fetch, and if so reserves the pending slot and captures the
// anchor for later restoration. Repeated scroll events while a fetch is
// pending return ok=false.
func (p *Preserver) BeginOlderFetch(v Viewport) (Anchor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasInitiallyLoaded || p.olderFetchPending {
		return Anchor{}, false
	}
	if v.ScrollTop > p.topThreshold {
		return Anchor{}, false
	}
	p.olderFetchPending = true
	return Anchor{scrollTop: v.ScrollTop, scrollHeight: v.ScrollHeight}, true
}

// FinishOlderFetch releases the pending slot and returns the adjustment
// that keeps the previously visible content stationary:
// newTop = oldTop + (newHeight - oldHeight).
func (p *Preserver) FinishOlderFetch(a Anchor, newScrollHeight int) Adjustment {
	p.mu.Lock()
	p.olderFetchPending = false
	p.mu.Unlock()

	return Adjustment{
		Action:    ActionSetTop,
		ScrollTop: a.scrollTop + (newScrollHeight - a.scrollHeight),
	}
}

// AbortOlderFetch releases the pending slot after a failed fetch without
// touching the viewport.
func (p *Preserver) AbortOlderFetch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.olderFetchPending = false
}
