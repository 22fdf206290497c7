// ABOUTME: Tests for scroll preservation: initial jump, live-edge follow,
// ABOUTME: prepend anchoring math, and fetch-older re-trigger guarding.

package scroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreserver_InitialRenderJumps(t *testing.T) {
	p := NewPreserver(0, 0)

	// Empty render does nothing and does not consume the initial jump.
	adj := p.ObserveRender(0)
	assert.Equal(t, ActionNone, adj.Action)
	assert.False(t, p.HasInitiallyLoaded())

	adj = p.ObserveRender(20)
	assert.Equal(t, ActionJump, adj.Action)
	assert.True(t, p.HasInitiallyLoaded())

	// Subsequent renders never jump again.
	adj = p.ObserveRender(21)
	assert.Equal(t, ActionNone, adj.Action)
}

func TestPreserver_LiveAppendNearEdgeAnimates(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)

	// 1000 - 500 - 450 = 50px from the live edge: follow it.
	adj := p.LiveAppend(Viewport{ScrollTop: 500, ScrollHeight: 1000, ClientHeight: 450})
	assert.Equal(t, ActionAnimate, adj.Action)
}

func TestPreserver_LiveAppendWhileReadingHistory(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)

	// 1000 - 100 - 450 = 450px away: operator is reading history.
	adj := p.LiveAppend(Viewport{ScrollTop: 100, ScrollHeight: 1000, ClientHeight: 450})
	assert.Equal(t, ActionNone, adj.Action)
}

func TestPreserver_LiveAppendThresholdBoundary(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)

	// Exactly at the threshold is not "below" it.
	adj := p.LiveAppend(Viewport{ScrollTop: 450, ScrollHeight: 1000, ClientHeight: 450})
	assert.Equal(t, ActionNone, adj.Action)

	adj = p.LiveAppend(Viewport{ScrollTop: 451, ScrollHeight: 1000, ClientHeight: 450})
	assert.Equal(t, ActionAnimate, adj.Action)
}

func TestPreserver_LiveAppendBeforeInitialLoad(t *testing.T) {
	p := NewPreserver(100, 100)

	adj := p.LiveAppend(Viewport{ScrollTop: 0, ScrollHeight: 100, ClientHeight: 100})
	assert.Equal(t, ActionNone, adj.Action)
}

func TestPreserver_PrependAnchoring(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)

	// scrollHeight=1000, scrollTop=50 before the older page lands.
	anchor, ok := p.BeginOlderFetch(Viewport{ScrollTop: 50, ScrollHeight: 1000, ClientHeight: 400})
	require.True(t, ok)

	// New content grows the container to 1400: top becomes 50 + 400.
	adj := p.FinishOlderFetch(anchor, 1400)
	assert.Equal(t, ActionSetTop, adj.Action)
	assert.Equal(t, 450, adj.ScrollTop)
}

func TestPreserver_OlderFetchSingleFlight(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)

	v := Viewport{ScrollTop: 10, ScrollHeight: 1000, ClientHeight: 400}
	anchor, ok := p.BeginOlderFetch(v)
	require.True(t, ok)

	// Repeated scroll events while the fetch is pending must not re-trigger.
	_, ok = p.BeginOlderFetch(v)
	assert.False(t, ok)

	p.FinishOlderFetch(anchor, 1400)
	_, ok = p.BeginOlderFetch(v)
	assert.True(t, ok, "slot released after completion")
}

func TestPreserver_OlderFetchRequiresNearTop(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)

	_, ok := p.BeginOlderFetch(Viewport{ScrollTop: 500, ScrollHeight: 1000, ClientHeight: 400})
	assert.False(t, ok, "far from the top: no fetch")

	_, ok = p.BeginOlderFetch(Viewport{ScrollTop: 100, ScrollHeight: 1000, ClientHeight: 400})
	assert.True(t, ok, "at the threshold: fetch")
}

func TestPreserver_AbortReleasesSlot(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)

	v := Viewport{ScrollTop: 0, ScrollHeight: 1000, ClientHeight: 400}
	_, ok := p.BeginOlderFetch(v)
	require.True(t, ok)

	p.AbortOlderFetch()
	_, ok = p.BeginOlderFetch(v)
	assert.True(t, ok)
}

func TestPreserver_ResetClearsState(t *testing.T) {
	p := NewPreserver(100, 100)
	p.ObserveRender(20)
	_, ok := p.BeginOlderFetch(Viewport{ScrollTop: 0, ScrollHeight: 1000, ClientHeight: 400})
	require.True(t, ok)

	p.Reset()

	assert.False(t, p.HasInitiallyLoaded())
	adj := p.ObserveRender(20)
	assert.Equal(t, ActionJump, adj.Action, "initial jump happens again for the new conversation")
}

func TestViewport_DistanceFromLiveEdge(t *testing.T) {
	v := Viewport{ScrollTop: 50, ScrollHeight: 1000, ClientHeight: 400}
	assert.Equal(t, 550, v.DistanceFromLiveEdge())
}
