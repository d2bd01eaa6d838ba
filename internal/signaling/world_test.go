package signaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VerseEngine/verse-entrance-server/internal/wire"
)

func TestRefreshTreeIfDueCollectsPublishedInfo(t *testing.T) {
	w := NewWorldRecord("u1")
	c1 := newTestClient(t, "u1")
	c2 := newTestClient(t, "u1")
	count1 := uint32(1)
	count2 := uint32(2)
	c1.SetRoutingInfo(&wire.RoutingInfo{SessionID: c1.SessionID[:], Count: &count1})
	c2.SetRoutingInfo(&wire.RoutingInfo{SessionID: c2.SessionID[:], Count: &count2})
	require.True(t, w.AddClient(c1, 0))
	require.True(t, w.AddClient(c2, 0))

	w.RefreshTreeIfDue(nil)

	tree := w.GetTree()
	require.Equal(t, wire.NodeTracker, tree.NodeType)
	require.Len(t, tree.Subtrees, 2)
}

func TestRefreshTreeIfDueRespectsInterval(t *testing.T) {
	w := NewWorldRecord("u1")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	now := func() time.Time { return clock }

	w.RefreshTreeIfDue(now)
	first := w.GetTree()

	c := newTestClient(t, "u1")
	count := uint32(9)
	c.SetRoutingInfo(&wire.RoutingInfo{SessionID: c.SessionID[:], Count: &count})
	require.True(t, w.AddClient(c, 0))

	clock = base.Add(2 * time.Second)
	w.RefreshTreeIfDue(now)
	require.Same(t, first, w.GetTree())

	clock = base.Add(6 * time.Second)
	w.RefreshTreeIfDue(now)
	require.NotSame(t, first, w.GetTree())
	require.Len(t, w.GetTree().Subtrees, 1)
}

func TestRemoveClientPrunesCachedTree(t *testing.T) {
	w := NewWorldRecord("u1")
	c1 := newTestClient(t, "u1")
	c2 := newTestClient(t, "u1")
	count := uint32(1)
	c1.SetRoutingInfo(&wire.RoutingInfo{SessionID: c1.SessionID[:], Count: &count})
	c2.SetRoutingInfo(&wire.RoutingInfo{SessionID: c2.SessionID[:], Count: &count})
	require.True(t, w.AddClient(c1, 0))
	require.True(t, w.AddClient(c2, 0))
	w.RefreshTreeIfDue(nil)
	require.Len(t, w.GetTree().Subtrees, 2)

	w.RemoveClient(c1.SessionID[:])
	require.Len(t, w.GetTree().Subtrees, 1)
	require.EqualValues(t, 1, w.ClientCount())
}

func TestAddClientRespectsCap(t *testing.T) {
	w := NewWorldRecord("u1")
	c1 := newTestClient(t, "u1")
	c2 := newTestClient(t, "u1")
	require.True(t, w.AddClient(c1, 1))
	require.False(t, w.AddClient(c2, 1))
	require.EqualValues(t, 1, w.ClientCount())
}
