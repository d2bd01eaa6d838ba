package routinginfo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VerseEngine/verse-entrance-server/internal/wire"
)

func TestNormalizePublishedCollapsesToCount(t *testing.T) {
	subCount := uint32(2)
	published := &wire.RoutingInfo{
		SessionID: []byte("peer-a"),
		NodeType:  wire.NodeNormal,
		Subtrees: []*wire.RoutingInfo{
			{NodeType: wire.NodeNormal, Count: &subCount},
			{NodeType: wire.NodeNormal, Count: &subCount},
			{NodeType: wire.NodeNormal, Count: &subCount},
		},
		KnownGatewaySessionIDs: [][]byte{[]byte("gw1")},
		GatewayState:           7,
	}
	got := NormalizePublished(published)
	require.Equal(t, []byte("peer-a"), got.SessionID)
	require.NotNil(t, got.Count)
	require.Equal(t, uint32(3), *got.Count)
	require.Nil(t, got.Subtrees)
	require.Empty(t, got.KnownGatewaySessionIDs)
	require.Equal(t, uint32(7), got.GatewayState)
}

func TestBuildTrackerIsTrackerRoot(t *testing.T) {
	members := []*wire.RoutingInfo{
		{SessionID: []byte("a")},
		{SessionID: []byte("b")},
	}
	tree := BuildTracker(members)
	require.Equal(t, wire.NodeTracker, tree.NodeType)
	require.Equal(t, members, tree.Subtrees)
}

func TestSampleLeavesSmallTreeUnchanged(t *testing.T) {
	members := []*wire.RoutingInfo{{SessionID: []byte("a")}, {SessionID: []byte("b")}}
	tree := BuildTracker(members)
	got := Sample(tree, 5)
	require.Same(t, tree, got)
}

func TestSampleBoundsLargeTree(t *testing.T) {
	members := make([]*wire.RoutingInfo, 20)
	for i := range members {
		members[i] = &wire.RoutingInfo{SessionID: []byte{byte(i)}}
	}
	tree := BuildTracker(members)
	got := Sample(tree, 5)
	require.Len(t, got.Subtrees, 5)
	require.Equal(t, wire.NodeTracker, got.NodeType)

	seen := map[byte]bool{}
	for _, sub := range got.Subtrees {
		seen[sub.SessionID[0]] = true
	}
	require.Len(t, seen, 5)
}

func TestWithoutSessionPrunesMatchingChild(t *testing.T) {
	members := []*wire.RoutingInfo{
		{SessionID: []byte("a")},
		{SessionID: []byte("b")},
		{SessionID: []byte("c")},
	}
	tree := BuildTracker(members)
	got := WithoutSession(tree, []byte("b"))
	require.Len(t, got.Subtrees, 2)
	for _, sub := range got.Subtrees {
		require.NotEqual(t, []byte("b"), sub.SessionID)
	}
}
