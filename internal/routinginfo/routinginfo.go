// Package routinginfo implements the aggregation-tree business rules
// spec.md section 3 describes for RoutingInfo: normalizing a client's
// published subtree to a leaf count, building a world's Tracker root
// from its members' published trees, and sampling that root down to a
// bounded size for delivery. The wire shape itself lives in
// internal/wire; this package only adds domain behavior on top of it.
//
// The original hub's routing_info_ex.rs additionally tracked
// known_gateway_session_ids with a decaying ttl to let a joining peer
// discover gateways several hops away. spec.md's data model keeps that
// field but never specifies the ttl-propagation algorithm, and nothing
// in spec.md's testable properties exercises it, so this package
// forwards it opaquely (see SPEC_FULL.md's Supplemented Features) and
// never re-derives or decays it.
package routinginfo

import (
	"math/rand/v2"

	"github.com/VerseEngine/verse-entrance-server/internal/wire"
)

// RelationCount reports the number of children a node's relation
// carries, whether it's a leaf Count or an explicit Subtrees list.
func RelationCount(ri *wire.RoutingInfo) int {
	if ri == nil {
		return 0
	}
	if ri.Count != nil {
		return int(*ri.Count)
	}
	return len(ri.Subtrees)
}

// NormalizePublished prepares a client-published RoutingInfo for
// storage on its ClientRecord: known_gateway_session_ids is cleared and
// the relation is collapsed to a leaf Count, per spec.md section 4.6's
// EXCHANGE_ROUTING_INFO contract ("with known_gateway_session_ids
// cleared and relation=Count(count) normalized"). The session id,
// gateway state and position the peer reported are left untouched.
func NormalizePublished(ri *wire.RoutingInfo) *wire.RoutingInfo {
	if ri == nil {
		return nil
	}
	count := uint32(RelationCount(ri))
	return &wire.RoutingInfo{
		SessionID:    ri.SessionID,
		NodeType:     ri.NodeType,
		Count:        &count,
		GatewayState: ri.GatewayState,
		Position:     ri.Position,
	}
}

// BuildTracker assembles a world's aggregated tree: a Tracker-typed
// root whose Subtrees are the members' most recently published infos,
// in the order given. Callers are responsible for the ≤1000-member
// bound (WorldRecord.RefreshTreeIfDue) before calling this.
func BuildTracker(members []*wire.RoutingInfo) *wire.RoutingInfo {
	return &wire.RoutingInfo{
		NodeType: wire.NodeTracker,
		Subtrees: append([]*wire.RoutingInfo(nil), members...),
	}
}

// Sample returns tree unchanged if it has at most max children;
// otherwise it returns a copy whose Subtrees is a uniformly-random
// sample of size max, per spec.md section 4.8's EXCHANGE_ROUTING_INFO
// response contract.
func Sample(tree *wire.RoutingInfo, max int) *wire.RoutingInfo {
	if tree == nil || len(tree.Subtrees) <= max {
		return tree
	}
	idx := rand.Perm(len(tree.Subtrees))[:max]
	picked := make([]*wire.RoutingInfo, max)
	for i, j := range idx {
		picked[i] = tree.Subtrees[j]
	}
	cp := *tree
	cp.Subtrees = picked
	return &cp
}

// WithoutSession returns a copy of tree whose Subtrees excludes any
// direct child whose SessionID equals sid — used to prune a departing
// client from a world's cached tree.
func WithoutSession(tree *wire.RoutingInfo, sid []byte) *wire.RoutingInfo {
	if tree == nil {
		return nil
	}
	kept := make([]*wire.RoutingInfo, 0, len(tree.Subtrees))
	for _, sub := range tree.Subtrees {
		if !sessionIDEqual(sub.SessionID, sid) {
			kept = append(kept, sub)
		}
	}
	cp := *tree
	cp.Subtrees = kept
	return &cp
}

func sessionIDEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
