package signaling

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/VerseEngine/verse-entrance-server/internal/routinginfo"
	"github.com/VerseEngine/verse-entrance-server/internal/wire"
)

// RoutingInfoMax bounds how many member subtrees a world's cached tree
// ever carries, per spec.md section 3 ("ROUTING_INFO_MAX = 1000").
const RoutingInfoMax = 1000

// RefreshIntervalSeconds is the minimum age a world's cached tree must
// reach before RefreshTreeIfDue does any work, per spec.md section 3
// ("ROUTING_INFO_UPDATE_INTERVAL_SECONDS = 5").
const RefreshIntervalSeconds = 5

// WorldRecord is the per-world state described by spec.md section 3 and
// 4.5: the member vector, an atomic membership counter, and a
// CAS-refreshed aggregated routing tree.
type WorldRecord struct {
	URL string

	mu      sync.Mutex
	clients []*ClientRecord

	clientCount    atomic.Int32
	lastRefreshSec atomic.Int64
	cachedTree     atomic.Pointer[wire.RoutingInfo]
}

// NewWorldRecord builds an empty world with a Tracker-rooted, childless
// cached tree.
func NewWorldRecord(url string) *WorldRecord {
	w := &WorldRecord{URL: url}
	w.cachedTree.Store(&wire.RoutingInfo{NodeType: wire.NodeTracker})
	return w
}

// ClientCount returns the current member count.
func (w *WorldRecord) ClientCount() int32 { return w.clientCount.Load() }

// AddClient appends cr to the member vector iff the membership counter,
// compare-and-incremented, does not exceed cap (a cap <= 0 means
// unlimited). Returns false if the cap is reached.
func (w *WorldRecord) AddClient(cr *ClientRecord, cap int32) bool {
	for {
		cur := w.clientCount.Load()
		if cap > 0 && cur >= cap {
			return false
		}
		if w.clientCount.CompareAndSwap(cur, cur+1) {
			break
		}
	}
	w.mu.Lock()
	w.clients = append(w.clients, cr)
	w.mu.Unlock()
	return true
}

// RemoveClient removes the member matching sid (if present), decrements
// the counter, and prunes that session's subtree from the cached tree.
// Idempotent: removing an absent session is a no-op beyond the prune
// (which is itself a no-op if nothing matches).
func (w *WorldRecord) RemoveClient(sid []byte) {
	w.mu.Lock()
	idx := -1
	for i, c := range w.clients {
		if sessionIDEqualBytes(c.SessionID[:], sid) {
			idx = i
			break
		}
	}
	if idx >= 0 {
		w.clients = append(w.clients[:idx], w.clients[idx+1:]...)
		w.clientCount.Add(-1)
	}
	w.mu.Unlock()

	for {
		cur := w.cachedTree.Load()
		next := routinginfo.WithoutSession(cur, sid)
		if w.cachedTree.CompareAndSwap(cur, next) {
			break
		}
	}
}

// Members returns a snapshot of the current member vector.
func (w *WorldRecord) Members() []*ClientRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*ClientRecord(nil), w.clients...)
}

// GetTree returns the currently cached aggregated tree.
func (w *WorldRecord) GetTree() *wire.RoutingInfo {
	return w.cachedTree.Load()
}

// RefreshTreeIfDue is the sole mutator of the cached tree. If the tree's
// age is below RefreshIntervalSeconds it returns immediately (a
// concurrent caller already refreshed recently, or will). Otherwise it
// races to claim the refresh slot via CAS on lastRefreshSec; the loser
// of that race returns without doing any work, per spec.md section 5
// ("concurrent callers yield to the winner").
func (w *WorldRecord) RefreshTreeIfDue(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	nowSec := now().Unix()
	last := w.lastRefreshSec.Load()
	if nowSec-last < RefreshIntervalSeconds {
		return
	}
	if !w.lastRefreshSec.CompareAndSwap(last, nowSec) {
		return
	}

	members := w.Members()
	if len(members) > RoutingInfoMax {
		members = members[:RoutingInfoMax]
	}
	collected := make([]*wire.RoutingInfo, 0, len(members))
	for _, m := range members {
		if ri := m.RoutingInfo(); ri != nil {
			collected = append(collected, ri)
		}
	}
	w.cachedTree.Store(routinginfo.BuildTracker(collected))
}

func sessionIDEqualBytes(a, b []byte) bool {
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
