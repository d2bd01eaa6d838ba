package signaling

import (
	"sync"
	"sync/atomic"

	"github.com/VerseEngine/verse-entrance-server/internal/sessionid"
)

// Registry is the global admission-controlled map of sessions and
// worlds described by spec.md sections 3 and 4.6. The map operations
// are individually atomic (guarded by their own mutexes); the
// cross-map sequence (sessions <-> worlds) follows the admission order
// spec.md lays out so the invariants in spec.md section 8 hold at
// steady state.
type Registry struct {
	sessionsMu sync.RWMutex
	sessions   map[sessionid.SessionId]*ClientRecord

	worldsMu sync.Mutex
	worlds   map[string]*WorldRecord

	totalCount atomic.Int32
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[sessionid.SessionId]*ClientRecord),
		worlds:   make(map[string]*WorldRecord),
	}
}

// TotalCount returns the current session count.
func (r *Registry) TotalCount() int32 { return r.totalCount.Load() }

// Get looks up a session by id.
func (r *Registry) Get(sid sessionid.SessionId) (*ClientRecord, bool) {
	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()
	cr, ok := r.sessions[sid]
	return cr, ok
}

// WorldClientCount returns the current member count of the world at
// url, or 0 if no such world exists.
func (r *Registry) WorldClientCount(url string) int32 {
	r.worldsMu.Lock()
	w := r.worlds[url]
	r.worldsMu.Unlock()
	if w == nil {
		return 0
	}
	return w.ClientCount()
}

// IsNewConnectionAvailable reports whether admitting one more session
// under url would currently be accepted given globalCap and urlCap (a
// cap <= 0 means unlimited). This is an advisory pre-check only —
// Admit re-validates atomically at insertion time, since both counters
// can move between this check and the admit call.
func (r *Registry) IsNewConnectionAvailable(url string, globalCap, urlCap int32) bool {
	if globalCap > 0 && r.totalCount.Load() >= globalCap {
		return false
	}
	if urlCap > 0 && r.WorldClientCount(url) >= urlCap {
		return false
	}
	return true
}

// Admit performs the admission sequence from spec.md section 4.6:
// CAS-increment the global counter, insert into sessions, then either
// join or create the session's world under the per-url cap. If the
// world-level step fails, the global increment and session insert are
// rolled back before returning false.
func (r *Registry) Admit(cr *ClientRecord, globalCap, urlCap int32) bool {
	for {
		cur := r.totalCount.Load()
		if globalCap > 0 && cur >= globalCap {
			return false
		}
		if r.totalCount.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	r.sessionsMu.Lock()
	r.sessions[cr.SessionID] = cr
	r.sessionsMu.Unlock()

	if !r.joinWorld(cr, urlCap) {
		r.sessionsMu.Lock()
		delete(r.sessions, cr.SessionID)
		r.sessionsMu.Unlock()
		r.totalCount.Add(-1)
		return false
	}
	return true
}

func (r *Registry) joinWorld(cr *ClientRecord, urlCap int32) bool {
	r.worldsMu.Lock()
	w, ok := r.worlds[cr.URL]
	if !ok {
		w = NewWorldRecord(cr.URL)
		r.worlds[cr.URL] = w
	}
	r.worldsMu.Unlock()

	if !w.AddClient(cr, urlCap) {
		if !ok {
			// This call created the world, but a concurrent admission
			// filled it to urlCap first (a urlCap <= 0 is unlimited and
			// never fails here). The world is removed only if it has no
			// members, so it doesn't linger empty.
			r.worldsMu.Lock()
			if cur := r.worlds[cr.URL]; cur == w && w.ClientCount() == 0 {
				delete(r.worlds, cr.URL)
			}
			r.worldsMu.Unlock()
		}
		return false
	}
	return true
}

// Remove is idempotent: it looks up sid, removes it from sessions,
// decrements the total counter, removes it from its world's member
// vector, and drops the world entry entirely once it has no members
// left.
func (r *Registry) Remove(sid sessionid.SessionId) {
	r.sessionsMu.Lock()
	cr, ok := r.sessions[sid]
	if !ok {
		r.sessionsMu.Unlock()
		return
	}
	delete(r.sessions, sid)
	r.sessionsMu.Unlock()
	r.totalCount.Add(-1)

	r.worldsMu.Lock()
	w := r.worlds[cr.URL]
	r.worldsMu.Unlock()
	if w == nil {
		return
	}
	w.RemoveClient(sid[:])

	if w.ClientCount() == 0 {
		r.worldsMu.Lock()
		if cur := r.worlds[cr.URL]; cur == w && w.ClientCount() == 0 {
			delete(r.worlds, cr.URL)
		}
		r.worldsMu.Unlock()
	}
}

// World returns the world record at url, if any.
func (r *Registry) World(url string) (*WorldRecord, bool) {
	r.worldsMu.Lock()
	defer r.worldsMu.Unlock()
	w, ok := r.worlds[url]
	return w, ok
}
