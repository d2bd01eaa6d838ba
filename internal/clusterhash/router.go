package clusterhash

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// NodeListNode is one entry of the cluster's NodeList manifest: just the
// hostname other nodes and the front door dial into it by.
type NodeListNode struct {
	Host string `json:"host"`
}

// Worker identifies which node a world URL is assigned to.
type Worker struct {
	// Kind is one of WorkerMe, WorkerOther, WorkerNothing.
	Kind WorkerKind
	// Host is set only when Kind == WorkerOther.
	Host string
}

// WorkerKind enumerates the possible ownership outcomes of GetWorker.
type WorkerKind int

const (
	// WorkerMe means the local node owns the world.
	WorkerMe WorkerKind = iota
	// WorkerOther means another node, named by Worker.Host, owns it.
	WorkerOther
	// WorkerNothing means no NodeList has been loaded yet, or the loaded
	// list is empty.
	WorkerNothing
)

// Router answers "who owns this world url" for the local node, given
// the cluster's current NodeList. It holds no world-specific state: the
// same world url always hashes to the same slot as long as the NodeList
// is unchanged, which is what makes shard ownership stable across
// restarts without coordination.
type Router struct {
	nodeHost    string
	clusterHost string

	mu       sync.RWMutex
	nodeList []NodeListNode
}

// NewRouter builds a Router for a node answering to nodeHost, under a
// cluster fronted at clusterHost (e.g. "entrance.verseengine.cloud").
func NewRouter(nodeHost, clusterHost string) *Router {
	return &Router{nodeHost: nodeHost, clusterHost: clusterHost}
}

// NodeHost returns the local node's own hostname.
func (r *Router) NodeHost() string { return r.nodeHost }

// SetNodeList replaces the cluster's view of live nodes.
func (r *Router) SetNodeList(nodes []NodeListNode) {
	cp := append([]NodeListNode(nil), nodes...)
	r.mu.Lock()
	r.nodeList = cp
	r.mu.Unlock()
}

// NodeList returns the cluster's current view of live nodes, or nil if
// none has been loaded yet.
func (r *Router) NodeList() []NodeListNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.nodeList == nil {
		return nil
	}
	return append([]NodeListNode(nil), r.nodeList...)
}

// AssignedNode returns which node owns worldURL, or false if no
// NodeList has been loaded or it's empty.
func (r *Router) AssignedNode(worldURL string) (NodeListNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.nodeList) == 0 {
		return NodeListNode{}, false
	}
	idx := toHash(worldURL) % uint64(len(r.nodeList))
	return r.nodeList[idx], true
}

// IsMyWork reports whether the local node is the owner of worldURL.
func (r *Router) IsMyWork(worldURL string) bool {
	n, ok := r.AssignedNode(worldURL)
	return ok && n.Host == r.nodeHost
}

// GetWorker resolves worldURL's owner relative to the local node.
func (r *Router) GetWorker(worldURL string) Worker {
	n, ok := r.AssignedNode(worldURL)
	if !ok {
		return Worker{Kind: WorkerNothing}
	}
	if n.Host == r.nodeHost {
		return Worker{Kind: WorkerMe}
	}
	return Worker{Kind: WorkerOther, Host: n.Host}
}

// CanRedirect reports whether requestHost is the cluster's shared
// front-door host (as opposed to a specific node's own hostname) —
// only requests to the shared host are eligible for a same-origin
// redirect to the owning node.
func (r *Router) CanRedirect(requestHost string) bool {
	return r.clusterHost == requestHost
}

// toHash is a stable, non-cryptographic 64-bit hash of key. Every node
// in the cluster must compute the same value for the same world url, so
// this must stay deterministic across process restarts and Go
// versions — xxhash (unlike Go's built-in map seed or hash/maphash)
// guarantees that.
func toHash(key string) uint64 {
	return xxhash.Sum64String(key)
}
