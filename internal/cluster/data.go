// Package cluster implements C9 (the periodic NodeList-fetching client
// that feeds internal/clusterhash.Router) and C10 (the manager process
// that enumerates live backends, publishes the NodeList manifest, and
// reconciles DNS). Grounded on original_source/cluster/src/{client,
// manager,node_source,cf,data}.rs.
package cluster

import "github.com/VerseEngine/verse-entrance-server/internal/clusterhash"

// NodeListData is the manifest document uploaded to S3 and fetched by
// every node's Client: the list of currently-live node hostnames,
// matching original_source/cluster/src/data.rs's NodeListData exactly
// (same field names, same JSON shape) so a manifest written by one
// deployment generation stays readable by another.
type NodeListData struct {
	Nodes []clusterhash.NodeListNode `json:"nodes"`
}
