// Package clusterhash implements C3: deterministic node-id derivation
// from a public IP and the modulo-hash router that decides which
// cluster node owns a given world URL.
package clusterhash

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// NodeIDLen is the hex-encoded node id length in characters.
const NodeIDLen = 16

// NodeID derives a stable 8-byte (16 hex char) identifier from a public
// IP using Shake256, matching the original hub's node-id scheme so
// existing DNS records and NodeList manifests keep resolving across a
// rewrite.
func NodeID(ip string) string {
	h := sha3.NewShake256()
	_, _ = h.Write([]byte(ip))
	sum := make([]byte, NodeIDLen/2)
	_, _ = h.Read(sum)
	return hex.EncodeToString(sum)
}

// SplitHost splits a cluster host like "entrance.verseengine.cloud"
// into its node-name prefix ("entrance") and base domain
// ("verseengine.cloud"). A bare domain with no identifiable prefix
// (fewer than 3 labels) returns an empty prefix and the host unchanged.
func SplitHost(host string) (prefix, baseDomain string) {
	parts := strings.SplitN(host, ".", 2)
	if len(parts) == 2 && strings.Contains(parts[1], ".") {
		return parts[0], parts[1]
	}
	return "", host
}

// NodeHost builds the fully-qualified hostname a node should answer to,
// e.g. NodeHost("1.2.3.4", "entrance.verseengine.cloud") ==
// "entrance-76f67dfc1573f0e7.verseengine.cloud".
func NodeHost(ip, clusterHost string) string {
	prefix, base := SplitHost(clusterHost)
	id := NodeID(ip)
	if prefix == "" {
		return id + "." + base
	}
	return prefix + "-" + id + "." + base
}

// NodePrefix builds the DNS record name (without the base domain) for a
// node, e.g. NodePrefix("1.2.3.4", "entrance.verseengine.cloud") ==
// "entrance-76f67dfc1573f0e7".
func NodePrefix(ip, clusterHost string) string {
	prefix, _ := SplitHost(clusterHost)
	id := NodeID(ip)
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
