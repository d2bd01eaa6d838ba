package cluster

import (
	"context"
	"fmt"

	"github.com/cloudflare/cloudflare-go"

	"github.com/VerseEngine/verse-entrance-server/internal/clusterhash"
)

// CloudflareAuth carries the credentials original_source/cluster/src/cf.rs's
// CfAuthInfo bundles (email + global API key).
type CloudflareAuth struct {
	Email  string
	APIKey string
}

func newCloudflareClient(auth CloudflareAuth) (*cloudflare.API, error) {
	api, err := cloudflare.New(auth.APIKey, auth.Email)
	if err != nil {
		return nil, fmt.Errorf("cluster: cloudflare client: %w", err)
	}
	return api, nil
}

// aRecord is the trimmed view of a Cloudflare DNS record this package
// reasons about: original_source/cluster/src/cf.rs's CfARecord.
type aRecord struct {
	ID   string
	Name string
	IP   string
}

func getZoneID(ctx context.Context, api *cloudflare.API, domain string) (string, bool, error) {
	zones, err := api.ListZonesContext(ctx, cloudflare.WithZoneFilters(domain, "", ""))
	if err != nil {
		return "", false, fmt.Errorf("cluster: list zones: %w", err)
	}
	if len(zones.Result) != 1 {
		return "", false, nil
	}
	return zones.Result[0].ID, true, nil
}

func getARecords(ctx context.Context, api *cloudflare.API, zoneID string) ([]aRecord, error) {
	rc := cloudflare.ZoneIdentifier(zoneID)
	recs, _, err := api.ListDNSRecords(ctx, rc, cloudflare.ListDNSRecordsParams{
		Type:    "A",
		PerPage: 50000,
	})
	if err != nil {
		return nil, fmt.Errorf("cluster: list dns records: %w", err)
	}
	out := make([]aRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, aRecord{ID: r.ID, Name: r.Name, IP: r.Content})
	}
	return out, nil
}

func addARecord(ctx context.Context, api *cloudflare.API, zoneID, name, ip string, proxied bool) error {
	rc := cloudflare.ZoneIdentifier(zoneID)
	_, err := api.CreateDNSRecord(ctx, rc, cloudflare.CreateDNSRecordParams{
		Type:    "A",
		Name:    name,
		Content: ip,
		Proxied: &proxied,
	})
	if err != nil {
		return fmt.Errorf("cluster: create dns record %s: %w", name, err)
	}
	return nil
}

func deleteARecord(ctx context.Context, api *cloudflare.API, zoneID, id string) error {
	rc := cloudflare.ZoneIdentifier(zoneID)
	if err := api.DeleteDNSRecord(ctx, rc, id); err != nil {
		return fmt.Errorf("cluster: delete dns record %s: %w", id, err)
	}
	return nil
}

// recordGroups splits a zone's A-records into the two groups spec.md
// section 4.10 step 3 reconciles independently: the cluster-wide
// virtual host record, and per-node single-host records of the form
// `[prefix-]<16-hex-node-id>.base_domain`. Grounded on
// original_source/cluster/src/manager.rs's split_records.
type recordGroups struct {
	clusterRecords []aRecord
	singleRecords  []aRecord
}

func splitRecords(records []aRecord, prefix, baseDomain, clusterHost string) recordGroups {
	var g recordGroups
	for _, r := range records {
		if r.Name == clusterHost {
			g.clusterRecords = append(g.clusterRecords, r)
		}
	}
	suffix := "." + baseDomain
	if prefix == "" {
		ln := clusterhash.NodeIDLen + len(suffix)
		for _, r := range records {
			if len(r.Name) == ln && hasSuffix(r.Name, suffix) {
				g.singleRecords = append(g.singleRecords, r)
			}
		}
	} else {
		p := prefix + "-"
		ln := clusterhash.NodeIDLen + len(p) + len(suffix)
		for _, r := range records {
			if len(r.Name) == ln && hasPrefix(r.Name, p) && hasSuffix(r.Name, suffix) {
				g.singleRecords = append(g.singleRecords, r)
			}
		}
	}
	return g
}

func hasPrefix(s, p string) bool { return len(s) >= len(p) && s[:len(p)] == p }
func hasSuffix(s, suf string) bool {
	return len(s) >= len(suf) && s[len(s)-len(suf):] == suf
}

// recordDiff is the add/delete set a reconciliation pass must apply to
// bring records in line with currentIPs. Grounded on
// original_source/cluster/src/manager.rs's diff_records.
type recordDiff struct {
	adds []string
	dels []aRecord
}

func diffRecords(records []aRecord, currentIPs []string) recordDiff {
	prevIPs := make(map[string]bool, len(records))
	for _, r := range records {
		prevIPs[r.IP] = true
	}
	curIPs := make(map[string]bool, len(currentIPs))
	for _, ip := range currentIPs {
		curIPs[ip] = true
	}
	var d recordDiff
	for _, ip := range currentIPs {
		if !prevIPs[ip] {
			d.adds = append(d.adds, ip)
		}
	}
	for _, r := range records {
		if !curIPs[r.IP] {
			d.dels = append(d.dels, r)
		}
	}
	return d
}

// reconcileDNS applies spec.md section 4.10 steps 3-4 against the live
// zone. A transient error on any single record aborts the remaining
// operations of the cycle, per spec.md's failure-handling note.
func reconcileDNS(ctx context.Context, api *cloudflare.API, clusterHost string, currentIPs []string) error {
	prefix, baseDomain := clusterhash.SplitHost(clusterHost)

	zoneID, ok, err := getZoneID(ctx, api, baseDomain)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cluster: zone not found for domain %q", baseDomain)
	}

	records, err := getARecords(ctx, api, zoneID)
	if err != nil {
		return err
	}
	groups := splitRecords(records, prefix, baseDomain, clusterHost)

	clusterDiff := diffRecords(groups.clusterRecords, currentIPs)
	for _, r := range clusterDiff.dels {
		if err := deleteARecord(ctx, api, zoneID, r.ID); err != nil {
			return err
		}
	}
	for _, ip := range clusterDiff.adds {
		if err := addARecord(ctx, api, zoneID, clusterHost, ip, true); err != nil {
			return err
		}
	}

	singleDiff := diffRecords(groups.singleRecords, currentIPs)
	for _, r := range singleDiff.dels {
		if err := deleteARecord(ctx, api, zoneID, r.ID); err != nil {
			return err
		}
	}
	for _, ip := range singleDiff.adds {
		name := clusterhash.NodeHost(ip, clusterHost)
		if err := addARecord(ctx, api, zoneID, name, ip, true); err != nil {
			return err
		}
	}
	return nil
}

// BootstrapDNSRecord publishes a single node's own A-record directly,
// bypassing the full reconciliation cycle. Used by cmd/entranced for a
// standalone (non-clustered) deployment where no Manager loop runs, per
// SPEC_FULL.md's supplemented bootstrap-DNS feature.
func BootstrapDNSRecord(ctx context.Context, auth CloudflareAuth, clusterHost, publicIP string) error {
	api, err := newCloudflareClient(auth)
	if err != nil {
		return err
	}
	_, baseDomain := clusterhash.SplitHost(clusterHost)
	zoneID, ok, err := getZoneID(ctx, api, baseDomain)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cluster: zone not found for domain %q", baseDomain)
	}
	name := clusterhash.NodeHost(publicIP, clusterHost)
	return addARecord(ctx, api, zoneID, name, publicIP, true)
}
