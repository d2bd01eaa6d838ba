// Command entranced runs one node of the signaling/swarm-routing hub.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/VerseEngine/verse-entrance-server/internal/cluster"
	"github.com/VerseEngine/verse-entrance-server/internal/clusterhash"
	"github.com/VerseEngine/verse-entrance-server/internal/config"
	"github.com/VerseEngine/verse-entrance-server/internal/entrance"
	"github.com/VerseEngine/verse-entrance-server/internal/httpapi"
	"github.com/VerseEngine/verse-entrance-server/internal/signaling"
	"github.com/VerseEngine/verse-entrance-server/internal/swarm"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("entranced: %v", err)
	}
	// cluster_node_host is this node's own per-node hostname, derived from
	// public_ip and http_host rather than taken from a flag — it has no
	// CLI flag in original_source/hubserv/src/args.rs either; it is
	// computed once in Args::set_other_args via get_node_host.
	nodeOwnHost := clusterhash.NodeHost(cfg.PublicIP, cfg.HTTPHost)
	log.Printf("entranced %s starting, http_host=%s cluster_node_host=%s", version, cfg.HTTPHost, nodeOwnHost)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A node runs the full cluster-manager reconciliation cycle when it
	// has an http_host and a public_ip and both cluster-node-role and
	// cluster-node-stage are set. Without role/stage but with Cloudflare
	// credentials, it only publishes its own A-record (the else branch).
	var manager *cluster.Manager
	if cfg.HTTPHost != "" && cfg.PublicIP != "" && cfg.ClusterNodeRole != "" && cfg.ClusterNodeStage != "" {
		manager = cluster.NewManager(
			cfg.HTTPHost,
			cfg.ClusterNodeRole,
			cfg.ClusterNodeStage,
			cfg.AWSRegion,
			cluster.S3Path{Bucket: cfg.ClusterJSONS3Bucket, Key: cfg.ClusterJSONS3Key},
			cluster.CloudflareAuth{Email: cfg.CloudflareEmail, APIKey: cfg.CloudflareAPIKey},
		)
		if err := manager.Update(ctx); err != nil {
			log.Fatalf("entranced: initial cluster reconcile: %v", err)
		}
	} else if cfg.HTTPHost != "" && cfg.PublicIP != "" && cfg.CloudflareEmail != "" && cfg.CloudflareAPIKey != "" {
		auth := cluster.CloudflareAuth{Email: cfg.CloudflareEmail, APIKey: cfg.CloudflareAPIKey}
		if err := cluster.BootstrapDNSRecord(ctx, auth, cfg.HTTPHost, cfg.PublicIP); err != nil {
			log.Fatalf("entranced: bootstrap dns record: %v", err)
		}
	}

	// router stays nil in standalone/single-node mode (no NodeList to
	// fetch): a nil Router makes checkCluster/checkStillMyWork always
	// proceed instead of resolving every world to WorkerNothing.
	var router *clusterhash.Router
	if cfg.ClusterNodeListURL != "" {
		router = clusterhash.NewRouter(nodeOwnHost, cfg.HTTPHost)
		client := cluster.NewClient(router, cfg.ClusterNodeListURL)
		if err := client.Start(ctx); err != nil {
			log.Fatalf("entranced: cluster client: %v", err)
		}
	}

	registry := signaling.NewRegistry()
	dispatcher := swarm.NewDispatcher(registry, router, cfg.MaxRoutingResults)

	entranceHandler := entrance.NewHandler(cfg.PublicIP)
	entranceHandler.Registry = registry
	entranceHandler.Router = router
	entranceHandler.GlobalCap = int32(cfg.MaxConnections)
	entranceHandler.PerURLCap = int32(cfg.MaxConnectionsByURL)
	entranceHandler.ICEServers = cfg.ICEServers
	entranceHandler.OnMessage = func(cr *signaling.ClientRecord, data []byte) {
		dispatcher.Handle(cr, data)
	}
	entranceHandler.AccessLog = func(r *http.Request, url string, worldClientCount int32) {
		log.Printf("[entrance] connected url=%q clients=%d ua=%q xff=%q country=%q",
			url, worldClientCount, r.UserAgent(), r.Header.Get("X-Forwarded-For"), r.Header.Get("cf-ipcountry"))
	}

	srv := &httpapi.Server{
		Entrance:         entranceHandler,
		UpdateClusterKey: cfg.UpdateClusterKey,
		Version:          version,
		PrometheusPrefix: cfg.PrometheusPrefix,
		ClientCountFn:    func() int32 { return registry.TotalCount() },
		HTTPHost:         cfg.HTTPHost,
		NodeHost:         nodeOwnHost,
		UseHTTPS:         cfg.UseHTTPS,
		CertDir:          os.Getenv("HOME") + "/.entranced-certs",
	}
	if manager != nil {
		srv.Reconcile = manager.Update
	}

	httpAddr := ":" + strconv.Itoa(cfg.HTTPPort)
	statusAddr := ":" + strconv.Itoa(cfg.StatusPort)
	if err := srv.ListenAndServe(ctx, httpAddr, statusAddr); err != nil {
		log.Fatalf("entranced: %v", err)
	}
}
