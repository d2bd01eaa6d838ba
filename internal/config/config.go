// Package config loads cmd/entranced's flags/environment into a Config,
// the minimal shim a runnable binary needs around the server library
// packages. The CLI/argument-parsing layer is out of spec scope; this
// package is intentionally thin — one FlagSet, one env-fallback helper,
// no subcommands — grounded on the teacher's cmd/ww/server.go flag
// style and original_source/hubserv/src/args.rs's field list.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Config mirrors spec.md section 6's CLI surface 1:1.
type Config struct {
	HTTPHost   string
	UseHTTPS   bool
	HTTPPort   int
	UDPPort    int
	StatusPort int

	MaxConnections      int
	MaxConnectionsByURL int
	MaxRoutingResults   int

	PublicIP   string
	ICEServers []string

	CloudflareEmail  string
	CloudflareAPIKey string

	AWSRegion string

	ClusterNodeListURL  string
	ClusterNodeRole     string
	ClusterNodeStage    string
	ClusterJSONS3Bucket string
	ClusterJSONS3Key    string

	UpdateClusterKey string

	PrometheusPrefix string
	AccessLogPath    string
	HTTPLogPath      string
}

// Load parses args (typically os.Args[1:]) into a Config, falling back
// to environment variables for the fields original_source/hubserv/src/args.rs
// marked `#[clap(long, env)]` — secrets and cloud-region values an
// operator would rather not put on a command line.
func Load(args []string) (*Config, error) {
	set := flag.NewFlagSet("entranced", flag.ContinueOnError)
	c := &Config{}

	set.StringVar(&c.HTTPHost, "http-host", "", "public hostname this node answers to")
	set.BoolVar(&c.UseHTTPS, "use-https", true, "serve TLS with on-demand ACME certs")
	set.IntVar(&c.HTTPPort, "http-port", 443, "public API port")
	set.IntVar(&c.UDPPort, "udp-port", 0, "accepted but not read; pion uses ephemeral per-connection UDP ports")
	set.IntVar(&c.StatusPort, "status-port", 9090, "status/metrics server port")

	set.IntVar(&c.MaxConnections, "max-connections", 0, "global session cap (0 = unlimited)")
	set.IntVar(&c.MaxConnectionsByURL, "max-connections-by-url", 0, "per-world session cap (0 = unlimited)")
	set.IntVar(&c.MaxRoutingResults, "max-routing-results", 0, "cap on routing tree children returned per exchange (0 = unlimited)")

	set.StringVar(&c.PublicIP, "public-ip", "", "this node's public IP, used for node-id derivation")
	var iceServers string
	set.StringVar(&iceServers, "ice-servers", "", "comma separated ICE server URLs advertised to clients")

	set.StringVar(&c.CloudflareEmail, "cloudflare-email", envDefault("CLOUDFLARE_EMAIL", ""), "Cloudflare account email")
	set.StringVar(&c.CloudflareAPIKey, "cloudflare-api-key", envDefault("CLOUDFLARE_API_KEY", ""), "Cloudflare global API key")

	set.StringVar(&c.AWSRegion, "aws-region", envDefault("AWS_REGION", ""), "AWS region for EC2/S3 calls")

	set.StringVar(&c.ClusterNodeListURL, "cluster-node-list-url", "", "URL to fetch the published NodeList manifest from")
	set.StringVar(&c.ClusterNodeRole, "cluster-node-role", "", "EC2 Role tag identifying cluster members")
	set.StringVar(&c.ClusterNodeStage, "cluster-node-stage", "", "EC2 Stage tag identifying cluster members")
	set.StringVar(&c.ClusterJSONS3Bucket, "cluster-json-s3-bucket", "", "S3 bucket the NodeList manifest is uploaded to")
	set.StringVar(&c.ClusterJSONS3Key, "cluster-json-s3-key", "", "S3 key the NodeList manifest is uploaded to")

	set.StringVar(&c.UpdateClusterKey, "update-cluster-key", envDefault("UPDATE_CLUSTER_KEY", ""), "shared secret suffix for GET /update-cluster-<key>")

	set.StringVar(&c.PrometheusPrefix, "prometheus-prefix", "", "prefix applied to every exported metric line")
	set.StringVar(&c.AccessLogPath, "access-log", "", "accepted but not read; access-log lines go to the standard logger (stderr)")
	set.StringVar(&c.HTTPLogPath, "http-log", "", "accepted but not read; HTTP server error lines go to the standard logger (stderr)")

	if err := set.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}
	c.ICEServers = splitNonEmpty(iceServers)
	return c, nil
}

func envDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
