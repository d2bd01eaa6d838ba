package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/VerseEngine/verse-entrance-server/internal/clusterhash"
	"github.com/VerseEngine/verse-entrance-server/internal/logx"
)

var info, warn, _ = logx.Tagged("cluster")

// retryBackoffs is the startup fetch schedule from spec.md section 4.9:
// up to 5 retries at 3, 6, 9, 12, 15 seconds.
var retryBackoffs = []time.Duration{
	3 * time.Second,
	6 * time.Second,
	9 * time.Second,
	12 * time.Second,
	15 * time.Second,
}

// pollInterval is the steady-state refresh period once a NodeList has
// been loaded at least once.
const pollInterval = 60 * time.Second

// Client periodically fetches the cluster's NodeList manifest over HTTP
// and keeps an internal/clusterhash.Router's view of it current. It is
// the Go analogue of original_source/cluster/src/client.rs's Client,
// generalized from an in-process-only cache into one fed by a
// background poll loop (the original kept its own cache; here the
// Router already holds the cache, so Client is purely the fetch loop
// driving it).
type Client struct {
	router  *clusterhash.Router
	fetchFn func(ctx context.Context) (NodeListData, error)

	// backoffs and poll override the spec.md-mandated schedule; tests
	// shrink them, production leaves them at their zero value and gets
	// retryBackoffs/pollInterval via backoffSchedule/pollPeriod below.
	backoffs []time.Duration
	poll     time.Duration
}

// NewClient builds a Client that fetches the manifest from nodeListURL
// via plain HTTP GET.
func NewClient(router *clusterhash.Router, nodeListURL string) *Client {
	return &Client{
		router: router,
		fetchFn: func(ctx context.Context) (NodeListData, error) {
			return fetchNodeListHTTP(ctx, nodeListURL)
		},
	}
}

func (c *Client) backoffSchedule() []time.Duration {
	if c.backoffs != nil {
		return c.backoffs
	}
	return retryBackoffs
}

func (c *Client) pollPeriod() time.Duration {
	if c.poll != 0 {
		return c.poll
	}
	return pollInterval
}

// Router returns the Client's backing router.
func (c *Client) Router() *clusterhash.Router { return c.router }

// Start fetches the initial NodeList with the startup retry schedule,
// then loops every 60 seconds until ctx is canceled. Returns only if the
// very first fetch fails after all retries are exhausted; the steady
// state loop never returns early on a transient fetch error, it just
// retries on the next tick.
func (c *Client) Start(ctx context.Context) error {
	if err := c.fetchInitial(ctx); err != nil {
		return fmt.Errorf("cluster: initial node list fetch: %w", err)
	}
	go c.loop(ctx)
	return nil
}

func (c *Client) fetchInitial(ctx context.Context) error {
	var lastErr error
	if err := c.fetchOnce(ctx); err == nil {
		return nil
	} else {
		lastErr = err
	}
	for _, backoff := range c.backoffSchedule() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if err := c.fetchOnce(ctx); err == nil {
			return nil
		} else {
			lastErr = err
			warn("node list fetch retry failed: %v", err)
		}
	}
	return lastErr
}

func (c *Client) loop(ctx context.Context) {
	ticker := time.NewTicker(c.pollPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.fetchOnce(ctx); err != nil {
				warn("node list fetch failed: %v", err)
			}
		}
	}
}

// fetchOnce fetches the manifest and, if it differs from the cached
// list by deep equality on the ordered sequence, atomically replaces
// the router's cache.
func (c *Client) fetchOnce(ctx context.Context) error {
	data, err := c.fetchFn(ctx)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(c.router.NodeList(), data.Nodes) {
		return nil
	}
	c.router.SetNodeList(data.Nodes)
	info("node list updated: %d nodes", len(data.Nodes))
	return nil
}

func fetchNodeListHTTP(ctx context.Context, url string) (NodeListData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NodeListData{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return NodeListData{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return NodeListData{}, fmt.Errorf("cluster: fetch node list: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NodeListData{}, err
	}
	var data NodeListData
	if err := json.Unmarshal(body, &data); err != nil {
		return NodeListData{}, fmt.Errorf("cluster: decode node list: %w", err)
	}
	return data, nil
}
