package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/VerseEngine/verse-entrance-server/internal/clusterhash"
)

// S3Path names the object-storage location the NodeList manifest is
// uploaded to, mirroring original_source/cluster/src/manager.rs's
// S3Path.
type S3Path struct {
	Bucket string
	Key    string
}

// Manager runs the reconciliation cycle of spec.md section 4.10:
// enumerate live backends, publish the NodeList manifest, and reconcile
// DNS. Grounded on original_source/cluster/src/manager.rs's Manager.
type Manager struct {
	ClusterHost string
	Role        string
	Stage       string
	AWSRegion   string
	S3Path      S3Path
	CfAuth      CloudflareAuth
}

// NewManager builds a Manager from its reconciliation parameters.
func NewManager(clusterHost, role, stage, awsRegion string, s3path S3Path, cfAuth CloudflareAuth) *Manager {
	return &Manager{
		ClusterHost: clusterHost,
		Role:        role,
		Stage:       stage,
		AWSRegion:   awsRegion,
		S3Path:      s3path,
		CfAuth:      cfAuth,
	}
}

// Update runs one full reconciliation cycle: enumerate backends, upload
// the manifest, reconcile DNS. Idempotent; safe to run concurrently with
// request serving. A transient error aborts the remainder of the cycle
// and is returned to the caller; the next scheduled cycle starts over.
func (m *Manager) Update(ctx context.Context) error {
	nodes, err := loadNodesFromEC2(ctx, m.Role, m.Stage, m.AWSRegion)
	if err != nil {
		return fmt.Errorf("cluster: enumerate backends: %w", err)
	}
	if err := m.updateClusterJSON(ctx, nodes); err != nil {
		return err
	}
	if err := m.updateDNS(ctx, nodes); err != nil {
		return err
	}
	return nil
}

func (m *Manager) updateClusterJSON(ctx context.Context, nodes []BackendNode) error {
	js, err := m.createClusterJSON(nodes)
	if err != nil {
		return err
	}
	return m.uploadClusterJSON(ctx, js)
}

func (m *Manager) createClusterJSON(nodes []BackendNode) ([]byte, error) {
	data := NodeListData{Nodes: make([]clusterhash.NodeListNode, len(nodes))}
	for i, n := range nodes {
		data.Nodes[i] = clusterhash.NodeListNode{Host: clusterhash.NodeHost(n.PublicIP, m.ClusterHost)}
	}
	js, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("cluster: marshal node list: %w", err)
	}
	return js, nil
}

func (m *Manager) uploadClusterJSON(ctx context.Context, js []byte) error {
	cfg, err := loadAWSConfig(ctx, m.AWSRegion)
	if err != nil {
		return fmt.Errorf("cluster: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.S3Path.Bucket),
		Key:         aws.String(m.S3Path.Key),
		Body:        bytes.NewReader(js),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("cluster: upload cluster json: %w", err)
	}
	return nil
}

func (m *Manager) updateDNS(ctx context.Context, nodes []BackendNode) error {
	api, err := newCloudflareClient(m.CfAuth)
	if err != nil {
		return err
	}
	ips := make([]string, len(nodes))
	for i, n := range nodes {
		ips[i] = n.PublicIP
	}
	return reconcileDNS(ctx, api, m.ClusterHost, ips)
}
