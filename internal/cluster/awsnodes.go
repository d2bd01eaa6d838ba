package cluster

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// BackendNode is one live instance discovered via the cloud API, before
// its hostname is derived. Mirrors
// original_source/cluster/src/node_source.rs's Node.
type BackendNode struct {
	PublicIP string
}

// loadAWSConfig mirrors original_source/cluster/src/aws.rs's
// load_aws_config: region-pinned when given, otherwise whatever the
// environment/instance profile resolves to.
func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if region == "" {
		return config.LoadDefaultConfig(ctx)
	}
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

// loadNodesFromEC2 enumerates running instances tagged Role=role,
// Stage=stage and returns their public IPs, per spec.md section 4.10
// step 1. Grounded on
// original_source/cluster/src/node_source.rs's load_nodes_from_ec2.
func loadNodesFromEC2(ctx context.Context, role, stage, region string) ([]BackendNode, error) {
	cfg, err := loadAWSConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("cluster: load aws config: %w", err)
	}
	client := ec2.NewFromConfig(cfg)
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
			{Name: aws.String("tag:Role"), Values: []string{role}},
			{Name: aws.String("tag:Stage"), Values: []string{stage}},
		},
	}
	var nodes []BackendNode
	paginator := ec2.NewDescribeInstancesPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cluster: describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				if instance.PublicIpAddress != nil && *instance.PublicIpAddress != "" {
					nodes = append(nodes, BackendNode{PublicIP: *instance.PublicIpAddress})
				}
			}
		}
	}
	return nodes, nil
}
