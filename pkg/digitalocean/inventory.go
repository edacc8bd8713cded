package digitalocean

import (
	"context"
	"fmt"

	"github.com/digitalocean/godo"
)

// InventoryService lists the account resources whose names can appear in
// firewall rule targets.
type InventoryService interface {
	ListDroplets(ctx context.Context) ([]godo.Droplet, error)
	ListLoadBalancers(ctx context.Context) ([]godo.LoadBalancer, error)
	ListKubernetesClusters(ctx context.Context) ([]*godo.KubernetesCluster, error)
}

func (c *Client) ListDroplets(ctx context.Context) ([]godo.Droplet, error) {
	opt := &godo.ListOptions{PerPage: 200}
	var all []godo.Droplet
	for {
		droplets, resp, err := c.do.Droplets.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list droplets: %w", err)
		}
		all = append(all, droplets...)
		page, done, err := nextPage(resp)
		if err != nil {
			return nil, err
		}
		if done {
			return all, nil
		}
		opt.Page = page
	}
}

func (c *Client) ListLoadBalancers(ctx context.Context) ([]godo.LoadBalancer, error) {
	opt := &godo.ListOptions{PerPage: 200}
	var all []godo.LoadBalancer
	for {
		lbs, resp, err := c.do.LoadBalancers.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list load balancers: %w", err)
		}
		all = append(all, lbs...)
		page, done, err := nextPage(resp)
		if err != nil {
			return nil, err
		}
		if done {
			return all, nil
		}
		opt.Page = page
	}
}

func (c *Client) ListKubernetesClusters(ctx context.Context) ([]*godo.KubernetesCluster, error) {
	opt := &godo.ListOptions{PerPage: 200}
	var all []*godo.KubernetesCluster
	for {
		clusters, resp, err := c.do.Kubernetes.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list kubernetes clusters: %w", err)
		}
		all = append(all, clusters...)
		page, done, err := nextPage(resp)
		if err != nil {
			return nil, err
		}
		if done {
			return all, nil
		}
		opt.Page = page
	}
}
