// Package reconcile computes the minimal set of API writes needed to bring a
// DNS record or firewall rule into agreement with the host's current public
// IP address plus statically configured entries.
package reconcile

import (
	"context"
	"fmt"
	"net/netip"
	"slices"

	"github.com/digitalocean/godo"

	"github.com/clieb/do-dyndns/pkg/addrset"
	"github.com/clieb/do-dyndns/pkg/digitalocean"
)

// RuleTarget is the desired value of one firewall rule: an address set plus
// the IDs of account resources that receive the rule directly.
type RuleTarget struct {
	Addresses        *addrset.Set
	DropletIDs       []int
	LoadBalancerUIDs []string
	KubernetesIDs    []string
}

// TargetSpec names the inputs of a RuleTarget before resolution.
type TargetSpec struct {
	StaticAddresses []string
	Droplets        []string
	LoadBalancers   []string
	Kubernetes      []string
}

// BuildRuleTarget combines the resolved dynamic addresses with the static
// CIDR list and resolves resource names to IDs via the account inventory.
// Name resolution happens up front so the diffing stays pure: a malformed
// CIDR or unknown name fails here, before any network mutation.
func BuildRuleTarget(ctx context.Context, inv digitalocean.InventoryService, dynamic []netip.Addr, spec TargetSpec) (*RuleTarget, error) {
	addresses, err := addrset.Parse(spec.StaticAddresses)
	if err != nil {
		return nil, err
	}
	for _, addr := range dynamic {
		addresses.AddAddr(addr)
	}

	target := &RuleTarget{Addresses: addresses}

	if err := resolveDroplets(ctx, inv, spec.Droplets, target); err != nil {
		return nil, err
	}

	target.LoadBalancerUIDs, err = resolveNames(spec.LoadBalancers, "load balancer",
		func() ([]godo.LoadBalancer, error) { return inv.ListLoadBalancers(ctx) },
		func(lb godo.LoadBalancer) string { return lb.Name },
		func(lb godo.LoadBalancer) string { return lb.ID })
	if err != nil {
		return nil, err
	}

	target.KubernetesIDs, err = resolveNames(spec.Kubernetes, "kubernetes cluster",
		func() ([]*godo.KubernetesCluster, error) { return inv.ListKubernetesClusters(ctx) },
		func(c *godo.KubernetesCluster) string { return c.Name },
		func(c *godo.KubernetesCluster) string { return c.ID })
	if err != nil {
		return nil, err
	}

	return target, nil
}

// resolveDroplets resolves each droplet name to its provider-assigned ID and
// its public addresses. The ID routes the rule to the droplet directly; the
// addresses join the rule's address set as single-host entries.
func resolveDroplets(ctx context.Context, inv digitalocean.InventoryService, names []string, target *RuleTarget) error {
	if len(names) == 0 {
		return nil
	}
	droplets, err := inv.ListDroplets(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]*godo.Droplet, len(droplets))
	for i := range droplets {
		byName[droplets[i].Name] = &droplets[i]
	}
	for _, name := range names {
		droplet, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown droplet name %q", name)
		}
		if !slices.Contains(target.DropletIDs, droplet.ID) {
			target.DropletIDs = append(target.DropletIDs, droplet.ID)
		}
		if droplet.Networks == nil {
			continue
		}
		for _, nw := range droplet.Networks.V4 {
			if nw.Type != "public" {
				continue
			}
			addr, err := netip.ParseAddr(nw.IPAddress)
			if err != nil {
				return fmt.Errorf("droplet %s has malformed address %q: %w", name, nw.IPAddress, err)
			}
			target.Addresses.AddAddr(addr)
		}
		for _, nw := range droplet.Networks.V6 {
			if nw.Type != "public" {
				continue
			}
			addr, err := netip.ParseAddr(nw.IPAddress)
			if err != nil {
				return fmt.Errorf("droplet %s has malformed address %q: %w", name, nw.IPAddress, err)
			}
			target.Addresses.AddAddr(addr)
		}
	}
	slices.Sort(target.DropletIDs)
	return nil
}

// resolveNames maps resource names to their provider-assigned IDs using one
// inventory listing. An unknown name is an error: a rule must never be
// applied with a silently incomplete target. Returned IDs are sorted so the
// desired state is deterministic within a run.
func resolveNames[T any, K int | string](names []string, kind string, list func() ([]T, error), nameOf func(T) string, keyOf func(T) K) ([]K, error) {
	if len(names) == 0 {
		return nil, nil
	}
	objects, err := list()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]K, len(objects))
	for _, obj := range objects {
		byName[nameOf(obj)] = keyOf(obj)
	}
	keys := make([]K, 0, len(names))
	for _, name := range names {
		key, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown %s name %q", kind, name)
		}
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
