package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/digitalocean/godo"
	log "github.com/sirupsen/logrus"

	"github.com/clieb/do-dyndns/pkg/addrset"
	"github.com/clieb/do-dyndns/pkg/digitalocean"
)

// Direction selects which side of the firewall a rule governs.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// FirewallReconciler replaces a single firewall rule's target when it drifts
// from the desired state. The provider's update endpoint replaces the whole
// rule list, so the write is a read-merge-write over the complete firewall:
// every rule not matching the (direction, protocol, ports) key is carried
// through untouched. If the fetch fails, no write is attempted, since the
// submitted list must be known to be the true superset of existing rules.
type FirewallReconciler struct {
	Firewalls digitalocean.FirewallService
	DryRun    bool
}

// Reconcile fetches the named firewall, locates the rule matching direction,
// protocol and ports, and issues one whole-list update if its target differs
// from the desired one. An absent rule is inserted. Equality is set equality
// on the addresses and on each ID list, ignoring order.
func (r *FirewallReconciler) Reconcile(ctx context.Context, firewallName string, dir Direction, protocol, ports string, desired *RuleTarget) (*godo.Firewall, Outcome, error) {
	firewall, err := r.Firewalls.GetFirewall(ctx, firewallName)
	if err != nil {
		return nil, OutcomeNoop, err
	}

	inbound := slices.Clone(firewall.InboundRules)
	outbound := slices.Clone(firewall.OutboundRules)

	var existing *ruleTarget
	var idx int
	if dir == Inbound {
		idx = slices.IndexFunc(inbound, func(rule godo.InboundRule) bool {
			return rule.Protocol == protocol && rule.PortRange == ports
		})
		if idx >= 0 {
			existing = fromSources(inbound[idx].Sources)
		}
	} else {
		idx = slices.IndexFunc(outbound, func(rule godo.OutboundRule) bool {
			return rule.Protocol == protocol && rule.PortRange == ports
		})
		if idx >= 0 {
			existing = fromDestinations(outbound[idx].Destinations)
		}
	}

	// Tags are not managed here; an existing rule keeps the ones it has.
	var tags []string
	if existing != nil {
		tags = existing.tags
	}
	want := ruleTarget{
		addresses:        desired.Addresses.Strings(),
		dropletIDs:       desired.DropletIDs,
		loadBalancerUIDs: desired.LoadBalancerUIDs,
		kubernetesIDs:    desired.KubernetesIDs,
		tags:             tags,
	}

	if existing != nil && existing.equal(&want) {
		log.Infof("firewall %s %s rule %s/%s already up to date", firewallName, dir, protocol, ports)
		return firewall, OutcomeNoop, nil
	}

	if dir == Inbound {
		rule := godo.InboundRule{Protocol: protocol, PortRange: ports, Sources: want.toSources()}
		if idx >= 0 {
			inbound[idx] = rule
		} else {
			inbound = append(inbound, rule)
		}
	} else {
		rule := godo.OutboundRule{Protocol: protocol, PortRange: ports, Destinations: want.toDestinations()}
		if idx >= 0 {
			outbound[idx] = rule
		} else {
			outbound = append(outbound, rule)
		}
	}

	if idx >= 0 {
		log.Infof("will replace %s rule %s/%s on firewall %s", dir, protocol, ports, firewallName)
	} else {
		log.Infof("will insert %s rule %s/%s on firewall %s", dir, protocol, ports, firewallName)
	}
	if r.DryRun {
		log.Infof("DRY RUN: would submit %d inbound and %d outbound rules to firewall %s", len(inbound), len(outbound), firewallName)
		return firewall, OutcomeReplaced, nil
	}

	updated, err := r.Firewalls.ReplaceRules(ctx, firewall, inbound, outbound)
	if err != nil {
		return nil, OutcomeNoop, err
	}
	log.Infof("firewall %s updated", firewallName)
	return updated, OutcomeReplaced, nil
}

// ruleTarget is a direction-neutral view of godo.Sources / godo.Destinations.
type ruleTarget struct {
	addresses        []string
	dropletIDs       []int
	loadBalancerUIDs []string
	kubernetesIDs    []string
	tags             []string
}

func fromSources(s *godo.Sources) *ruleTarget {
	if s == nil {
		return &ruleTarget{}
	}
	return &ruleTarget{
		addresses:        s.Addresses,
		dropletIDs:       s.DropletIDs,
		loadBalancerUIDs: s.LoadBalancerUIDs,
		kubernetesIDs:    s.KubernetesIDs,
		tags:             s.Tags,
	}
}

func fromDestinations(d *godo.Destinations) *ruleTarget {
	if d == nil {
		return &ruleTarget{}
	}
	return &ruleTarget{
		addresses:        d.Addresses,
		dropletIDs:       d.DropletIDs,
		loadBalancerUIDs: d.LoadBalancerUIDs,
		kubernetesIDs:    d.KubernetesIDs,
		tags:             d.Tags,
	}
}

func (t *ruleTarget) toSources() *godo.Sources {
	return &godo.Sources{
		Addresses:        t.addresses,
		DropletIDs:       t.dropletIDs,
		LoadBalancerUIDs: t.loadBalancerUIDs,
		KubernetesIDs:    t.kubernetesIDs,
		Tags:             t.tags,
	}
}

func (t *ruleTarget) toDestinations() *godo.Destinations {
	return &godo.Destinations{
		Addresses:        t.addresses,
		DropletIDs:       t.dropletIDs,
		LoadBalancerUIDs: t.loadBalancerUIDs,
		KubernetesIDs:    t.kubernetesIDs,
		Tags:             t.tags,
	}
}

// equal compares two targets as sets on every dimension.
func (t *ruleTarget) equal(other *ruleTarget) bool {
	ta, err := addrset.Parse(t.addresses)
	if err != nil {
		return false
	}
	oa, err := addrset.Parse(other.addresses)
	if err != nil {
		return false
	}
	return ta.Equal(oa) &&
		setEqual(t.dropletIDs, other.dropletIDs) &&
		setEqual(t.loadBalancerUIDs, other.loadBalancerUIDs) &&
		setEqual(t.kubernetesIDs, other.kubernetesIDs) &&
		setEqual(t.tags, other.tags)
}

func setEqual[T int | string](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// Describe renders the rule key for error context.
func Describe(dir Direction, protocol, ports string) string {
	return fmt.Sprintf("%s %s/%s", dir, protocol, ports)
}
