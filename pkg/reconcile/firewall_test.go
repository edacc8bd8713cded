package reconcile

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/digitalocean/godo"
	"gotest.tools/v3/assert"
)

// fakeFirewalls applies ReplaceRules to its stored firewall so repeated runs
// see the updated state.
type fakeFirewalls struct {
	firewall *godo.Firewall
	getErr   error
	replaces int
}

func (f *fakeFirewalls) GetFirewall(ctx context.Context, name string) (*godo.Firewall, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	fw := *f.firewall
	return &fw, nil
}

func (f *fakeFirewalls) ReplaceRules(ctx context.Context, firewall *godo.Firewall, inbound []godo.InboundRule, outbound []godo.OutboundRule) (*godo.Firewall, error) {
	f.replaces++
	f.firewall.InboundRules = inbound
	f.firewall.OutboundRules = outbound
	fw := *f.firewall
	return &fw, nil
}

func sshFirewall() *godo.Firewall {
	return &godo.Firewall{
		ID:   "fw-1",
		Name: "home",
		InboundRules: []godo.InboundRule{
			{
				Protocol:  "tcp",
				PortRange: "22",
				Sources:   &godo.Sources{Addresses: []string{"198.51.100.1"}, Tags: []string{"trusted"}},
			},
			{
				Protocol:  "tcp",
				PortRange: "80",
				Sources:   &godo.Sources{Addresses: []string{"0.0.0.0/0", "::/0"}},
			},
			{
				Protocol:  "udp",
				PortRange: "53",
				Sources:   &godo.Sources{Addresses: []string{"10.0.0.0/16"}},
			},
		},
		OutboundRules: []godo.OutboundRule{
			{
				Protocol:     "tcp",
				PortRange:    "0",
				Destinations: &godo.Destinations{Addresses: []string{"0.0.0.0/0", "::/0"}},
			},
		},
		DropletIDs: []int{42},
		Tags:       []string{"home"},
	}
}

func mustTarget(t *testing.T, entries ...string) *RuleTarget {
	t.Helper()
	target, err := BuildRuleTarget(context.Background(), nil, nil, TargetSpec{StaticAddresses: entries})
	assert.NilError(t, err)
	return target
}

func TestFirewallNoopWhenRuleMatches(t *testing.T) {
	fw := sshFirewall()
	fw.InboundRules[0].Sources = &godo.Sources{
		// scrambled order and CIDR spelling must still compare equal
		Addresses:  []string{"203.0.113.9/32", "10.0.0.0/16"},
		DropletIDs: []int{7, 3},
	}
	fakes := &fakeFirewalls{firewall: fw}
	r := &FirewallReconciler{Firewalls: fakes}

	target := mustTarget(t, "10.0.0.0/16", "203.0.113.9")
	target.DropletIDs = []int{3, 7}

	_, outcome, err := r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeNoop)
	assert.Equal(t, fakes.replaces, 0)
}

func TestFirewallReplacePreservesUnrelatedRules(t *testing.T) {
	fakes := &fakeFirewalls{firewall: sshFirewall()}
	r := &FirewallReconciler{Firewalls: fakes}

	target := mustTarget(t, "203.0.113.9")
	_, outcome, err := r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeReplaced)
	assert.Equal(t, fakes.replaces, 1)

	inbound := fakes.firewall.InboundRules
	assert.Equal(t, len(inbound), 3)
	assert.DeepEqual(t, inbound[0].Sources.Addresses, []string{"203.0.113.9"})
	// tags on the matched rule survive, so do the unrelated rules
	assert.DeepEqual(t, inbound[0].Sources.Tags, []string{"trusted"})
	assert.DeepEqual(t, inbound[1].Sources.Addresses, []string{"0.0.0.0/0", "::/0"})
	assert.DeepEqual(t, inbound[2].Sources.Addresses, []string{"10.0.0.0/16"})
	assert.Equal(t, len(fakes.firewall.OutboundRules), 1)
}

func TestFirewallInsertsAbsentRule(t *testing.T) {
	fakes := &fakeFirewalls{firewall: sshFirewall()}
	r := &FirewallReconciler{Firewalls: fakes}

	target := mustTarget(t, "203.0.113.9")
	_, outcome, err := r.Reconcile(context.Background(), "home", Inbound, "tcp", "8443", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeReplaced)
	assert.Equal(t, len(fakes.firewall.InboundRules), 4)
	added := fakes.firewall.InboundRules[3]
	assert.Equal(t, added.PortRange, "8443")
	assert.DeepEqual(t, added.Sources.Addresses, []string{"203.0.113.9"})
}

func TestFirewallOutboundRule(t *testing.T) {
	fakes := &fakeFirewalls{firewall: sshFirewall()}
	r := &FirewallReconciler{Firewalls: fakes}

	target := mustTarget(t, "192.0.2.0/24")
	_, outcome, err := r.Reconcile(context.Background(), "home", Outbound, "tcp", "0", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeReplaced)
	assert.DeepEqual(t, fakes.firewall.OutboundRules[0].Destinations.Addresses, []string{"192.0.2.0/24"})
	// inbound side untouched
	assert.Equal(t, len(fakes.firewall.InboundRules), 3)
}

func TestFirewallFetchFailureAbortsWithoutWrite(t *testing.T) {
	fakes := &fakeFirewalls{getErr: errors.New("api timeout")}
	r := &FirewallReconciler{Firewalls: fakes}

	_, _, err := r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", mustTarget(t, "203.0.113.9"))
	assert.ErrorContains(t, err, "api timeout")
	assert.Equal(t, fakes.replaces, 0)
}

func TestFirewallSecondRunIsNoop(t *testing.T) {
	fakes := &fakeFirewalls{firewall: sshFirewall()}
	r := &FirewallReconciler{Firewalls: fakes}
	target := mustTarget(t, "10.0.0.0/16", "203.0.113.9")

	_, outcome, err := r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeReplaced)

	_, outcome, err = r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeNoop)
	assert.Equal(t, fakes.replaces, 1)
}

func TestFirewallDryRunIssuesNoWrites(t *testing.T) {
	fakes := &fakeFirewalls{firewall: sshFirewall()}
	r := &FirewallReconciler{Firewalls: fakes, DryRun: true}

	_, outcome, err := r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", mustTarget(t, "203.0.113.9"))
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeReplaced)
	assert.Equal(t, fakes.replaces, 0)
}

func TestFirewallDesiredSetScenario(t *testing.T) {
	// static 10.0.0.0/16 + fd7a::/64, droplet at 192.0.2.5, dynamic
	// 203.0.113.9: matching rule means zero writes, one drifted entry
	// means exactly one replace with the full corrected list.
	fw := sshFirewall()
	fw.InboundRules[0].Sources = &godo.Sources{
		Addresses:  []string{"10.0.0.0/16", "fd7a::/64", "192.0.2.5", "203.0.113.9"},
		DropletIDs: []int{42},
	}
	fakes := &fakeFirewalls{firewall: fw}
	r := &FirewallReconciler{Firewalls: fakes}

	inv := &fakeInventory{droplets: []godo.Droplet{{
		ID:   42,
		Name: "my_machine",
		Networks: &godo.Networks{
			V4: []godo.NetworkV4{{IPAddress: "192.0.2.5", Type: "public"}},
		},
	}}}
	target, err := BuildRuleTarget(context.Background(), inv,
		[]netip.Addr{netip.MustParseAddr("203.0.113.9")},
		TargetSpec{StaticAddresses: []string{"10.0.0.0/16", "fd7a::/64"}, Droplets: []string{"my_machine"}})
	assert.NilError(t, err)
	assert.DeepEqual(t, target.Addresses.Strings(),
		[]string{"10.0.0.0/16", "192.0.2.5", "203.0.113.9", "fd7a::/64"})

	_, outcome, err := r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeNoop)
	assert.Equal(t, fakes.replaces, 0)

	fakes.firewall.InboundRules[0].Sources.Addresses = []string{"10.0.0.0/16", "fd7a::/64", "192.0.2.5"}
	_, outcome, err = r.Reconcile(context.Background(), "home", Inbound, "tcp", "22", target)
	assert.NilError(t, err)
	assert.Equal(t, outcome, OutcomeReplaced)
	assert.Equal(t, fakes.replaces, 1)
}
