package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clieb/do-dyndns/pkg/ipresolver"
	"github.com/clieb/do-dyndns/pkg/metrics"
	"github.com/clieb/do-dyndns/pkg/reconcile"
)

var (
	inboundFlag  bool
	outboundFlag bool
	staticCIDRs  []string
	dropletNames []string
	lbNames      []string
	clusterNames []string
)

var firewallCmd = &cobra.Command{
	Use:   "firewall <name> <port> <protocol>",
	Short: "Sync one firewall rule's sources or destinations with the host's public IP",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithInterval(cmd.Context(), func(ctx context.Context) error {
			return runFirewall(ctx, args[0], args[1], args[2])
		})
	},
}

func init() {
	f := firewallCmd.Flags()
	f.BoolVar(&inboundFlag, "inbound", false, "update the inbound rule for the port")
	f.BoolVar(&outboundFlag, "outbound", false, "update the outbound rule for the port")
	f.StringSliceVar(&staticCIDRs, "addresses", nil, "IP addresses and/or CIDRs to allow, comma separated")
	f.StringSliceVar(&dropletNames, "droplets", nil, "droplet names to allow, comma separated")
	f.StringSliceVar(&lbNames, "load-balancers", nil, "load balancer names to allow, comma separated")
	f.StringSliceVar(&clusterNames, "kubernetes", nil, "kubernetes cluster names to allow, comma separated")
	firewallCmd.MarkFlagsOneRequired("inbound", "outbound")
	firewallCmd.MarkFlagsMutuallyExclusive("inbound", "outbound")
}

// rulePorts validates the protocol and maps the CLI port spelling onto the
// API's. The API spells "all ports" as "0", and ICMP rules always carry "0".
func rulePorts(protocol, port string) (string, error) {
	switch protocol {
	case "tcp", "udp", "icmp":
	default:
		return "", fmt.Errorf("invalid protocol %q: must be tcp, udp or icmp", protocol)
	}
	if port == "all" || protocol == "icmp" {
		return "0", nil
	}
	return port, nil
}

func runFirewall(ctx context.Context, name, port, protocol string) error {
	direction := reconcile.Inbound
	if outboundFlag {
		direction = reconcile.Outbound
	}

	ports, err := rulePorts(protocol, port)
	if err != nil {
		return err
	}

	addrs, err := resolveAddrs(ctx, []ipresolver.Family{ipresolver.IPv4, ipresolver.IPv6})
	if err != nil {
		return err
	}
	client, err := newProviderClient()
	if err != nil {
		return err
	}

	target, err := reconcile.BuildRuleTarget(ctx, client, addrs, reconcile.TargetSpec{
		StaticAddresses: staticCIDRs,
		Droplets:        dropletNames,
		LoadBalancers:   lbNames,
		Kubernetes:      clusterNames,
	})
	if err != nil {
		return err
	}

	reconciler := &reconcile.FirewallReconciler{Firewalls: client, DryRun: dryRun}
	_, outcome, err := reconciler.Reconcile(ctx, name, direction, protocol, ports, target)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("firewall", "error").Inc()
		return fmt.Errorf("firewall %s rule %s: %w", name, reconcile.Describe(direction, protocol, ports), err)
	}
	metrics.ReconcileRuns.WithLabelValues("firewall", outcome.String()).Inc()
	if outcome != reconcile.OutcomeNoop {
		metrics.ReconcileWrites.WithLabelValues("firewall", outcome.String()).Inc()
	}
	return nil
}
