package cmd

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clieb/do-dyndns/pkg/ipresolver"
	"github.com/clieb/do-dyndns/pkg/metrics"
	"github.com/clieb/do-dyndns/pkg/reconcile"
)

var (
	rtype string
	ttl   int
)

var dnsCmd = &cobra.Command{
	Use:   "dns <record> <domain>",
	Short: "Sync an A and/or AAAA record with the host's public IP",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithInterval(cmd.Context(), func(ctx context.Context) error {
			return runDNS(ctx, args[0], args[1])
		})
	},
}

func init() {
	dnsCmd.Flags().StringVar(&rtype, "rtype", "A", "record type to sync: A, AAAA or both")
	dnsCmd.Flags().IntVar(&ttl, "ttl", 60, "TTL in seconds for created or updated records")
}

// rtypeFamilies maps the --rtype flag onto the record types to reconcile and
// the address families to resolve.
func rtypeFamilies() ([]string, []ipresolver.Family, error) {
	switch rtype {
	case "A":
		return []string{"A"}, []ipresolver.Family{ipresolver.IPv4}, nil
	case "AAAA":
		return []string{"AAAA"}, []ipresolver.Family{ipresolver.IPv6}, nil
	case "both":
		return []string{"A", "AAAA"}, []ipresolver.Family{ipresolver.IPv4, ipresolver.IPv6}, nil
	default:
		return nil, nil, fmt.Errorf("invalid --rtype %q: must be A, AAAA or both", rtype)
	}
}

func runDNS(ctx context.Context, record, domain string) error {
	rtypes, families, err := rtypeFamilies()
	if err != nil {
		return err
	}
	addrs, err := resolveAddrs(ctx, families)
	if err != nil {
		return err
	}
	client, err := newProviderClient()
	if err != nil {
		return err
	}
	reconciler := &reconcile.DNSReconciler{DNS: client, TTL: ttl, DryRun: dryRun}

	// Each record type runs independently: an A failure must not stop the
	// AAAA attempt. The run fails if any of them failed.
	var errs []error
	for i, rt := range rtypes {
		addr, ok := pickFamily(addrs, families[i])
		if !ok {
			log.Infof("no %s address resolved, skipping %s record", families[i], rt)
			continue
		}
		_, outcome, err := reconciler.Reconcile(ctx, domain, record, rt, addr)
		if err != nil {
			metrics.ReconcileRuns.WithLabelValues("dns", "error").Inc()
			errs = append(errs, fmt.Errorf("%s record for %s.%s: %w", rt, record, domain, err))
			continue
		}
		metrics.ReconcileRuns.WithLabelValues("dns", outcome.String()).Inc()
		if outcome != reconcile.OutcomeNoop {
			metrics.ReconcileWrites.WithLabelValues("dns", outcome.String()).Inc()
		}
	}
	return errors.Join(errs...)
}
