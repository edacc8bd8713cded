// Package cmd wires the CLI: it resolves the host's public IP, builds the
// desired state, and hands off to the reconcilers.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clieb/do-dyndns/pkg/digitalocean"
	"github.com/clieb/do-dyndns/pkg/ipresolver"
	"github.com/clieb/do-dyndns/pkg/metrics"
)

var (
	token      string
	literalIP  string
	useLocal   bool
	dryRun     bool
	ipService  string
	interval   time.Duration
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:           "do-dyndns",
	Short:         "Keep DigitalOcean DNS records and firewall rules pointed at this host's public IP",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&token, "token", "t", "", "DigitalOcean API token (defaults to DIGITALOCEAN_TOKEN)")
	pf.StringVar(&literalIP, "ip", "", "use this IP address instead of resolving one")
	pf.BoolVarP(&useLocal, "local", "l", false, "use the local address the route table selects for internet traffic")
	pf.BoolVarP(&dryRun, "dry-run", "n", false, "do everything except issue writes")
	pf.StringVar(&ipService, "ip-service", "ipify", "public IP echo service to query (ipify or icanhazip)")
	pf.DurationVar(&interval, "interval", 0, "re-run on this interval and serve health/metrics endpoints; 0 runs once")
	pf.StringVar(&listenAddr, "listen", ":8080", "health/metrics listen address in interval mode")
	rootCmd.MarkFlagsMutuallyExclusive("ip", "local")

	rootCmd.AddCommand(dnsCmd)
	rootCmd.AddCommand(firewallCmd)
}

// Execute runs the CLI. Exit code 0 covers success including no-op runs;
// any fatal error exits non-zero.
func Execute() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// newProviderClient builds the authenticated API client from the token flag
// or environment. The credential is required for every subcommand.
func newProviderClient() (*digitalocean.Client, error) {
	apiToken := token
	if apiToken == "" {
		// DIGITAL_OCEAN_TOKEN is the name earlier deployments used.
		for _, name := range []string{"DIGITALOCEAN_TOKEN", "DIGITAL_OCEAN_TOKEN"} {
			if v := os.Getenv(name); v != "" {
				apiToken = v
				break
			}
		}
	}
	if apiToken == "" {
		return nil, errors.New("no API token: pass --token or set DIGITALOCEAN_TOKEN")
	}
	return digitalocean.NewClient(apiToken), nil
}

// buildResolvers maps each requested family to the resolver the flags select.
// With --ip only the literal address's own family gets a resolver.
func buildResolvers(families []ipresolver.Family) (map[ipresolver.Family]ipresolver.Resolver, error) {
	resolvers := make(map[ipresolver.Family]ipresolver.Resolver, len(families))

	if literalIP != "" {
		addr, err := netip.ParseAddr(literalIP)
		if err != nil {
			return nil, fmt.Errorf("invalid --ip value %q: %w", literalIP, err)
		}
		log.Infof("using user-provided IP address: %s", addr)
		for _, family := range families {
			if family.Matches(addr) {
				resolvers[family] = ipresolver.Literal(addr)
			}
		}
		if len(resolvers) == 0 {
			return nil, fmt.Errorf("--ip %s does not match any requested address family", addr)
		}
		return resolvers, nil
	}

	for _, family := range families {
		if useLocal {
			resolvers[family] = &ipresolver.LocalResolver{Family: family}
			continue
		}
		switch ipService {
		case "ipify":
			resolvers[family] = ipresolver.Ipify(family)
		case "icanhazip":
			resolvers[family] = ipresolver.ICanHazIP(family)
		default:
			return nil, fmt.Errorf("unknown --ip-service %q", ipService)
		}
	}
	return resolvers, nil
}

// resolveAddrs produces the host's current address for each requested
// family. A family without connectivity is skipped; it is fatal only when
// nothing resolves.
func resolveAddrs(ctx context.Context, families []ipresolver.Family) ([]netip.Addr, error) {
	resolvers, err := buildResolvers(families)
	if err != nil {
		return nil, err
	}
	addrs, err := ipresolver.ResolveFamilies(ctx, resolvers, families, metrics.IncrementResolver)
	if err != nil {
		return nil, err
	}
	log.Infof("will publish IP address(es): %v", addrs)
	return addrs, nil
}

// pickFamily returns the resolved address belonging to the family, if any.
func pickFamily(addrs []netip.Addr, family ipresolver.Family) (netip.Addr, bool) {
	for _, addr := range addrs {
		if family.Matches(addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}
