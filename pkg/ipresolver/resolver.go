// Package ipresolver determines the public IP addresses of the host, one per
// address family, either by querying an external echo service or by
// inspecting the local route table.
package ipresolver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	log "github.com/sirupsen/logrus"
)

// Family selects an IP address family.
type Family string

const (
	IPv4 Family = "v4"
	IPv6 Family = "v6"
)

// Matches reports whether addr belongs to the family.
func (f Family) Matches(addr netip.Addr) bool {
	if f == IPv4 {
		return addr.Is4() || addr.Is4In6()
	}
	return addr.Is6() && !addr.Is4In6()
}

// Resolver produces the host's current address for one family.
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
	Name() string
}

// IncrementFunc is called before each resolver attempt, keyed by resolver
// name. Used to feed the metrics package without importing it here.
type IncrementFunc func(provider string)

// ErrNoAddress is returned when no requested family produced an address.
var ErrNoAddress = errors.New("no address resolved for any requested family")

// ResolveFamilies resolves one address per requested family. A family whose
// lookup fails is skipped with a log message, since dual-stack hosts often
// lack a route for one family. It is an error only when every requested
// family fails.
func ResolveFamilies(ctx context.Context, resolvers map[Family]Resolver, families []Family, increment IncrementFunc) ([]netip.Addr, error) {
	var addrs []netip.Addr
	var errs []error
	for _, family := range families {
		resolver, ok := resolvers[family]
		if !ok {
			continue
		}
		if increment != nil {
			increment(resolver.Name())
		}
		addr, err := resolver.Resolve(ctx)
		if err != nil {
			log.Infof("no %s address: %v", family, err)
			errs = append(errs, fmt.Errorf("%s: %w", family, err))
			continue
		}
		if !family.Matches(addr) {
			err = fmt.Errorf("resolver %s returned %s, which is not an %s address", resolver.Name(), addr, family)
			log.Info(err)
			errs = append(errs, err)
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoAddress, errors.Join(errs...))
	}
	return addrs, nil
}

// Literal is a resolver that returns a fixed address, used when the caller
// supplies the IP on the command line.
type Literal netip.Addr

func (l Literal) Resolve(ctx context.Context) (netip.Addr, error) {
	return netip.Addr(l), nil
}

func (l Literal) Name() string {
	return "literal"
}
