// Package addrset provides an order-insensitive set of CIDR ranges used to
// describe firewall rule sources and destinations.
package addrset

import (
	"fmt"
	"net/netip"
	"slices"
)

// Set holds IPv4 and IPv6 prefixes, deduplicated and kept in a deterministic
// order so that diffs against remote state are stable.
type Set struct {
	prefixes []netip.Prefix
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// Parse builds a set from a list of CIDR strings. Bare IP addresses are
// accepted and treated as single-host prefixes, matching what the
// DigitalOcean API returns in firewall rules. A malformed entry is an error.
func Parse(entries []string) (*Set, error) {
	s := New()
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			s.Add(prefix)
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid address or CIDR %q", entry)
		}
		s.AddAddr(addr)
	}
	return s, nil
}

// Add inserts a prefix, canonicalizing it to its masked form.
func (s *Set) Add(prefix netip.Prefix) {
	p := prefix.Masked()
	i, found := slices.BinarySearchFunc(s.prefixes, p, comparePrefixes)
	if found {
		return
	}
	s.prefixes = slices.Insert(s.prefixes, i, p)
}

// AddAddr inserts an address as a single-host prefix (/32 or /128).
func (s *Set) AddAddr(addr netip.Addr) {
	s.Add(netip.PrefixFrom(addr, addr.BitLen()))
}

// Contains reports whether the exact prefix is in the set.
func (s *Set) Contains(prefix netip.Prefix) bool {
	_, found := slices.BinarySearchFunc(s.prefixes, prefix.Masked(), comparePrefixes)
	return found
}

// Len returns the number of prefixes in the set.
func (s *Set) Len() int {
	return len(s.prefixes)
}

// Equal reports whether both sets contain the same prefixes, regardless of
// the order they were added in.
func (s *Set) Equal(other *Set) bool {
	return slices.Equal(s.prefixes, other.prefixes)
}

// Strings renders the set in its deterministic order. Single-host prefixes
// are rendered as bare addresses, which is the form the DigitalOcean API
// echoes back for them.
func (s *Set) Strings() []string {
	out := make([]string, 0, len(s.prefixes))
	for _, p := range s.prefixes {
		if p.IsSingleIP() {
			out = append(out, p.Addr().String())
		} else {
			out = append(out, p.String())
		}
	}
	return out
}

func comparePrefixes(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}
