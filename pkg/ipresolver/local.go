package ipresolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// LocalResolver finds the interface address the OS route table selects for
// reaching a well-known external destination, without sending any traffic
// (UDP connect only sets the socket's destination).
//
// When multiple interfaces hold a default route the answer is whatever the
// route table returns for that single lookup. Behavior under multihoming is
// not guaranteed beyond that.
type LocalResolver struct {
	Family Family
}

func (r *LocalResolver) Name() string {
	return "local"
}

func (r *LocalResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	network, probe := "udp4", "8.8.8.8:80"
	if r.Family == IPv6 {
		network, probe = "udp6", "[2001:4860:4860::8888]:80"
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, probe)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("no %s route: %w", r.Family, err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	addr, ok := netip.AddrFromSlice(local.IP)
	if !ok {
		return netip.Addr{}, fmt.Errorf("parse local address %s", local.IP)
	}
	return addr.Unmap(), nil
}
