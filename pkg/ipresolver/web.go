package ipresolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

const webTimeout = 15 * time.Second

// WebResolver queries an external echo endpoint that returns the caller's
// public address as plain text. IPv4 and IPv6 use distinct endpoints since a
// dual-stack host may not expose both families over the same transport.
type WebResolver struct {
	ProviderName string
	URL          string
	Client       *http.Client
}

// Ipify returns a resolver backed by api.ipify.org for the given family.
func Ipify(family Family) *WebResolver {
	url := "https://api.ipify.org"
	if family == IPv6 {
		url = "https://api6.ipify.org"
	}
	return &WebResolver{ProviderName: "ipify", URL: url}
}

// ICanHazIP returns a resolver backed by icanhazip.com for the given family.
func ICanHazIP(family Family) *WebResolver {
	url := "https://ipv4.icanhazip.com"
	if family == IPv6 {
		url = "https://ipv6.icanhazip.com"
	}
	return &WebResolver{ProviderName: "icanhazip", URL: url}
}

func (w *WebResolver) Name() string {
	return w.ProviderName
}

// Resolve performs a single bounded request against the echo endpoint. No
// retries beyond what the transport already does; a network-layer failure
// means the host has no usable route for this family.
func (w *WebResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, webTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return netip.Addr{}, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query %s: %w", w.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return netip.Addr{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("%s returned %s", w.URL, resp.Status)
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse response from %s: %w", w.URL, err)
	}
	return addr, nil
}
