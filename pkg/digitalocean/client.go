// Package digitalocean is a thin binding over the godo SDK exposing the
// read/write primitives the reconcilers need. All calls are authenticated
// with a bearer token and bounded by a request timeout; auth failures (401,
// 403) surface as errors and are never retried.
package digitalocean

import (
	"context"
	"errors"
	"time"

	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"
)

const requestTimeout = 30 * time.Second

var (
	// ErrDomainNotFound means the account does not control the domain.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrFirewallNotFound means no firewall with the given name exists.
	ErrFirewallNotFound = errors.New("firewall not found")
	// ErrAmbiguousRecord means more than one record matched a name and type
	// that should identify at most one. Mutating an arbitrary one of them
	// could change the wrong record, so the run aborts instead.
	ErrAmbiguousRecord = errors.New("multiple records match name and type")
)

// Client wraps a godo client. It satisfies DNSService, FirewallService and
// InventoryService.
type Client struct {
	do *godo.Client
}

// NewClient builds an authenticated client from an API token.
func NewClient(token string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = requestTimeout
	return &Client{do: godo.NewClient(httpClient)}
}

// NewWithGodo wraps an existing godo client. Used by tests to point the
// client at a fake API server.
func NewWithGodo(do *godo.Client) *Client {
	return &Client{do: do}
}
