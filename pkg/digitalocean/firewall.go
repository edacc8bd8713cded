package digitalocean

import (
	"context"
	"fmt"

	"github.com/digitalocean/godo"
)

// FirewallService exposes the firewall operations the firewall reconciler
// needs. The DigitalOcean update API replaces a firewall's entire rule list,
// so the only write primitive is a whole-list replace.
type FirewallService interface {
	// GetFirewall returns the complete definition of the named firewall,
	// or ErrFirewallNotFound.
	GetFirewall(ctx context.Context, name string) (*godo.Firewall, error)
	// ReplaceRules submits the full rule lists for both directions in one
	// update, carrying over the firewall's name, droplet assignments and
	// tags, which the update endpoint would otherwise clear.
	ReplaceRules(ctx context.Context, firewall *godo.Firewall, inbound []godo.InboundRule, outbound []godo.OutboundRule) (*godo.Firewall, error)
}

func (c *Client) GetFirewall(ctx context.Context, name string) (*godo.Firewall, error) {
	opt := &godo.ListOptions{PerPage: 200}
	for {
		firewalls, resp, err := c.do.Firewalls.List(ctx, opt)
		if err != nil {
			return nil, fmt.Errorf("list firewalls: %w", err)
		}
		for i := range firewalls {
			if firewalls[i].Name == name {
				return &firewalls[i], nil
			}
		}
		page, done, err := nextPage(resp)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, fmt.Errorf("%w: %s", ErrFirewallNotFound, name)
		}
		opt.Page = page
	}
}

func (c *Client) ReplaceRules(ctx context.Context, firewall *godo.Firewall, inbound []godo.InboundRule, outbound []godo.OutboundRule) (*godo.Firewall, error) {
	req := &godo.FirewallRequest{
		Name:          firewall.Name,
		InboundRules:  inbound,
		OutboundRules: outbound,
		DropletIDs:    firewall.DropletIDs,
		Tags:          firewall.Tags,
	}
	updated, _, err := c.do.Firewalls.Update(ctx, firewall.ID, req)
	if err != nil {
		return nil, fmt.Errorf("update firewall %s: %w", firewall.Name, err)
	}
	return updated, nil
}
