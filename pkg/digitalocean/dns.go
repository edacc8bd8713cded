package digitalocean

import (
	"context"
	"fmt"
	"net/http"

	"github.com/digitalocean/godo"
)

// DNSService exposes the record operations the DNS reconciler needs.
type DNSService interface {
	// GetDomain returns the domain, or ErrDomainNotFound.
	GetDomain(ctx context.Context, name string) (*godo.Domain, error)
	// GetRecord returns the single record matching name and type, nil when
	// absent, or ErrAmbiguousRecord when more than one matches.
	GetRecord(ctx context.Context, domain, name, rtype string) (*godo.DomainRecord, error)
	CreateRecord(ctx context.Context, domain string, req *godo.DomainRecordEditRequest) (*godo.DomainRecord, error)
	UpdateRecord(ctx context.Context, domain string, id int, req *godo.DomainRecordEditRequest) (*godo.DomainRecord, error)
}

func (c *Client) GetDomain(ctx context.Context, name string) (*godo.Domain, error) {
	domain, resp, err := c.do.Domains.Get(ctx, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, name)
		}
		return nil, fmt.Errorf("get domain %s: %w", name, err)
	}
	return domain, nil
}

func (c *Client) GetRecord(ctx context.Context, domain, name, rtype string) (*godo.DomainRecord, error) {
	// The filtered records endpoint matches on the fully qualified name;
	// "@" addresses the zone apex.
	fqdn := name + "." + domain
	if name == "@" {
		fqdn = domain
	}
	opt := &godo.ListOptions{PerPage: 200}
	var matches []godo.DomainRecord
	for {
		records, resp, err := c.do.Domains.RecordsByTypeAndName(ctx, domain, rtype, fqdn, opt)
		if err != nil {
			return nil, fmt.Errorf("list %s records for %s.%s: %w", rtype, name, domain, err)
		}
		matches = append(matches, records...)
		page, done, err := nextPage(resp)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		opt.Page = page
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %d %s records named %s.%s", ErrAmbiguousRecord, len(matches), rtype, name, domain)
	}
}

func (c *Client) CreateRecord(ctx context.Context, domain string, req *godo.DomainRecordEditRequest) (*godo.DomainRecord, error) {
	record, _, err := c.do.Domains.CreateRecord(ctx, domain, req)
	if err != nil {
		return nil, fmt.Errorf("create %s record %s.%s: %w", req.Type, req.Name, domain, err)
	}
	return record, nil
}

func (c *Client) UpdateRecord(ctx context.Context, domain string, id int, req *godo.DomainRecordEditRequest) (*godo.DomainRecord, error) {
	record, _, err := c.do.Domains.EditRecord(ctx, domain, id, req)
	if err != nil {
		return nil, fmt.Errorf("update record %d in %s: %w", id, domain, err)
	}
	return record, nil
}

// nextPage extracts the follow-up page number from a paginated response.
// The second return is true on the last page.
func nextPage(resp *godo.Response) (int, bool, error) {
	if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
		return 0, true, nil
	}
	page, err := resp.Links.CurrentPage()
	if err != nil {
		return 0, false, fmt.Errorf("parse pagination links: %w", err)
	}
	return page + 1, false, nil
}
