package reconcile

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/digitalocean/godo"
	log "github.com/sirupsen/logrus"

	"github.com/clieb/do-dyndns/pkg/digitalocean"
)

// DNSReconciler brings one address record into agreement with a resolved IP.
// Each run re-reads authoritative state from the API before deciding what to
// change, so re-running with an unchanged IP issues zero writes.
type DNSReconciler struct {
	DNS    digitalocean.DNSService
	TTL    int
	DryRun bool
}

// Reconcile fetches the record identified by (domain, name, rtype), compares
// it with ip, and issues at most one create or update call.
func (r *DNSReconciler) Reconcile(ctx context.Context, domain, name, rtype string, ip netip.Addr) (*godo.DomainRecord, Outcome, error) {
	if _, err := r.DNS.GetDomain(ctx, domain); err != nil {
		return nil, OutcomeNoop, err
	}

	record, err := r.DNS.GetRecord(ctx, domain, name, rtype)
	if err != nil {
		return nil, OutcomeNoop, err
	}

	if record == nil {
		log.Infof("will create new record %s.%s (%s) -> %s", name, domain, rtype, ip)
		created, err := r.write(ctx, domain, name, rtype, ip, 0)
		if err != nil {
			return nil, OutcomeNoop, err
		}
		log.Infof("successfully created new record (%d)", created.ID)
		return created, OutcomeCreated, nil
	}

	current, err := netip.ParseAddr(record.Data)
	if err != nil {
		return nil, OutcomeNoop, fmt.Errorf("existing record %s.%s (%s) holds %q, which is not an address: %w", name, domain, rtype, record.Data, err)
	}
	if current == ip {
		log.Infof("record %s.%s (%s) already set to %s", name, domain, rtype, ip)
		return record, OutcomeNoop, nil
	}

	log.Infof("will update record %s.%s (%s) to %s", name, domain, rtype, ip)
	updated, err := r.write(ctx, domain, name, rtype, ip, record.ID)
	if err != nil {
		return nil, OutcomeNoop, err
	}
	log.Info("successfully updated record")
	return updated, OutcomeUpdated, nil
}

// write issues the create (id == 0) or update call, then checks that the API
// response reflects the requested address.
func (r *DNSReconciler) write(ctx context.Context, domain, name, rtype string, ip netip.Addr, id int) (*godo.DomainRecord, error) {
	req := &godo.DomainRecordEditRequest{
		Type: rtype,
		Name: name,
		Data: ip.String(),
		TTL:  r.TTL,
	}
	if r.DryRun {
		log.Infof("DRY RUN: would write %s record %s.%s -> %s", rtype, name, domain, ip)
		return &godo.DomainRecord{ID: id, Type: rtype, Name: name, Data: ip.String(), TTL: r.TTL}, nil
	}

	var record *godo.DomainRecord
	var err error
	if id == 0 {
		record, err = r.DNS.CreateRecord(ctx, domain, req)
	} else {
		record, err = r.DNS.UpdateRecord(ctx, domain, id, req)
	}
	if err != nil {
		return nil, err
	}
	if written, perr := netip.ParseAddr(record.Data); perr != nil || written != ip {
		return nil, fmt.Errorf("new address %s not reflected in written record %s.%s (%s)", ip, name, domain, rtype)
	}
	return record, nil
}
