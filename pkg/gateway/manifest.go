package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const manifestDateLayout = "20060102"

// ManifestQuery selects the manifest reports to pull.
type ManifestQuery struct {
	From   time.Time
	To     time.Time
	Format shipper.ManifestFormat
	// AccountIDs restricts the pull. Empty gathers every legacy account.
	AccountIDs []string
}

// ManifestSet holds the reports of one distinct account.
type ManifestSet struct {
	AccountID   string       `json:"account_id"`
	Attachments []Attachment `json:"attachments"`
}

// PullManifests fetches the manifest of every distinct account. Accounts
// sharing an identity are fetched once. Results follow account order.
func (g *Gateway) PullManifests(ctx context.Context, q ManifestQuery) ([]ManifestSet, error) {
	if q.Format == "" {
		q.Format = shipper.ManifestXLSX
	}
	if !q.To.IsZero() && q.To.Before(q.From) {
		return nil, shipper.NewValidationError("INVALID_RANGE", "manifest range ends before it starts")
	}
	if q.To.IsZero() {
		q.To = q.From
	}

	accounts, err := g.manifestAccounts(q.AccountIDs)
	if err != nil {
		return nil, err
	}
	accounts = shipper.Distinct(accounts)

	g.logger.Info("Pulling manifests",
		zap.Int("accounts", len(accounts)),
		zap.String("format", string(q.Format)),
		zap.Time("from", q.From),
		zap.Time("to", q.To),
	)

	results := make([]ManifestSet, len(accounts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.ManifestConcurrency)
	for i, account := range accounts {
		eg.Go(func() error {
			attachments, err := g.pullManifest(ctx, account, q)
			if err != nil {
				return fmt.Errorf("manifest for account %s: %w", account.ID, err)
			}
			results[i] = ManifestSet{AccountID: account.ID, Attachments: attachments}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *Gateway) manifestAccounts(ids []string) ([]*shipper.CarrierAccount, error) {
	if len(ids) == 0 {
		var accounts []*shipper.CarrierAccount
		for _, a := range g.registry.All() {
			if a.Protocol == shipper.ProtocolSOAP {
				accounts = append(accounts, a)
			}
		}
		return accounts, nil
	}

	accounts, err := g.registry.Select(ids)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Protocol != shipper.ProtocolSOAP {
			return nil, shipper.NewUnsupportedError(a.Protocol, "manifest")
		}
	}
	return accounts, nil
}

func (g *Gateway) pullManifest(ctx context.Context, account *shipper.CarrierAccount, q ManifestQuery) ([]Attachment, error) {
	_, adapter, err := g.adapter(account.ID)
	if err != nil {
		return nil, err
	}

	var attachments []Attachment
	err = g.observe(ctx, "manifest", account, func(ctx context.Context) error {
		docs, err := adapter.Manifest(ctx, &shipper.ManifestRequest{Format: q.Format, From: q.From, To: q.To})
		if err != nil {
			return err
		}
		attachments = make([]Attachment, 0, len(docs))
		for _, d := range docs {
			attachments = append(attachments, Attachment{
				Filename: ManifestFilename(account, q.From, q.To, q.Format, len(attachments)),
				Content:  d.Content,
			})
		}
		return nil
	})
	return attachments, err
}

// ManifestFilename names the n-th report of an account:
// {customer}{contract}{agency}-{from}-{to}.{ext}, with "-n" before the
// extension for every report after the first.
func ManifestFilename(account *shipper.CarrierAccount, from, to time.Time, format shipper.ManifestFormat, n int) string {
	name := account.SOAP.Customer + account.SOAP.Contract + account.SOAP.Agency +
		"-" + from.Format(manifestDateLayout) + "-" + to.Format(manifestDateLayout)
	if n > 0 {
		name += "-" + strconv.Itoa(n)
	}
	return name + "." + format.Extension()
}
