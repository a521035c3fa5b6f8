package gateway

import (
	"context"
	"strings"

	"github.com/tournevent/cttgateway/pkg/shipper"
)

// Attachment is a named file handed back to the host.
type Attachment struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// Label fetches the label of a tracking code with the account label settings.
// A shipment without label yields an empty slice, not an error.
func (g *Gateway) Label(ctx context.Context, accountID, trackingCode string) ([]Attachment, error) {
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode == "" {
		return []Attachment{}, nil
	}

	account, adapter, err := g.adapter(accountID)
	if err != nil {
		return nil, err
	}

	var attachments []Attachment
	err = g.observe(ctx, "label", account, func(ctx context.Context) error {
		var err error
		attachments, err = g.fetchLabel(ctx, account, adapter, trackingCode)
		return err
	})
	return attachments, err
}

func (g *Gateway) fetchLabel(ctx context.Context, account *shipper.CarrierAccount, adapter shipper.Shipper, code string) ([]Attachment, error) {
	spec := account.LabelSpec()
	docs, err := adapter.GetLabel(ctx, code, spec)
	if err != nil {
		return nil, err
	}
	format := spec.Format
	if account.Protocol == shipper.ProtocolREST {
		// the REST labelling endpoint only renders PDF
		format = shipper.DocumentPDF
	}
	return NormalizeLabel(code, format, docs), nil
}

// NormalizeLabel reduces a document list to exactly one attachment named
// ctt_label_{code}.{ext}, or to an empty slice when no document has content.
func NormalizeLabel(code string, format shipper.DocumentFormat, docs []shipper.Document) []Attachment {
	for _, d := range docs {
		if len(d.Content) == 0 {
			continue
		}
		return []Attachment{{
			Filename: "ctt_label_" + code + "." + format.Extension(),
			Content:  d.Content,
		}}
	}
	return []Attachment{}
}
