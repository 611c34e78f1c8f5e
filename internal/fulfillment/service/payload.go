package service

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
)

const archiveMimeType = "application/zip"

// FormatCents renders integer minor units as a fixed two-decimal string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// BuildPayload assembles the sink payload. archive may be nil when resuming
// a record that was packaged by an earlier attempt.
func BuildPayload(record *fulfillmentdomain.Record, tierTitle string, archive []byte, now time.Time) *fulfillmentdomain.Payload {
	payload := &fulfillmentdomain.Payload{
		OrderID:       record.OrderID,
		Tier:          record.TierID,
		TierTitle:     tierTitle,
		Price:         FormatCents(record.PriceCents),
		Tip:           FormatCents(record.TipCents),
		Total:         FormatCents(record.TotalCents()),
		AmountPaid:    FormatCents(record.AmountPaidCents),
		Currency:      strings.ToUpper(record.Currency),
		Email:         record.BuyerEmail,
		CustomerEmail: record.BuyerEmail,
		Timestamp:     now.UTC().Format(time.RFC3339),
		Attempt:       record.Attempts,
		ImageFile: fulfillmentdomain.ImageFile{
			URL:          record.Artifact.SourceURL,
			Filename:     record.Artifact.EntryName,
			Alt:          record.Artifact.AltText,
			Photographer: record.Artifact.Photographer,
			SourceID:     record.Artifact.SourceID,
			PageURL:      record.Artifact.PageURL,
		},
	}
	if len(archive) > 0 {
		payload.Archive = &fulfillmentdomain.ArchiveAttachment{
			Filename: record.Artifact.PackagedName,
			MimeType: archiveMimeType,
			Size:     len(archive),
			Base64:   base64.StdEncoding.EncodeToString(archive),
		}
	}
	return payload
}
