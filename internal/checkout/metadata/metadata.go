// Package metadata encodes an OrderIntent into the string map the payment
// provider echoes back on confirmation events, and decodes it again.
package metadata

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
)

const (
	KeyOrderID           = "order_id"
	KeyTierID            = "tier_id"
	KeyPriceCents        = "price_cents"
	KeyTipCents          = "tip_cents"
	KeyBuyerEmail        = "buyer_email"
	KeyArtifactSelection = "artifact_selection"
	KeyBundle            = "mystery_bundle"

	SelectionRandom = "random"
)

var (
	ErrMissingOrderID  = errors.New("metadata_missing_order_id")
	ErrInvalidMetadata = errors.New("metadata_invalid")
)

// Encode returns the provider metadata for intent. Compact mode stores the
// intent as a single snappy-compressed bundle next to the order id, for
// providers that cap the number or size of metadata keys.
func Encode(intent checkoutdomain.OrderIntent, compact bool) (map[string]string, error) {
	if compact {
		raw, err := json.Marshal(intent)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			KeyOrderID: intent.OrderID,
			KeyBundle:  base64.RawURLEncoding.EncodeToString(snappy.Encode(nil, raw)),
		}, nil
	}

	return map[string]string{
		KeyOrderID:           intent.OrderID,
		KeyTierID:            intent.TierID,
		KeyPriceCents:        strconv.FormatInt(intent.PriceCents, 10),
		KeyTipCents:          strconv.FormatInt(intent.TipCents, 10),
		KeyBuyerEmail:        intent.BuyerEmail,
		KeyArtifactSelection: SelectionRandom,
	}, nil
}

// Decode rebuilds the OrderIntent from echoed metadata.
func Decode(md map[string]string) (checkoutdomain.OrderIntent, error) {
	orderID := strings.TrimSpace(md[KeyOrderID])
	if orderID == "" {
		return checkoutdomain.OrderIntent{}, ErrMissingOrderID
	}

	if bundle := strings.TrimSpace(md[KeyBundle]); bundle != "" {
		intent, err := decodeBundle(bundle)
		if err != nil {
			return checkoutdomain.OrderIntent{}, err
		}
		if intent.OrderID != orderID {
			return checkoutdomain.OrderIntent{}, fmt.Errorf("%w: bundle order id mismatch", ErrInvalidMetadata)
		}
		return intent, validate(intent)
	}

	price, err := parseCents(md[KeyPriceCents])
	if err != nil {
		return checkoutdomain.OrderIntent{}, fmt.Errorf("%w: %s", ErrInvalidMetadata, KeyPriceCents)
	}
	tip, err := parseCents(md[KeyTipCents])
	if err != nil {
		return checkoutdomain.OrderIntent{}, fmt.Errorf("%w: %s", ErrInvalidMetadata, KeyTipCents)
	}

	intent := checkoutdomain.OrderIntent{
		OrderID:    orderID,
		TierID:     strings.TrimSpace(md[KeyTierID]),
		PriceCents: price,
		TipCents:   tip,
		BuyerEmail: strings.TrimSpace(md[KeyBuyerEmail]),
	}
	return intent, validate(intent)
}

func decodeBundle(bundle string) (checkoutdomain.OrderIntent, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(bundle)
	if err != nil {
		return checkoutdomain.OrderIntent{}, fmt.Errorf("%w: bundle encoding", ErrInvalidMetadata)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return checkoutdomain.OrderIntent{}, fmt.Errorf("%w: bundle compression", ErrInvalidMetadata)
	}
	var intent checkoutdomain.OrderIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return checkoutdomain.OrderIntent{}, fmt.Errorf("%w: bundle payload", ErrInvalidMetadata)
	}
	return intent, nil
}

func validate(intent checkoutdomain.OrderIntent) error {
	if intent.TierID == "" {
		return fmt.Errorf("%w: %s", ErrInvalidMetadata, KeyTierID)
	}
	if intent.PriceCents <= 0 || intent.TipCents < 0 {
		return fmt.Errorf("%w: amounts", ErrInvalidMetadata)
	}
	return nil
}

func parseCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
