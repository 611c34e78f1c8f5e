package domain

import "errors"

// Tier is a fixed-price purchasable option. Prices are integer cents.
type Tier struct {
	ID          string   `json:"id"`
	PriceCents  int64    `json:"price_cents"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Features    []string `json:"features,omitempty"`
}

type Catalog interface {
	Lookup(tierID string) (Tier, error)
	List() []Tier
}

var ErrNotFound = errors.New("tier_not_found")
