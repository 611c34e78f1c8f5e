package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
)

// selectionRand is seeded from the order id and a reroll count. Reroll 0 is
// the order's first choice.
func selectionRand(orderID string, reroll int) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(orderID))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15^uint64(reroll)))
}

// selectionReroll keeps the first choice unless the previous attempt could
// not get an image out of the source; then every attempt moves on.
func selectionReroll(record *fulfillmentdomain.Record) int {
	if record.FailureReason != fulfillmentdomain.FailureSourceUnavailable || record.Attempts < 2 {
		return 0
	}
	return record.Attempts - 1
}

func (p *Pipeline) selectImage(ctx context.Context, record *fulfillmentdomain.Record) (fulfillmentdomain.Image, error) {
	maxPages := p.source.MaxPages()
	if maxPages <= 0 {
		maxPages = 1
	}

	reroll := selectionReroll(record)
	rng := selectionRand(record.OrderID, 0)
	page := 1 + (rng.IntN(maxPages)+reroll)%maxPages
	if reroll > 0 {
		rng = selectionRand(record.OrderID, reroll)
	}

	result, err := p.source.Search(ctx, page)
	if err != nil {
		return fulfillmentdomain.Image{}, fmt.Errorf("search page %d: %w", page, err)
	}
	if result == nil || len(result.Images) == 0 {
		return fulfillmentdomain.Image{}, fmt.Errorf("search page %d returned no images", page)
	}

	image := result.Images[rng.IntN(len(result.Images))]
	if image.ID == "" || image.URL == "" {
		return fulfillmentdomain.Image{}, fmt.Errorf("search page %d returned an image without id or url", page)
	}
	return image, nil
}
