package service

import (
	"strings"

	"github.com/smallbiznis/mysteryart/internal/config"
	tierdomain "github.com/smallbiznis/mysteryart/internal/tier/domain"
)

// Catalog is an immutable in-memory tier index.
type Catalog struct {
	order []string
	tiers map[string]tierdomain.Tier
}

func NewCatalog(defs []config.TierDefinition) (*Catalog, error) {
	if err := config.ValidateTierDefinitions(defs); err != nil {
		return nil, err
	}

	c := &Catalog{
		order: make([]string, 0, len(defs)),
		tiers: make(map[string]tierdomain.Tier, len(defs)),
	}
	for _, def := range defs {
		id := strings.TrimSpace(def.ID)
		features := make([]string, len(def.Features))
		copy(features, def.Features)
		c.order = append(c.order, id)
		c.tiers[id] = tierdomain.Tier{
			ID:          id,
			PriceCents:  def.PriceCents,
			Title:       strings.TrimSpace(def.Title),
			Description: strings.TrimSpace(def.Description),
			Features:    features,
		}
	}
	return c, nil
}

// Provide loads the catalog once at startup.
func Provide(cfg config.Config) (tierdomain.Catalog, error) {
	defs, err := config.LoadTierDefinitions(cfg)
	if err != nil {
		return nil, err
	}
	return NewCatalog(defs)
}

func (c *Catalog) Lookup(tierID string) (tierdomain.Tier, error) {
	tier, ok := c.tiers[strings.TrimSpace(tierID)]
	if !ok {
		return tierdomain.Tier{}, tierdomain.ErrNotFound
	}
	return cloneTier(tier), nil
}

func (c *Catalog) List() []tierdomain.Tier {
	out := make([]tierdomain.Tier, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, cloneTier(c.tiers[id]))
	}
	return out
}

func cloneTier(t tierdomain.Tier) tierdomain.Tier {
	features := make([]string, len(t.Features))
	copy(features, t.Features)
	t.Features = features
	return t
}
