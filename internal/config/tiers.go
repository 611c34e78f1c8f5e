package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// TierDefinition is the on-disk shape of one purchasable tier.
type TierDefinition struct {
	ID          string   `mapstructure:"id"`
	PriceCents  int64    `mapstructure:"price_cents"`
	Title       string   `mapstructure:"title"`
	Description string   `mapstructure:"description"`
	Features    []string `mapstructure:"features"`
}

func DefaultTierDefinitions() []TierDefinition {
	return []TierDefinition{
		{
			ID:          "discovery",
			PriceCents:  1000,
			Title:       "Discovery Collection",
			Description: "Perfect for art enthusiasts starting their collection",
			Features:    []string{"Digital artwork print", "Artist information card", "Certificate of authenticity", "Standard shipping"},
		},
		{
			ID:          "explorer",
			PriceCents:  2000,
			Title:       "Explorer Collection",
			Description: "Curated pieces for the adventurous collector",
			Features:    []string{"High-resolution digital print", "Artist biography", "Certificate of authenticity", "Priority shipping"},
		},
		{
			ID:          "curator",
			PriceCents:  4000,
			Title:       "Curator Collection",
			Description: "Hand-picked works with a story behind every frame",
			Features:    []string{"Museum-quality digital print", "Artist interview notes", "Numbered certificate", "Express shipping"},
		},
		{
			ID:          "collector",
			PriceCents:  8000,
			Title:       "Collector Collection",
			Description: "Rare finds for the serious collector",
			Features:    []string{"Limited edition print", "Signed artist card", "Numbered certificate", "Express shipping", "Collector newsletter"},
		},
		{
			ID:          "patron",
			PriceCents:  10000,
			Title:       "Patron Collection",
			Description: "Support emerging artists with a premium mystery piece",
			Features:    []string{"Premium limited edition print", "Personal note from the artist", "Numbered certificate", "Express shipping", "Early access to drops"},
		},
		{
			ID:          "benefactor",
			PriceCents:  20000,
			Title:       "Benefactor Collection",
			Description: "Our most exclusive mystery artwork experience",
			Features:    []string{"One-of-a-kind print", "Video message from the artist", "Hand-signed certificate", "White-glove shipping", "Lifetime early access"},
		},
	}
}

// LoadTierDefinitions reads the tier catalog from tiers.yml when present and
// falls back to the built-in catalog otherwise. Tiers are immutable once the
// process starts, so the file is read exactly once.
func LoadTierDefinitions(cfg Config) ([]TierDefinition, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.TierCatalogPath); path != "" {
		v.SetConfigFile(filepath.Clean(path))
	} else {
		v.SetConfigName("tiers")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/mysteryart")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read tier catalog: %w", err)
		}
		return DefaultTierDefinitions(), nil
	}

	var defs []TierDefinition
	if err := v.UnmarshalKey("tiers", &defs); err != nil {
		return nil, fmt.Errorf("decode tier catalog: %w", err)
	}
	if err := ValidateTierDefinitions(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func ValidateTierDefinitions(defs []TierDefinition) error {
	if len(defs) == 0 {
		return errors.New("tiers cannot be empty")
	}
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			return errors.New("tier id is required")
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate tier id %q", id)
		}
		seen[id] = struct{}{}
		if def.PriceCents <= 0 {
			return fmt.Errorf("tier %q price must be positive", id)
		}
	}
	return nil
}
