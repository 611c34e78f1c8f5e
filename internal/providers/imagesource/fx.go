package imagesource

import (
	"github.com/smallbiznis/mysteryart/internal/cache"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.imagesource",
	fx.Provide(NewPexels),
	fx.Provide(provideImageSource),
)

func provideImageSource(cfg config.Config, clk clock.Clock, p *Pexels) fulfillmentdomain.ImageSource {
	if cfg.ImageSource.SearchCacheTTL <= 0 {
		return p
	}
	return cache.NewImageSource(p, cfg.ImageSource.SearchCacheTTL, clk)
}
