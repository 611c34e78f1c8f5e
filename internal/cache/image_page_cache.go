package cache

import (
	"context"
	"time"

	"github.com/smallbiznis/mysteryart/internal/clock"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
)

// ImageSource keeps recent search pages so redeliveries and retries of the
// same order do not spend image API quota. Downloads are never cached.
type ImageSource struct {
	next  fulfillmentdomain.ImageSource
	pages Cache[int, *fulfillmentdomain.ImagePage]
	ttl   time.Duration
}

func NewImageSource(next fulfillmentdomain.ImageSource, ttl time.Duration, clk clock.Clock) *ImageSource {
	return &ImageSource{
		next:  next,
		pages: NewTTLCache[int, *fulfillmentdomain.ImagePage](clk),
		ttl:   ttl,
	}
}

func (s *ImageSource) MaxPages() int {
	return s.next.MaxPages()
}

func (s *ImageSource) Search(ctx context.Context, page int) (*fulfillmentdomain.ImagePage, error) {
	if cached, ok := s.pages.Get(page); ok {
		return clonePage(cached), nil
	}

	result, err := s.next.Search(ctx, page)
	if err != nil {
		return nil, err
	}
	// Empty pages are not cached; the source may fill them later.
	if result != nil && len(result.Images) > 0 {
		s.pages.Set(page, clonePage(result), s.ttl)
	}
	return result, nil
}

func (s *ImageSource) Download(ctx context.Context, url string) ([]byte, error) {
	return s.next.Download(ctx, url)
}

func clonePage(p *fulfillmentdomain.ImagePage) *fulfillmentdomain.ImagePage {
	out := *p
	out.Images = append([]fulfillmentdomain.Image(nil), p.Images...)
	return &out
}

var _ fulfillmentdomain.ImageSource = (*ImageSource)(nil)
