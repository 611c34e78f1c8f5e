package cache

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/mysteryart/internal/clock"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, int](clk)

	c.Set("a", 1, time.Minute)
	c.Set("skip", 2, 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Get("skip")
	assert.False(t, ok)

	clk.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

type countingSource struct {
	searches  int
	downloads int
	empty     bool
}

func (s *countingSource) Search(_ context.Context, page int) (*fulfillmentdomain.ImagePage, error) {
	s.searches++
	if s.empty {
		return &fulfillmentdomain.ImagePage{Page: page}, nil
	}
	return &fulfillmentdomain.ImagePage{
		Page:   page,
		Images: []fulfillmentdomain.Image{{ID: "101", URL: "https://images.test/101.jpg"}},
	}, nil
}

func (s *countingSource) Download(context.Context, string) ([]byte, error) {
	s.downloads++
	return []byte("jpeg"), nil
}

func (s *countingSource) MaxPages() int { return 7 }

func TestImageSourceCachesSearchPages(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	next := &countingSource{}
	src := NewImageSource(next, 5*time.Minute, clk)
	ctx := context.Background()

	first, err := src.Search(ctx, 3)
	require.NoError(t, err)
	first.Images[0].ID = "mutated"

	second, err := src.Search(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "101", second.Images[0].ID)
	assert.Equal(t, 1, next.searches)

	_, err = src.Search(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, next.searches)

	clk.Advance(5 * time.Minute)
	_, err = src.Search(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, next.searches)

	_, _ = src.Download(ctx, "u")
	_, _ = src.Download(ctx, "u")
	assert.Equal(t, 2, next.downloads)
	assert.Equal(t, 7, src.MaxPages())
}

func TestImageSourceSkipsEmptyPages(t *testing.T) {
	next := &countingSource{empty: true}
	src := NewImageSource(next, time.Minute, clock.SystemClock{})

	for i := 0; i < 2; i++ {
		_, err := src.Search(context.Background(), 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.searches)
}
