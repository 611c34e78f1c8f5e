package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://api.pexels.com"
	defaultQuery    = "art"
	defaultPerPage  = 15
	defaultMaxPages = 100
	userAgent       = "Mystery-Artwork-Marketplace/1.0"

	// maxImageBytes caps downloads; large2x renditions stay well below it.
	maxImageBytes = 20 << 20
)

var (
	ErrNotConfigured = errors.New("image_source_not_configured")
	ErrEmptyImage    = errors.New("image_download_empty")
)

type searchResponse struct {
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
	TotalResults int           `json:"total_results"`
	Photos       []pexelsPhoto `json:"photos"`
}

type pexelsPhoto struct {
	ID              int64  `json:"id"`
	URL             string `json:"url"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	Alt             string `json:"alt"`
	Src             struct {
		Original string `json:"original"`
		Large2x  string `json:"large2x"`
		Large    string `json:"large"`
	} `json:"src"`
}

// Pexels searches the Pexels photo API for artwork candidates.
type Pexels struct {
	client   *resty.Client
	apiKey   string
	query    string
	perPage  int
	maxPages int
	maxBytes int64
	log      *zap.Logger
}

func NewPexels(cfg config.Config, log *zap.Logger) *Pexels {
	srcCfg := cfg.ImageSource
	baseURL := strings.TrimRight(strings.TrimSpace(srcCfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := srcCfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	query := strings.TrimSpace(srcCfg.Query)
	if query == "" {
		query = defaultQuery
	}
	perPage := srcCfg.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	maxPages := srcCfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)

	p := &Pexels{
		client:   client,
		apiKey:   strings.TrimSpace(srcCfg.APIKey),
		query:    query,
		perPage:  perPage,
		maxPages: maxPages,
		maxBytes: maxImageBytes,
		log:      log.Named("imagesource.pexels"),
	}
	if p.apiKey == "" {
		p.log.Warn("pexels api key not configured; fulfillment will fail at image selection")
	}
	return p
}

func (p *Pexels) MaxPages() int {
	return p.maxPages
}

func (p *Pexels) Search(ctx context.Context, page int) (*fulfillmentdomain.ImagePage, error) {
	if p.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if page < 1 {
		page = 1
	}

	var out searchResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", p.apiKey).
		SetQueryParams(map[string]string{
			"query":    p.query,
			"per_page": strconv.Itoa(p.perPage),
			"page":     strconv.Itoa(page),
		}).
		SetResult(&out).
		Get("/v1/search")
	if err != nil {
		return nil, fmt.Errorf("pexels search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pexels search: unexpected status %d", resp.StatusCode())
	}

	images := make([]fulfillmentdomain.Image, 0, len(out.Photos))
	for _, photo := range out.Photos {
		url := photo.Src.Large2x
		if url == "" {
			url = photo.Src.Large
		}
		if url == "" {
			url = photo.Src.Original
		}
		images = append(images, fulfillmentdomain.Image{
			ID:           strconv.FormatInt(photo.ID, 10),
			URL:          url,
			PageURL:      photo.URL,
			Photographer: photo.Photographer,
			AltText:      photo.Alt,
		})
	}

	p.log.Debug("pexels search",
		zap.Int("page", page),
		zap.Int("results", len(images)),
		zap.Int("total_results", out.TotalResults),
	)

	return &fulfillmentdomain.ImagePage{
		Page:         page,
		TotalResults: out.TotalResults,
		Images:       images,
	}, nil
}

// Download streams the image body and stops reading past the size cap.
func (p *Pexels) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("download image: unexpected status %d", resp.StatusCode())
	}
	body, err := io.ReadAll(io.LimitReader(raw, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyImage
	}
	if int64(len(body)) > p.maxBytes {
		return nil, fmt.Errorf("download image: body exceeds %d bytes", p.maxBytes)
	}
	return body, nil
}

var _ fulfillmentdomain.ImageSource = (*Pexels)(nil)
