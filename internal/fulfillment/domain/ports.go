package domain

import (
	"context"
	"errors"
)

// Store keeps one record per order id. Get returns nil, nil when absent.
type Store interface {
	Get(ctx context.Context, orderID string) (*Record, error)
	Put(ctx context.Context, record *Record) error
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

// Locker provides per-order mutual exclusion. The returned release func must
// be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, orderID string) (func(), error)
}

type Image struct {
	ID           string
	URL          string
	PageURL      string
	Photographer string
	AltText      string
}

type ImagePage struct {
	Page         int
	TotalResults int
	Images       []Image
}

type ImageSource interface {
	Search(ctx context.Context, page int) (*ImagePage, error)
	Download(ctx context.Context, url string) ([]byte, error)
	MaxPages() int
}

type Sink interface {
	Dispatch(ctx context.Context, payload *Payload) error
}

// Alerter surfaces orders whose retry budget is exhausted to operators.
type Alerter interface {
	AlertExhausted(ctx context.Context, record *Record) error
}

var (
	ErrSourceUnavailable = errors.New("source_unavailable")
	ErrPackagingFailed   = errors.New("packaging_failed")
	ErrNotifyFailed      = errors.New("notify_failed")
	ErrRetryExhausted    = errors.New("retry_exhausted")
	ErrLockBusy          = errors.New("order_lock_busy")
	ErrInvalidEvent      = errors.New("invalid_event")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotFound          = errors.New("fulfillment_not_found")
)
