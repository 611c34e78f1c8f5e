package domain

import (
	"context"

	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
)

type Service interface {
	Handle(ctx context.Context, event *paymentdomain.PaymentEvent) (Result, error)
	Redrive(ctx context.Context, record *Record) (Result, error)
	Get(ctx context.Context, orderID string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}
