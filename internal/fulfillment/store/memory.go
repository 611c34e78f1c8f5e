package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
)

// Memory keeps records in process. Records are cloned on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*fulfillmentdomain.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*fulfillmentdomain.Record)}
}

func (m *Memory) Get(ctx context.Context, orderID string) (*fulfillmentdomain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[strings.TrimSpace(orderID)]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

func (m *Memory) Put(ctx context.Context, record *fulfillmentdomain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil || strings.TrimSpace(record.OrderID) == "" {
		return errors.New("fulfillment record requires an order id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.OrderID] = record.Clone()
	return nil
}

func (m *Memory) List(ctx context.Context, filter fulfillmentdomain.ListFilter) ([]fulfillmentdomain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]fulfillmentdomain.Record, 0)
	for _, record := range m.records {
		if filter.Match(record) {
			out = append(out, *record.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ fulfillmentdomain.Store = (*Memory)(nil)
