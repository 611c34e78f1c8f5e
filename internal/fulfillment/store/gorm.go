package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm persists records in the fulfillment_records table. Put is an upsert
// keyed on order_id.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Get(ctx context.Context, orderID string) (*fulfillmentdomain.Record, error) {
	var record fulfillmentdomain.Record
	err := g.db.WithContext(ctx).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (g *Gorm) Put(ctx context.Context, record *fulfillmentdomain.Record) error {
	if record == nil || strings.TrimSpace(record.OrderID) == "" {
		return errors.New("fulfillment record requires an order id")
	}
	row := record.Clone()
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns(mutableColumns),
		}).
		Create(row).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		// order_id conflicts are upserted, so this is an id owned by another order.
		return fmt.Errorf("fulfillment record id %s already belongs to another order: %w", row.ID, err)
	}
	return err
}

func (g *Gorm) List(ctx context.Context, filter fulfillmentdomain.ListFilter) ([]fulfillmentdomain.Record, error) {
	query := g.db.WithContext(ctx).Model(&fulfillmentdomain.Record{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MaxAttempts > 0 {
		query = query.Where("attempts < ?", filter.MaxAttempts)
	}
	if !filter.UpdatedBefore.IsZero() {
		query = query.Where("updated_at < ?", filter.UpdatedBefore)
	}
	if filter.AfterID != 0 {
		query = query.Where("id > ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []fulfillmentdomain.Record
	if err := query.Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Columns overwritten on conflict. id, order_id and created_at are fixed
// at first insert.
var mutableColumns = []string{
	"status",
	"attempts",
	"last_error",
	"failure_reason",
	"tier_id",
	"price_cents",
	"tip_cents",
	"amount_paid_cents",
	"currency",
	"buyer_email",
	"provider_event_id",
	"artifact_source_id",
	"artifact_source_url",
	"artifact_page_url",
	"artifact_photographer",
	"artifact_alt_text",
	"artifact_entry_name",
	"artifact_packaged_name",
	"metadata",
	"updated_at",
	"notified_at",
}

var _ fulfillmentdomain.Store = (*Gorm)(nil)
