package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPackaged Status = "packaged"
	StatusNotified Status = "notified"
	StatusFailed   Status = "failed"
)

type FailureReason string

const (
	FailureNone              FailureReason = ""
	FailureSourceUnavailable FailureReason = "source_unavailable"
	FailurePackaging         FailureReason = "packaging_failed"
	FailureNotify            FailureReason = "notify_failed"
)

// ArtifactDescriptor is what survives of an artifact once it is packaged.
// Image bytes are never persisted.
type ArtifactDescriptor struct {
	SourceID     string `json:"source_id" gorm:"column:source_id;type:text"`
	SourceURL    string `json:"source_url" gorm:"column:source_url;type:text"`
	PageURL      string `json:"page_url" gorm:"column:page_url;type:text"`
	Photographer string `json:"photographer" gorm:"column:photographer;type:text"`
	AltText      string `json:"alt_text" gorm:"column:alt_text;type:text"`
	EntryName    string `json:"entry_name" gorm:"column:entry_name;type:text"`
	PackagedName string `json:"packaged_name" gorm:"column:packaged_name;type:text"`
}

func (a ArtifactDescriptor) Empty() bool {
	return a.SourceID == "" && a.PackagedName == ""
}

// Record is the single mutable entity of the pipeline, one per order.
type Record struct {
	ID              snowflake.ID       `json:"id" gorm:"primaryKey"`
	OrderID         string             `json:"order_id" gorm:"type:varchar(64);not null;uniqueIndex"`
	Status          Status             `json:"status" gorm:"type:varchar(16);not null;index"`
	Attempts        int                `json:"attempts" gorm:"not null;default:0"`
	LastError       *string            `json:"last_error,omitempty" gorm:"type:text"`
	FailureReason   FailureReason      `json:"failure_reason,omitempty" gorm:"type:varchar(32)"`
	TierID          string             `json:"tier_id" gorm:"type:varchar(64);not null"`
	PriceCents      int64              `json:"price_cents" gorm:"not null"`
	TipCents        int64              `json:"tip_cents" gorm:"not null"`
	AmountPaidCents int64              `json:"amount_paid_cents" gorm:"not null"`
	Currency        string             `json:"currency" gorm:"type:varchar(8)"`
	BuyerEmail      string             `json:"buyer_email" gorm:"type:text"`
	ProviderEventID string             `json:"provider_event_id" gorm:"type:text"`
	Artifact        ArtifactDescriptor `json:"artifact" gorm:"embedded;embeddedPrefix:artifact_"`
	Metadata        datatypes.JSONMap  `json:"metadata,omitempty"`
	CreatedAt       time.Time          `json:"created_at" gorm:"not null;autoCreateTime:false"`
	UpdatedAt       time.Time          `json:"updated_at" gorm:"not null;index;autoUpdateTime:false"`
	NotifiedAt      *time.Time         `json:"notified_at,omitempty"`
}

func (Record) TableName() string { return "fulfillment_records" }

func (r Record) TotalCents() int64 {
	return r.PriceCents + r.TipCents
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.LastError != nil {
		msg := *r.LastError
		out.LastError = &msg
	}
	if r.NotifiedAt != nil {
		at := *r.NotifiedAt
		out.NotifiedAt = &at
	}
	if r.Metadata != nil {
		out.Metadata = make(datatypes.JSONMap, len(r.Metadata))
		for key, value := range r.Metadata {
			out.Metadata[key] = value
		}
	}
	return &out
}

// Artifact exists only for the duration of one fulfillment attempt.
type Artifact struct {
	Descriptor ArtifactDescriptor
	Bytes      []byte
	Archive    []byte
}

type Outcome string

const (
	OutcomeIgnored          Outcome = "ignored"
	OutcomeAlreadyFulfilled Outcome = "already_fulfilled"
	OutcomeFulfilled        Outcome = "fulfilled"
	OutcomeFailed           Outcome = "failed"
	OutcomeExhausted        Outcome = "exhausted"
)

type Result struct {
	Outcome Outcome
	Record  *Record
}

// ListFilter narrows List queries. Zero values mean "no constraint".
// MaxAttempts keeps records with fewer attempts than the bound. Results are
// ordered by ID and AfterID resumes after a previous page.
type ListFilter struct {
	Status        Status
	MaxAttempts   int
	UpdatedBefore time.Time
	AfterID       snowflake.ID
	Limit         int
}

func (f ListFilter) Match(r *Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.MaxAttempts > 0 && r.Attempts >= f.MaxAttempts {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !r.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}
	if f.AfterID != 0 && r.ID <= f.AfterID {
		return false
	}
	return true
}
