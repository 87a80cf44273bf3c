package store

import (
	"context"

	"pulsetrack/api/models"
	"pulsetrack/api/utils"
)

// EventQuery parameterizes a paginated event listing. Every query is scoped to
// exactly one tenant; EventType and Dates are optional AND-composed filters.
type EventQuery struct {
	TenantID  string
	EventType string
	Dates     utils.DateRange
	Page      int
	Limit     int
}

// EventPage is one page of a tenant's event stream, newest first.
type EventPage struct {
	Events     []models.Event
	Pagination utils.Pagination
}

// PageStat is one row of the popular-pages ranking.
type PageStat struct {
	PageURL   string `json:"page_url"`
	PageName  string `json:"page_name,omitempty"`
	ViewCount uint64 `json:"view_count"`
}

// DateCount is one calendar-date bucket. Dates with no events are absent;
// callers building a continuous series zero-fill client-side.
type DateCount struct {
	Date  string `json:"event_date"`
	Count uint64 `json:"event_count"`
}

// TypeCount is one row of the event-type breakdown.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     uint64 `json:"event_count"`
}

// FunnelResult reports a two-stage ordered funnel: visitors reaching stage one,
// visitors whose stage-two event was preceded (or matched in time) by a
// stage-one event, and the resulting conversion percentage.
type FunnelResult struct {
	Step1Count            uint64  `json:"step1_add_to_cart"`
	Step2Count            uint64  `json:"step2_checkout_start"`
	ConversionRatePercent float64 `json:"conversion_rate_percent"`
}

// EventStore is the append-only event collaborator: one insert operation plus
// the family of read-only aggregation queries the dashboard composes.
type EventStore interface {
	InsertEvent(ctx context.Context, event *models.Event) error
	ListEvents(ctx context.Context, q EventQuery) (*EventPage, error)
	PopularPages(ctx context.Context, tenantID string, dr utils.DateRange, limit int) ([]PageStat, error)
	EventsByDate(ctx context.Context, tenantID string, dr utils.DateRange, eventType string) ([]DateCount, error)
	EventTypeBreakdown(ctx context.Context, tenantID string, dr utils.DateRange) ([]TypeCount, error)
	TotalPageViews(ctx context.Context, tenantID string, dr utils.DateRange) (uint64, error)
	UniqueVisitors(ctx context.Context, tenantID string, dr utils.DateRange) (uint64, error)
	ConversionFunnel(ctx context.Context, tenantID string, dr utils.DateRange, stage1, stage2 string) (*FunnelResult, error)
}

// WriteKeyStore validates per-tenant write keys presented by collection clients.
type WriteKeyStore interface {
	IsValid(ctx context.Context, key string) (bool, error)
}
