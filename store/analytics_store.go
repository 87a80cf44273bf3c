package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"pulsetrack/api/database"
	"pulsetrack/api/models"
	"pulsetrack/api/utils"
)

type AnalyticsStore struct {
	DB  *database.ClickHouseClient
	log *zap.Logger
}

func NewAnalyticsStore(chClient *database.ClickHouseClient, log *zap.Logger) *AnalyticsStore {
	return &AnalyticsStore{
		DB:  chClient,
		log: log,
	}
}

// eventFilter is the tenant-plus-optional-constraints predicate shared by every
// query. Tenant scoping comes first: no query may span tenants.
type eventFilter struct {
	tenantID  string
	eventType string
	dates     utils.DateRange
}

func (f eventFilter) whereClause() (string, []interface{}) {
	clauses := []string{"tenant_id = ?"}
	args := []interface{}{f.tenantID}

	if f.eventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, f.eventType)
	}
	if f.dates.Start != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, *f.dates.Start)
	}
	if f.dates.End != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, *f.dates.End)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (s *AnalyticsStore) InsertEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO analytics_events (
			event_id, tenant_id, event_type, event_details, session_id,
			visitor_id, referrer, user_agent, ip_address, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.DB.Conn.Exec(ctx, query,
		event.EventID,
		event.TenantID,
		event.EventType,
		event.DetailsString(),
		event.SessionID,
		event.VisitorID,
		event.Referrer,
		event.UserAgent,
		event.IPAddress,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analytics event: %w", err)
	}
	return nil
}

func (s *AnalyticsStore) ListEvents(ctx context.Context, q EventQuery) (*EventPage, error) {
	filter := eventFilter{tenantID: q.TenantID, eventType: q.EventType, dates: q.Dates}
	where, args := filter.whereClause()

	var total uint64
	countQuery := fmt.Sprintf(`SELECT count() FROM analytics_events %s`, where)
	if err := s.DB.Conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	page := &EventPage{
		Events: []models.Event{},
		Pagination: utils.Pagination{
			TotalEvents: total,
			TotalPages:  utils.TotalPages(total, q.Limit),
			CurrentPage: q.Page,
			Limit:       q.Limit,
		},
	}

	offset := (q.Page - 1) * q.Limit
	dataQuery := fmt.Sprintf(`
		SELECT event_id, tenant_id, event_type, event_details, session_id,
		       visitor_id, referrer, user_agent, ip_address, timestamp
		FROM analytics_events
		%s
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, where)
	dataArgs := append(args, q.Limit, offset)

	rows, err := s.DB.Conn.Query(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			event   models.Event
			details string
			ts      time.Time
		)
		if err := rows.Scan(
			&event.EventID,
			&event.TenantID,
			&event.EventType,
			&details,
			&event.SessionID,
			&event.VisitorID,
			&event.Referrer,
			&event.UserAgent,
			&event.IPAddress,
			&ts,
		); err != nil {
			s.log.Error("Error scanning event row", zap.Error(err))
			continue
		}
		event.EventDetails = detailsToJSON(details)
		event.Timestamp = ts.UTC()
		page.Events = append(page.Events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event listing: %w", err)
	}

	return page, nil
}

// detailsToJSON prepares a stored detail string for a JSON response. Stored
// documents pass through; a bare string that never was JSON is re-quoted so the
// raw data still reaches the caller.
func detailsToJSON(details string) json.RawMessage {
	if details == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(details)) {
		return json.RawMessage(details)
	}
	quoted, err := json.Marshal(details)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return quoted
}

func (s *AnalyticsStore) PopularPages(ctx context.Context, tenantID string, dr utils.DateRange, limit int) ([]PageStat, error) {
	if limit <= 0 {
		limit = 10
	}

	filter := eventFilter{tenantID: tenantID, eventType: "page_view", dates: dr}
	where, args := filter.whereClause()

	// The page URL lives inside the open detail bag; a page_view without one
	// still lands in exactly one group, labeled "unknown".
	query := fmt.Sprintf(`
		SELECT
			if(JSONExtractString(event_details, 'url') = '', 'unknown', JSONExtractString(event_details, 'url')) AS page_url,
			JSONExtractString(event_details, 'page_name') AS page_name,
			count() AS view_count
		FROM analytics_events
		%s
		GROUP BY page_url, page_name
		ORDER BY view_count DESC
		LIMIT ?
	`, where)
	args = append(args, limit)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular pages: %w", err)
	}
	defer rows.Close()

	results := []PageStat{}
	for rows.Next() {
		var stat PageStat
		if err := rows.Scan(&stat.PageURL, &stat.PageName, &stat.ViewCount); err != nil {
			s.log.Error("Error scanning popular pages row", zap.Error(err))
			continue
		}
		results = append(results, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during popular pages query: %w", err)
	}

	return results, nil
}

func (s *AnalyticsStore) EventsByDate(ctx context.Context, tenantID string, dr utils.DateRange, eventType string) ([]DateCount, error) {
	filter := eventFilter{tenantID: tenantID, eventType: eventType, dates: dr}
	where, args := filter.whereClause()

	query := fmt.Sprintf(`
		SELECT toDate(timestamp) AS event_date, count() AS event_count
		FROM analytics_events
		%s
		GROUP BY event_date
		ORDER BY event_date ASC
	`, where)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by date: %w", err)
	}
	defer rows.Close()

	results := []DateCount{}
	for rows.Next() {
		var (
			day   time.Time
			count uint64
		)
		if err := rows.Scan(&day, &count); err != nil {
			s.log.Error("Error scanning events-by-date row", zap.Error(err))
			continue
		}
		results = append(results, DateCount{
			Date:  day.Format("2006-01-02"),
			Count: count,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during events-by-date query: %w", err)
	}

	return results, nil
}

func (s *AnalyticsStore) EventTypeBreakdown(ctx context.Context, tenantID string, dr utils.DateRange) ([]TypeCount, error) {
	filter := eventFilter{tenantID: tenantID, dates: dr}
	where, args := filter.whereClause()

	query := fmt.Sprintf(`
		SELECT event_type, count() AS event_count
		FROM analytics_events
		%s
		GROUP BY event_type
		ORDER BY event_count DESC
	`, where)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event type breakdown: %w", err)
	}
	defer rows.Close()

	results := []TypeCount{}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.EventType, &tc.Count); err != nil {
			s.log.Error("Error scanning event type breakdown row", zap.Error(err))
			continue
		}
		results = append(results, tc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event type breakdown query: %w", err)
	}

	return results, nil
}

func (s *AnalyticsStore) TotalPageViews(ctx context.Context, tenantID string, dr utils.DateRange) (uint64, error) {
	filter := eventFilter{tenantID: tenantID, eventType: "page_view", dates: dr}
	where, args := filter.whereClause()

	var total uint64
	query := fmt.Sprintf(`SELECT count() FROM analytics_events %s`, where)
	if err := s.DB.Conn.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to query total page views: %w", err)
	}

	return total, nil
}

func (s *AnalyticsStore) UniqueVisitors(ctx context.Context, tenantID string, dr utils.DateRange) (uint64, error) {
	filter := eventFilter{tenantID: tenantID, dates: dr}
	where, args := filter.whereClause()

	var unique uint64
	query := fmt.Sprintf(`SELECT uniqExact(visitor_id) FROM analytics_events %s`, where)
	if err := s.DB.Conn.QueryRow(ctx, query, args...).Scan(&unique); err != nil {
		return 0, fmt.Errorf("failed to query unique visitors: %w", err)
	}

	return unique, nil
}

// ConversionFunnel measures visitor drop-off between two ordered event-type
// stages. Step one counts distinct visitors with at least one stage-one event
// in the window. Step two counts visitors whose earliest stage-one event is not
// later than their latest stage-two event, which is exactly the set of visitors
// holding a stage-two event preceded (<=) by a same-visitor stage-one event.
func (s *AnalyticsStore) ConversionFunnel(ctx context.Context, tenantID string, dr utils.DateRange, stage1, stage2 string) (*FunnelResult, error) {
	step1Filter := eventFilter{tenantID: tenantID, eventType: stage1, dates: dr}
	where1, args1 := step1Filter.whereClause()

	var step1 uint64
	step1Query := fmt.Sprintf(`SELECT uniqExact(visitor_id) FROM analytics_events %s`, where1)
	if err := s.DB.Conn.QueryRow(ctx, step1Query, args1...).Scan(&step1); err != nil {
		return nil, fmt.Errorf("failed to query funnel stage %q: %w", stage1, err)
	}

	bothFilter := eventFilter{tenantID: tenantID, dates: dr}
	whereBoth, argsBoth := bothFilter.whereClause()
	whereBoth += " AND event_type IN (?, ?)"
	argsBoth = append(argsBoth, stage1, stage2)

	// Placeholders bind in text order: the four aggregate arguments precede the
	// WHERE arguments.
	step2Query := fmt.Sprintf(`
		SELECT count()
		FROM (
			SELECT
				visitor_id,
				minIf(timestamp, event_type = ?) AS first_stage1,
				maxIf(timestamp, event_type = ?) AS last_stage2,
				countIf(event_type = ?) AS stage1_hits,
				countIf(event_type = ?) AS stage2_hits
			FROM analytics_events
			%s
			GROUP BY visitor_id
		)
		WHERE stage1_hits > 0 AND stage2_hits > 0 AND first_stage1 <= last_stage2
	`, whereBoth)
	step2Args := append([]interface{}{stage1, stage2, stage1, stage2}, argsBoth...)

	var step2 uint64
	if err := s.DB.Conn.QueryRow(ctx, step2Query, step2Args...).Scan(&step2); err != nil {
		return nil, fmt.Errorf("failed to query funnel stage %q: %w", stage2, err)
	}

	return &FunnelResult{
		Step1Count:            step1,
		Step2Count:            step2,
		ConversionRatePercent: conversionRate(step1, step2),
	}, nil
}

// conversionRate is step2/step1 as a percentage rounded to two decimals, with
// 0 when step one is empty.
func conversionRate(step1, step2 uint64) float64 {
	if step1 == 0 {
		return 0
	}
	rate := float64(step2) / float64(step1) * 100
	return math.Round(rate*100) / 100
}
