package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pulsetrack/api/metrics"
	"pulsetrack/api/middleware"
	"pulsetrack/api/models"
	"pulsetrack/api/store"
	"pulsetrack/api/utils"
)

type AnalyticsHandlers struct {
	Store     store.EventStore
	log       *zap.Logger
	metrics   *metrics.CollectMetrics
	jwtSecret []byte
}

func NewAnalyticsHandlers(s store.EventStore, log *zap.Logger, m *metrics.CollectMetrics, jwtSecret []byte) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		Store:     s,
		log:       log,
		metrics:   m,
		jwtSecret: jwtSecret,
	}
}

// Collect accepts one event or an array of events from the tracking snippet.
// Each event is validated and persisted independently: malformed events are
// skipped and logged, never reported back per-event, and one failed insert
// does not block its siblings. The response carries coarse counts only.
func (h *AnalyticsHandlers) Collect(c *gin.Context) {
	var body json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		h.log.Warn("Error binding collect payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	rawEvents, err := normalizePayload(body)
	if err != nil {
		h.log.Warn("Malformed collect payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if len(rawEvents) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No analytics events provided."})
		return
	}

	h.metrics.BatchesTotal.Inc()

	// Authenticated mode: a valid dashboard token binds the tenant, overriding
	// whatever the payload claims. Without one, the payload tenant id is
	// trusted as-is (third-party snippets cannot hold a credential).
	authTenantID := ""
	if token := middleware.TokenFromRequest(c); token != "" {
		if claims, err := utils.ValidateJWT(token, h.jwtSecret); err == nil {
			authTenantID = models.ParseTenantID(claims.UserID)
		}
	}

	clientIP := c.ClientIP()
	now := time.Now().UTC()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	var (
		wg          sync.WaitGroup
		validated   atomic.Int64
		inserted    atomic.Int64
		storeErrors atomic.Int64
	)

	for i := range rawEvents {
		raw := rawEvents[i]

		event, err := raw.Validate(authTenantID)
		if err != nil {
			h.log.Warn("Skipping malformed event", zap.Error(err), zap.String("event_type", raw.EventType))
			h.metrics.EventsTotal.WithLabelValues("rejected").Inc()
			continue
		}
		validated.Add(1)

		event.EventID = uuid.New().String()
		event.IPAddress = clientIP
		event.Timestamp = now

		wg.Add(1)
		go func(event *models.Event) {
			defer wg.Done()
			if err := h.Store.InsertEvent(ctx, event); err != nil {
				h.log.Error("Error inserting analytics event",
					zap.Error(err),
					zap.String("event_id", event.EventID),
					zap.String("tenant_id", event.TenantID))
				h.metrics.EventsTotal.WithLabelValues("error").Inc()
				storeErrors.Add(1)
				return
			}
			h.metrics.EventsTotal.WithLabelValues("inserted").Inc()
			inserted.Add(1)
		}(event)
	}

	wg.Wait()

	// The whole batch fails only when the store rejected every write; partial
	// success is success.
	if validated.Load() > 0 && inserted.Load() == 0 && storeErrors.Load() == validated.Load() {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while processing analytics data."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Successfully received and processed " + strconv.FormatInt(inserted.Load(), 10) + " analytics event(s).",
		"receivedCount": len(rawEvents),
		"insertedCount": inserted.Load(),
	})
}

// normalizePayload turns the request body into a sequence of raw events,
// wrapping a single object into a one-element slice.
func normalizePayload(body json.RawMessage) ([]models.RawEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var events []models.RawEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var event models.RawEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return []models.RawEvent{event}, nil
}

// ListEvents serves both listing routes: the plain one ignores the eventType
// filter, the filter route composes it with the date range.
func (h *AnalyticsHandlers) ListEvents(filterable bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := models.ParseTenantID(c.MustGet("user_id").(int))

		q := store.EventQuery{
			TenantID: tenantID,
			Dates:    utils.NormalizeDateRange(c.Query("startDate"), c.Query("endDate")),
			Page:     utils.ParsePage(c.Query("page")),
			Limit:    utils.ParseLimit(c.Query("limit")),
		}
		if filterable {
			q.EventType = c.Query("eventType")
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		page, err := h.Store.ListEvents(ctx, q)
		if err != nil {
			h.log.Error("Error fetching analytics events", zap.Error(err), zap.String("tenant_id", tenantID))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while fetching analytics data."})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":    "Analytics events fetched successfully.",
			"data":       page.Events,
			"pagination": page.Pagination,
		})
	}
}

func (h *AnalyticsHandlers) PopularPages(c *gin.Context) {
	tenantID := models.ParseTenantID(c.MustGet("user_id").(int))
	dr := utils.NormalizeDateRange(c.Query("startDate"), c.Query("endDate"))

	limit := 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Store.PopularPages(ctx, tenantID, dr, limit)
	if err != nil {
		h.log.Error("Error fetching popular pages", zap.Error(err), zap.String("tenant_id", tenantID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while fetching popular pages."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Most popular pages fetched successfully.",
		"data":    results,
	})
}

func (h *AnalyticsHandlers) EventsByDate(c *gin.Context) {
	tenantID := models.ParseTenantID(c.MustGet("user_id").(int))
	dr := utils.NormalizeDateRange(c.Query("startDate"), c.Query("endDate"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Store.EventsByDate(ctx, tenantID, dr, c.Query("eventType"))
	if err != nil {
		h.log.Error("Error fetching events by date", zap.Error(err), zap.String("tenant_id", tenantID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while fetching events by date."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Events by date fetched successfully.",
		"data":    results,
	})
}

func (h *AnalyticsHandlers) EventTypeBreakdown(c *gin.Context) {
	tenantID := models.ParseTenantID(c.MustGet("user_id").(int))
	dr := utils.NormalizeDateRange(c.Query("startDate"), c.Query("endDate"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Store.EventTypeBreakdown(ctx, tenantID, dr)
	if err != nil {
		h.log.Error("Error fetching event type breakdown", zap.Error(err), zap.String("tenant_id", tenantID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while fetching event types breakdown."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event type breakdown fetched successfully.",
		"data":    results,
	})
}

func (h *AnalyticsHandlers) TotalPageViews(c *gin.Context) {
	tenantID := models.ParseTenantID(c.MustGet("user_id").(int))
	dr := utils.NormalizeDateRange(c.Query("startDate"), c.Query("endDate"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	total, err := h.Store.TotalPageViews(ctx, tenantID, dr)
	if err != nil {
		h.log.Error("Error fetching total page views", zap.Error(err), zap.String("tenant_id", tenantID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while fetching total page views."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Total page views fetched successfully.",
		"data":    gin.H{"total_page_views": total},
	})
}

func (h *AnalyticsHandlers) UniqueVisitors(c *gin.Context) {
	tenantID := models.ParseTenantID(c.MustGet("user_id").(int))
	dr := utils.NormalizeDateRange(c.Query("startDate"), c.Query("endDate"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	unique, err := h.Store.UniqueVisitors(ctx, tenantID, dr)
	if err != nil {
		h.log.Error("Error fetching unique visitors", zap.Error(err), zap.String("tenant_id", tenantID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while fetching unique visitors count."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Unique visitors count fetched successfully.",
		"data":    gin.H{"unique_visitors_count": unique},
	})
}

func (h *AnalyticsHandlers) ConversionFunnel(c *gin.Context) {
	tenantID := models.ParseTenantID(c.MustGet("user_id").(int))
	dr := utils.NormalizeDateRange(c.Query("startDate"), c.Query("endDate"))

	stage1 := c.DefaultQuery("stage1", "add_to_cart")
	stage2 := c.DefaultQuery("stage2", "checkout_start")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := h.Store.ConversionFunnel(ctx, tenantID, dr, stage1, stage2)
	if err != nil {
		h.log.Error("Error fetching conversion funnel", zap.Error(err), zap.String("tenant_id", tenantID))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error while fetching conversion funnel."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Conversion funnel data fetched successfully.",
		"data":    result,
	})
}
