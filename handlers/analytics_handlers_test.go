package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulsetrack/api/metrics"
	"pulsetrack/api/models"
	"pulsetrack/api/store"
	"pulsetrack/api/utils"
)

// MockEventStore is a mock implementation of store.EventStore
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) InsertEvent(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventStore) ListEvents(ctx context.Context, q store.EventQuery) (*store.EventPage, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.EventPage), args.Error(1)
}

func (m *MockEventStore) PopularPages(ctx context.Context, tenantID string, dr utils.DateRange, limit int) ([]store.PageStat, error) {
	args := m.Called(ctx, tenantID, dr, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.PageStat), args.Error(1)
}

func (m *MockEventStore) EventsByDate(ctx context.Context, tenantID string, dr utils.DateRange, eventType string) ([]store.DateCount, error) {
	args := m.Called(ctx, tenantID, dr, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.DateCount), args.Error(1)
}

func (m *MockEventStore) EventTypeBreakdown(ctx context.Context, tenantID string, dr utils.DateRange) ([]store.TypeCount, error) {
	args := m.Called(ctx, tenantID, dr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.TypeCount), args.Error(1)
}

func (m *MockEventStore) TotalPageViews(ctx context.Context, tenantID string, dr utils.DateRange) (uint64, error) {
	args := m.Called(ctx, tenantID, dr)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockEventStore) UniqueVisitors(ctx context.Context, tenantID string, dr utils.DateRange) (uint64, error) {
	args := m.Called(ctx, tenantID, dr)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockEventStore) ConversionFunnel(ctx context.Context, tenantID string, dr utils.DateRange, stage1, stage2 string) (*store.FunnelResult, error) {
	args := m.Called(ctx, tenantID, dr, stage1, stage2)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.FunnelResult), args.Error(1)
}

func newTestHandlers(s store.EventStore) *AnalyticsHandlers {
	return NewAnalyticsHandlers(s, zap.NewNop(), metrics.NewCollectMetrics(prometheus.NewRegistry()), []byte("test-secret"))
}

func newCollectRouter(h *AnalyticsHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/analytics/collect", h.Collect)
	return r
}

func newDashboardRouter(h *AnalyticsHandlers, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("/", func(c *gin.Context) {
		c.Set("user_id", userID)
	})
	authed.GET("/api/analytics/events", h.ListEvents(false))
	authed.GET("/api/analytics/events/filter", h.ListEvents(true))
	authed.GET("/api/analytics/summary/conversion-funnel", h.ConversionFunnel)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCollect_BatchIndependence(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("InsertEvent", mock.Anything, mock.Anything).Return(nil)

	h := newTestHandlers(mockStore)
	r := newCollectRouter(h)

	// Three events, the middle one malformed (no visitor_id).
	body := `[
		{"tenant_id":"1","event_type":"page_view","session_id":"s1","visitor_id":"v1","event_details":{"url":"/a"}},
		{"tenant_id":"1","event_type":"click","session_id":"s1"},
		{"tenant_id":"1","event_type":"click","session_id":"s1","visitor_id":"v1"}
	]`
	w := postJSON(r, "/api/analytics/collect", body)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ReceivedCount int `json:"receivedCount"`
		InsertedCount int `json:"insertedCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.ReceivedCount)
	assert.Equal(t, 2, resp.InsertedCount)

	mockStore.AssertNumberOfCalls(t, "InsertEvent", 2)
}

func TestCollect_SingleObjectWrapped(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("InsertEvent", mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
		return e.TenantID == "9" && e.EventType == "page_view" && e.EventID != "" && !e.Timestamp.IsZero()
	})).Return(nil)

	h := newTestHandlers(mockStore)
	r := newCollectRouter(h)

	body := `{"user_website_id":9,"event_type":"page_view","session_id":"s","visitor_id":"v"}`
	w := postJSON(r, "/api/analytics/collect", body)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ReceivedCount int `json:"receivedCount"`
		InsertedCount int `json:"insertedCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ReceivedCount)
	assert.Equal(t, 1, resp.InsertedCount)
	mockStore.AssertExpectations(t)
}

func TestCollect_EmptyBatchRejected(t *testing.T) {
	mockStore := new(MockEventStore)
	h := newTestHandlers(mockStore)
	r := newCollectRouter(h)

	w := postJSON(r, "/api/analytics/collect", `[]`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockStore.AssertNotCalled(t, "InsertEvent")
}

func TestCollect_AllMalformedStillSucceeds(t *testing.T) {
	// Per-event failures are logged, not surfaced: a batch of only malformed
	// events still gets a 2xx with insertedCount 0.
	mockStore := new(MockEventStore)
	h := newTestHandlers(mockStore)
	r := newCollectRouter(h)

	w := postJSON(r, "/api/analytics/collect", `[{"event_type":"click"}]`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ReceivedCount int `json:"receivedCount"`
		InsertedCount int `json:"insertedCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.ReceivedCount)
	assert.Equal(t, 0, resp.InsertedCount)
	mockStore.AssertNotCalled(t, "InsertEvent")
}

func TestCollect_StoreDownForAllWrites(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("InsertEvent", mock.Anything, mock.Anything).Return(assert.AnError)

	h := newTestHandlers(mockStore)
	r := newCollectRouter(h)

	body := `[
		{"tenant_id":"1","event_type":"click","session_id":"s","visitor_id":"v"},
		{"tenant_id":"1","event_type":"click","session_id":"s","visitor_id":"v2"}
	]`
	w := postJSON(r, "/api/analytics/collect", body)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCollect_PartialStoreFailureIsSuccess(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("InsertEvent", mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
		return e.VisitorID == "v1"
	})).Return(assert.AnError)
	mockStore.On("InsertEvent", mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
		return e.VisitorID == "v2"
	})).Return(nil)

	h := newTestHandlers(mockStore)
	r := newCollectRouter(h)

	body := `[
		{"tenant_id":"1","event_type":"click","session_id":"s","visitor_id":"v1"},
		{"tenant_id":"1","event_type":"click","session_id":"s","visitor_id":"v2"}
	]`
	w := postJSON(r, "/api/analytics/collect", body)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ReceivedCount int `json:"receivedCount"`
		InsertedCount int `json:"insertedCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ReceivedCount)
	assert.Equal(t, 1, resp.InsertedCount)
}

func TestListEvents_PaginationEnvelope(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("ListEvents", mock.Anything, mock.MatchedBy(func(q store.EventQuery) bool {
		return q.TenantID == "42" && q.Page == 2 && q.Limit == 20 && q.EventType == ""
	})).Return(&store.EventPage{
		Events: []models.Event{},
		Pagination: utils.Pagination{
			TotalEvents: 45,
			TotalPages:  3,
			CurrentPage: 2,
			Limit:       20,
		},
	}, nil)

	h := newTestHandlers(mockStore)
	r := newDashboardRouter(h, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/events?page=2&limit=20", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Pagination utils.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(45), resp.Pagination.TotalEvents)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
	assert.Equal(t, 2, resp.Pagination.CurrentPage)
	assert.Equal(t, 20, resp.Pagination.Limit)
	mockStore.AssertExpectations(t)
}

func TestListEvents_FilterRouteComposesEventType(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("ListEvents", mock.Anything, mock.MatchedBy(func(q store.EventQuery) bool {
		return q.TenantID == "42" && q.EventType == "click" && q.Dates.Start != nil
	})).Return(&store.EventPage{Events: []models.Event{}}, nil)

	h := newTestHandlers(mockStore)
	r := newDashboardRouter(h, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/events/filter?eventType=click&startDate=2024-01-01", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	mockStore.AssertExpectations(t)
}

func TestListEvents_MalformedDateDegradesToUnfiltered(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("ListEvents", mock.Anything, mock.MatchedBy(func(q store.EventQuery) bool {
		return q.Dates.Start == nil && q.Dates.End == nil
	})).Return(&store.EventPage{Events: []models.Event{}}, nil)

	h := newTestHandlers(mockStore)
	r := newDashboardRouter(h, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/events?startDate=gibberish&endDate=also-bad", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	mockStore.AssertExpectations(t)
}

func TestConversionFunnel_DefaultStages(t *testing.T) {
	mockStore := new(MockEventStore)
	mockStore.On("ConversionFunnel", mock.Anything, "42", mock.Anything, "add_to_cart", "checkout_start").
		Return(&store.FunnelResult{Step1Count: 1, Step2Count: 1, ConversionRatePercent: 100.00}, nil)

	h := newTestHandlers(mockStore)
	r := newDashboardRouter(h, 42)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics/summary/conversion-funnel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data store.FunnelResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Data.Step1Count)
	assert.Equal(t, uint64(1), resp.Data.Step2Count)
	assert.Equal(t, 100.00, resp.Data.ConversionRatePercent)
	mockStore.AssertExpectations(t)
}
