package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() RawEvent {
	return RawEvent{
		TenantID:     "42",
		EventType:    "page_view",
		EventDetails: json.RawMessage(`{"url":"/home","page_name":"Home"}`),
		SessionID:    "sess-1",
		VisitorID:    "vis-1",
		Referrer:     "https://example.com",
		UserAgent:    "Mozilla/5.0",
	}
}

func TestValidate_Success(t *testing.T) {
	raw := validRaw()

	event, err := raw.Validate("")
	require.NoError(t, err)

	assert.Equal(t, "42", event.TenantID)
	assert.Equal(t, "page_view", event.EventType)
	assert.Equal(t, "sess-1", event.SessionID)
	assert.Equal(t, "vis-1", event.VisitorID)
	assert.JSONEq(t, `{"url":"/home","page_name":"Home"}`, event.DetailsString())
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawEvent)
	}{
		{"missing tenant", func(r *RawEvent) { r.TenantID = ""; r.UserWebsiteID = "" }},
		{"missing event type", func(r *RawEvent) { r.EventType = "" }},
		{"missing session id", func(r *RawEvent) { r.SessionID = "" }},
		{"missing visitor id", func(r *RawEvent) { r.VisitorID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)

			_, err := raw.Validate("")
			assert.Error(t, err)
		})
	}
}

func TestValidate_AuthTenantOverridesPayload(t *testing.T) {
	raw := validRaw()
	raw.TenantID = "999"

	event, err := raw.Validate("7")
	require.NoError(t, err)
	assert.Equal(t, "7", event.TenantID)
}

func TestValidate_LegacyTenantAlias(t *testing.T) {
	raw := validRaw()
	raw.TenantID = ""
	raw.UserWebsiteID = "13"

	event, err := raw.Validate("")
	require.NoError(t, err)
	assert.Equal(t, "13", event.TenantID)
}

func TestValidate_DetailsNormalization(t *testing.T) {
	t.Run("absent becomes empty object", func(t *testing.T) {
		raw := validRaw()
		raw.EventDetails = nil

		event, err := raw.Validate("")
		require.NoError(t, err)
		assert.Equal(t, "{}", event.DetailsString())
	})

	t.Run("object is compacted to one document", func(t *testing.T) {
		raw := validRaw()
		raw.EventDetails = json.RawMessage("{\n  \"url\": \"/a\",\n  \"n\": 1\n}")

		event, err := raw.Validate("")
		require.NoError(t, err)
		assert.Equal(t, `{"url":"/a","n":1}`, event.DetailsString())
	})

	t.Run("string passes through verbatim", func(t *testing.T) {
		raw := validRaw()
		raw.EventDetails = json.RawMessage(`"already serialized"`)

		event, err := raw.Validate("")
		require.NoError(t, err)
		assert.Equal(t, "already serialized", event.DetailsString())
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		raw := validRaw()
		raw.EventDetails = json.RawMessage(`{not json`)

		_, err := raw.Validate("")
		assert.Error(t, err)
	})
}

func TestValidate_Idempotent(t *testing.T) {
	raw := validRaw()
	raw.EventDetails = json.RawMessage(`{ "b": 2, "a": 1 }`)

	first, err := raw.Validate("")
	require.NoError(t, err)
	second, err := raw.Validate("")
	require.NoError(t, err)

	assert.Equal(t, first.DetailsString(), second.DetailsString())
	assert.Equal(t, first.TenantID, second.TenantID)
}

func TestFlexibleID_UnmarshalJSON(t *testing.T) {
	var payload struct {
		ID FlexibleID `json:"tenant_id"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"tenant_id":"42"}`), &payload))
	assert.Equal(t, FlexibleID("42"), payload.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"tenant_id":42}`), &payload))
	assert.Equal(t, FlexibleID("42"), payload.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"tenant_id":null}`), &payload))
	assert.Equal(t, FlexibleID(""), payload.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"tenant_id":{}}`), &payload))
}
