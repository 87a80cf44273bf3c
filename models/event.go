package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexibleID accepts JSON string or number ids. The tracker snippet embeds the
// tenant id as whatever the site owner pasted, so both arrive in the wild.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tenant id must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

// RawEvent is one element of the collect payload, exactly as the snippet sends it.
type RawEvent struct {
	TenantID FlexibleID `json:"tenant_id"`
	// Legacy alias for tenant_id kept for older snippet deployments.
	UserWebsiteID FlexibleID      `json:"user_website_id"`
	EventType     string          `json:"event_type"`
	EventDetails  json.RawMessage `json:"event_details"`
	SessionID     string          `json:"session_id"`
	VisitorID     string          `json:"visitor_id"`
	Referrer      string          `json:"referrer"`
	UserAgent     string          `json:"user_agent"`
}

// Event is a validated analytics event ready for storage. Events are immutable
// once written.
type Event struct {
	EventID      string          `json:"event_id"`
	TenantID     string          `json:"tenant_id"`
	EventType    string          `json:"event_type"`
	EventDetails json.RawMessage `json:"event_details"`
	SessionID    string          `json:"session_id"`
	VisitorID    string          `json:"visitor_id"`
	Referrer     string          `json:"referrer"`
	UserAgent    string          `json:"user_agent"`
	IPAddress    string          `json:"ip_address,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// DetailsString returns the stored representation of the detail bag.
func (e *Event) DetailsString() string {
	return string(e.EventDetails)
}

// Validate checks the raw event against the ingestion contract and returns a
// storage-ready Event. authTenantID, when non-empty, comes from a verified
// identity and overrides whatever the payload claims. The function is pure:
// EventID, IPAddress and Timestamp are assigned by the caller.
func (r *RawEvent) Validate(authTenantID string) (*Event, error) {
	tenantID := authTenantID
	if tenantID == "" {
		tenantID = string(r.TenantID)
	}
	if tenantID == "" {
		tenantID = string(r.UserWebsiteID)
	}
	if tenantID == "" {
		return nil, fmt.Errorf("missing required field: tenant_id")
	}
	if r.EventType == "" {
		return nil, fmt.Errorf("missing required field: event_type")
	}
	if r.SessionID == "" {
		return nil, fmt.Errorf("missing required field: session_id")
	}
	if r.VisitorID == "" {
		return nil, fmt.Errorf("missing required field: visitor_id")
	}

	details, err := normalizeDetails(r.EventDetails)
	if err != nil {
		return nil, fmt.Errorf("invalid event_details: %w", err)
	}

	return &Event{
		TenantID:     tenantID,
		EventType:    r.EventType,
		EventDetails: json.RawMessage(details),
		SessionID:    r.SessionID,
		VisitorID:    r.VisitorID,
		Referrer:     r.Referrer,
		UserAgent:    r.UserAgent,
	}, nil
}

// normalizeDetails turns the open detail bag into the single string stored in
// the event_details column: structured values are serialized to one canonical
// JSON document, a JSON string passes through verbatim, absent becomes "{}".
// No schema is enforced on the contents.
func normalizeDetails(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "{}", nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	if !json.Valid(trimmed) {
		return "", fmt.Errorf("not a valid JSON document")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParseTenantID converts an authenticated user id into the tenant id used to
// scope event rows. The dashboard account and the tracked website share an id.
func ParseTenantID(userID int) string {
	return strconv.Itoa(userID)
}
