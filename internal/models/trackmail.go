package models

import "time"

// EventKind is the type of a tracking hit.
type EventKind string

const (
	// EventOpen is recorded when the tracking pixel is fetched
	EventOpen EventKind = "open"
	// EventClick is recorded when a tracked link is followed
	EventClick EventKind = "click"
)

// TrackedMail is a message registered by a user for open/click tracking.
type TrackedMail struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`        // UUID письма
	Recipient string    `json:"recipient"` // адрес получателя
	Subject   string    `json:"subject"`
	UserID    int64     `json:"user_id"`
}

// TrackingEvent is a single open or click hit on a tracked mail.
type TrackingEvent struct {
	At        time.Time `json:"at"`
	MailID    string    `json:"mail_id"`
	Kind      EventKind `json:"kind"`
	URL       string    `json:"url,omitempty"` // целевой URL для click
	UserAgent string    `json:"user_agent,omitempty"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
}

// EventCounts aggregates hits per kind for one mail.
type EventCounts struct {
	Opens  int `json:"opens"`
	Clicks int `json:"clicks"`
}
