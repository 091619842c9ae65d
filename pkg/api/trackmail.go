package api

import "time"

// TrackMailTokenResponse carries the bearer token for the tracking API
type TrackMailTokenResponse struct {
	Token string `json:"token"`
}

// CreateTrackedMailRequest регистрирует письмо для отслеживания
type CreateTrackedMailRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
}

// TrackedMailResponse describes a tracked mail and the URLs to embed in it
type TrackedMailResponse struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	PixelURL  string    `json:"pixel_url"`
	ClickURL  string    `json:"click_url"` // append the escaped target URL
	Opens     int       `json:"opens"`
	Clicks    int       `json:"clicks"`
}

// TrackingEventResponse is one recorded hit
type TrackingEventResponse struct {
	At   time.Time `json:"at"`
	Kind string    `json:"kind"`
	URL  string    `json:"url,omitempty"`
}
