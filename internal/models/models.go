package models

import "time"

// Medicine is one registered medication with its dosage schedule.
// Times are "HH:MM" 24h strings; Days holds the Korean one-character
// weekday labels (월..일). An empty Days slice means every day.
type Medicine struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
	Frequency    string    `json:"frequency"`
	Timing       string    `json:"timing"` // "before_meal" | "after_meal" | "anytime"
	Times        []string  `json:"times"`
	Days         []string  `json:"days"`
	Color        string    `json:"color,omitempty"`
	Confidence   *float64  `json:"confidence,omitempty"`
	OriginalText string    `json:"original_text,omitempty"`
	Warning      string    `json:"warning,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PushSubscription is one device's web push registration. The endpoint
// URL is globally unique; p256dh and auth are the client-side key
// material used to encrypt payloads to this device.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint"`
	UserID    string    `json:"user_id"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlarmPayload is the structured data attached to a push message so the
// service worker can route the click.
type AlarmPayload struct {
	Type        string   `json:"type"`
	Time        string   `json:"time,omitempty"`
	Medicines   []string `json:"medicines,omitempty"`
	MedicineIDs []string `json:"medicine_ids,omitempty"`
}

// DispatchResult aggregates per-device outcomes for one user send.
type DispatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// AlarmEvent is published to the alarm event feed after each per-user
// dispatch so downstream consumers can track adherence.
type AlarmEvent struct {
	UserID    string    `json:"user_id"`
	Time      string    `json:"time"`
	Medicines []string  `json:"medicines"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

type SubscriptionKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type ClientSubscription struct {
	Endpoint string           `json:"endpoint" binding:"required"`
	Keys     SubscriptionKeys `json:"keys" binding:"required"`
}

type SubscribeRequest struct {
	UserID       string             `json:"user_id" binding:"required"`
	Subscription ClientSubscription `json:"subscription" binding:"required"`
}

type UnsubscribeRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Endpoint string `json:"endpoint" binding:"required"`
}

type TestPushRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type MedicineCreateRequest struct {
	UserID       string   `json:"user_id" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Dosage       string   `json:"dosage"`
	Frequency    string   `json:"frequency"`
	Timing       string   `json:"timing"`
	Times        []string `json:"times"`
	Days         []string `json:"days"`
	Color        string   `json:"color"`
	Confidence   *float64 `json:"confidence"`
	OriginalText string   `json:"original_text"`
	Warning      string   `json:"warning"`
}

// MedicineUpdateRequest carries a partial update; nil fields are left
// unchanged.
type MedicineUpdateRequest struct {
	Name      *string   `json:"name"`
	Dosage    *string   `json:"dosage"`
	Frequency *string   `json:"frequency"`
	Timing    *string   `json:"timing"`
	Times     *[]string `json:"times"`
	Days      *[]string `json:"days"`
	Color     *string   `json:"color"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
}
