// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"time"
)

// ConnectionState classifies the device's current connectivity.
type ConnectionState string

// Connectivity states, from best to worst.
const (
	StateOnline   ConnectionState = "online"
	StateMesh     ConnectionState = "mesh"
	StateIsolated ConnectionState = "isolated"
)

// MessageType identifies the kind of outbound action held in the queue.
type MessageType string

// Supported message types.
const (
	TypeSOS          MessageType = "sos"
	TypeVerification MessageType = "verification"
	TypeReport       MessageType = "report"
)

// MessageStatus tracks a queued message through delivery.
type MessageStatus string

// Message lifecycle states.
const (
	StatusQueued  MessageStatus = "queued"
	StatusSending MessageStatus = "sending"
	StatusFailed  MessageStatus = "failed"
)

// QueuedMessage is an outbound action deferred because the device was
// not fully online. The payload is opaque to the queue; only the caller
// interprets it.
type QueuedMessage struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Retries   int             `json:"retries"`
	Status    MessageStatus   `json:"status"`
}

// DrainResult partitions one drain pass by outcome. Every message in
// the input queue lands in exactly one of the two lists.
type DrainResult struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
}

// Severity is the application's four-tier incident severity, derived
// from the provider's three-tier alert level.
type Severity string

// Severity levels.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IncidentStatus marks whether an incident is provider-confirmed.
type IncidentStatus string

// Incident statuses.
const (
	IncidentVerified    IncidentStatus = "verified"
	IncidentUnconfirmed IncidentStatus = "unconfirmed"
)

// Category is the application's response taxonomy, mapped from the
// provider's event-type codes.
type Category string

// Incident categories.
const (
	CategoryInfrastructure Category = "infrastructure"
	CategoryWater          Category = "water"
	CategoryEvacuation     Category = "evacuation"
	CategoryOther          Category = "other"
)

// Location is a WGS-84 point with an optional country name.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Country string  `json:"country,omitempty"`
}

// Source describes where an incident came from and how much the
// originating authority is trusted.
type Source struct {
	Type           string  `json:"type"`
	AuthorityScore float64 `json:"authorityScore"`
}

// Verification summarizes the confidence attached to an incident.
type Verification struct {
	Score     int            `json:"score"`
	Status    IncidentStatus `json:"status"`
	Checks    []string       `json:"checks"`
	Timestamp time.Time      `json:"timestamp"`
}

// RawEvent is one feed entry after field extraction, before
// classification. It exists only for the duration of a parse call.
type RawEvent struct {
	Title       string
	Description string
	Link        string
	Published   *time.Time
	Category    string
	AlertLevel  string
	EventType   string
	Country     string
	Population  int64
	Lat         float64
	Lng         float64
}

// Incident is the application-facing shape of one upstream feed event.
// Incidents are rebuilt on every fetch; the caller owns persistence and
// deduplication.
type Incident struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Location           Location       `json:"location"`
	Status             IncidentStatus `json:"status"`
	Severity           Severity       `json:"severity"`
	Category           Category       `json:"category"`
	Source             Source         `json:"source"`
	Verification       Verification   `json:"verification"`
	Timestamp          time.Time      `json:"timestamp"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	PeerConfirmations  int            `json:"peerConfirmations"`
	ExternalLink       string         `json:"externalLink"`
	AlertLevel         string         `json:"alertLevel"`
	AffectedPopulation int64          `json:"affectedPopulation,omitempty"`
}

// Pref is one persisted user preference.
type Pref struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidMessageType reports whether t is one of the supported queue
// message types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case TypeSOS, TypeVerification, TypeReport:
		return true
	}
	return false
}
