package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/annotext/internal/version"
	"github.com/raaihank/annotext/internal/versiondiff"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeVersionSaved is sent when a working set is frozen into a version
	EventTypeVersionSaved EventType = "version_saved"
	// EventTypeDiffComputed is sent when two versions are compared
	EventTypeDiffComputed EventType = "diff_computed"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type       EventType   `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	DocumentID string      `json:"document_id,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	Data       interface{} `json:"data"`
}

// VersionSavedEvent describes a new version. It carries no annotation text.
type VersionSavedEvent struct {
	VersionID       string         `json:"version_id"`
	DocumentID      string         `json:"document_id"`
	Number          int            `json:"version_number"`
	Source          version.Source `json:"source"`
	Author          string         `json:"author"`
	AnnotationCount int            `json:"annotation_count"`
}

// DiffComputedEvent describes a comparison between two versions
type DiffComputedEvent struct {
	DocumentID string              `json:"document_id"`
	BeforeID   string              `json:"before_id"`
	AfterID    string              `json:"after_id"`
	Summary    versiondiff.Summary `json:"summary"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string               `json:"type"`
	Data *SubscriptionRequest `json:"data,omitempty"`
}

// SubscriptionRequest narrows the events a client receives. Empty lists
// mean no restriction.
type SubscriptionRequest struct {
	Events      []EventType `json:"events"`
	DocumentIDs []string    `json:"document_ids,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	ConnectedAt  time.Time
	IP           string
	UserAgent    string
	subscription *SubscriptionRequest
}
