package domain

import "time"

// Event types for WebSocket and NATS notifications
const (
	EventDatasetLoaded = "dataset_loaded"
	EventDatasetFailed = "dataset_failed"
)

// Event represents a notification about dataset activity
type Event struct {
	Type      string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// DatasetLoadedEvent is sent when a static refresh or upload produces a new dataset
type DatasetLoadedEvent struct {
	DatasetID string `json:"dataset_id"`
	Source    string `json:"source"`
	Total     int    `json:"total"`
	// Overlap counts matches that were probably already seen in an earlier dataset
	Overlap int  `json:"overlap"`
	Upload  bool `json:"upload"`
}

// DatasetFailedEvent is sent when a load attempt fails
type DatasetFailedEvent struct {
	Source string `json:"source"`
	Error  string `json:"error"`
	Upload bool   `json:"upload"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
