// Package events contains the event contracts pushed to WebSocket subscribers
// when the dataset history changes.
package events

import (
	"time"

	"chemvis/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Dataset history messages
	MessageTypeDatasetCreated MessageType = "dataset:created"
	MessageTypeDatasetEvicted MessageType = "dataset:evicted"

	// Connection messages
	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// DatasetEvent is the payload-carrying message sent for history changes.
// Dataset is set for created events; evicted events only carry the id.
type DatasetEvent struct {
	BaseMessage
	DatasetID int64                  `json:"dataset_id"`
	Dataset   *domain.DatasetListing `json:"dataset,omitempty"`
}

// NewDatasetCreated builds the event published after a successful insert
func NewDatasetCreated(summary domain.DatasetSummary, traceID string) DatasetEvent {
	listing := summary.Listing()
	return DatasetEvent{
		BaseMessage: BaseMessage{
			Type:      MessageTypeDatasetCreated,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		DatasetID: summary.ID,
		Dataset:   &listing,
	}
}

// NewDatasetEvicted builds the event published when capacity forced a delete
func NewDatasetEvicted(id int64, traceID string) DatasetEvent {
	return DatasetEvent{
		BaseMessage: BaseMessage{
			Type:      MessageTypeDatasetEvicted,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		DatasetID: id,
	}
}
