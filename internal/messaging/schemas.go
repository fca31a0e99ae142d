package messaging

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	// MsgProductSync is emitted after every product sync run
	MsgProductSync MessageType = "product.sync"
)

// BaseMessage contains common fields for all messages
type BaseMessage struct {
	MessageID string      `json:"message_id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Version   string      `json:"version"`
	Source    string      `json:"source"`
}

// ProductSyncMessage reports the outcome of syncing one product kind
type ProductSyncMessage struct {
	BaseMessage
	Kind       string  `json:"kind"`
	Success    bool    `json:"success"`
	Products   int     `json:"products"`
	Options    int     `json:"options"`
	Skipped    int     `json:"skipped"`
	DurationMs int64   `json:"duration_ms"`
	Error      *string `json:"error,omitempty"`
}

// NewBaseMessage creates a base message with common fields
func NewBaseMessage(msgType MessageType, source string) BaseMessage {
	return BaseMessage{
		MessageID: uuid.New().String(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Version:   "1.0",
		Source:    source,
	}
}
