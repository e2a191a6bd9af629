package models

import (
	"strconv"
	"strings"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents one turn of a conversation. A message is immutable once
// appended to a transcript; later session snapshots copy it as-is.
type Message struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Role        string       `json:"role"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NumericID parses the message ID as an int64. Message IDs are
// millisecond-epoch strings, so this is used to derive session identifiers.
func (m Message) NumericID() int64 {
	id, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// IsEmpty reports whether the message carries neither text nor attachments.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.Attachments) == 0
}
