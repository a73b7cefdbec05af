package mail

import (
	"context"
	"time"
)

// Message is the metadata view of an email used for summaries.
type Message struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId,omitempty"`
	Sender       string    `json:"sender"`
	Subject      string    `json:"subject"`
	Date         string    `json:"date,omitempty"`
	Preview      string    `json:"preview,omitempty"`
	Labels       []string  `json:"labels,omitempty"`
	InternalDate time.Time `json:"internalDate"`
}

// Provider lists unread messages, newest first.
type Provider interface {
	UnreadEmails(ctx context.Context, limit int) ([]Message, error)
}
