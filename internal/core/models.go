package core

import (
	"time"
)

// Message is the sole persisted entity: an inbound webhook message keyed
// by its caller-supplied message_id. Rows are immutable once inserted.
type Message struct {
	MessageID string
	From      string
	To        string
	Ts        time.Time
	Text      *string
}

// WebhookRequest is the decoded shape of a POST /webhook body before
// validation. Pointer fields distinguish absent from empty.
type WebhookRequest struct {
	MessageID *string `json:"message_id"`
	From      *string `json:"from"`
	To        *string `json:"to"`
	Ts        *string `json:"ts"`
	Text      *string `json:"text"`
}

// SenderCount is one row of the top-senders aggregate.
type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

// Stats aggregates message-level analytics. Timestamps are nil on an
// empty store.
type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTs    *time.Time    `json:"first_message_ts"`
	LastMessageTs     *time.Time    `json:"last_message_ts"`
}
