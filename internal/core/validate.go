package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// msisdnRe is the E.164-like check: '+' followed by one or more digits.
var msisdnRe = regexp.MustCompile(`^\+[0-9]+$`)

// MaxTextLength is the cap on text, counted in Unicode code points.
const MaxTextLength = 4096

// FieldError describes a single violated constraint.
type FieldError struct {
	Field  string `json:"field"`
	Detail string `json:"error"`
}

// ValidationError aggregates every violated constraint for one request;
// validation is all-or-nothing, never partially applied.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Detail)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateWebhook checks the decoded webhook body against the message
// schema and returns the validated Message. All violations are collected
// before returning.
func ValidateWebhook(req WebhookRequest) (Message, *ValidationError) {
	var msg Message
	var fields []FieldError

	if req.MessageID == nil || *req.MessageID == "" {
		fields = append(fields, FieldError{Field: "message_id", Detail: "required and must be non-empty"})
	} else {
		msg.MessageID = *req.MessageID
	}

	if req.From == nil || *req.From == "" {
		fields = append(fields, FieldError{Field: "from", Detail: "required"})
	} else if !msisdnRe.MatchString(*req.From) {
		fields = append(fields, FieldError{Field: "from", Detail: "must be '+' followed by digits only"})
	} else {
		msg.From = *req.From
	}

	if req.To == nil || *req.To == "" {
		fields = append(fields, FieldError{Field: "to", Detail: "required"})
	} else if !msisdnRe.MatchString(*req.To) {
		fields = append(fields, FieldError{Field: "to", Detail: "must be '+' followed by digits only"})
	} else {
		msg.To = *req.To
	}

	if req.Ts == nil || *req.Ts == "" {
		fields = append(fields, FieldError{Field: "ts", Detail: "required"})
	} else if ts, err := ParseUTCTimestamp(*req.Ts); err != nil {
		fields = append(fields, FieldError{Field: "ts", Detail: err.Error()})
	} else {
		msg.Ts = ts
	}

	if req.Text != nil {
		if utf8.RuneCountInString(*req.Text) > MaxTextLength {
			fields = append(fields, FieldError{Field: "text", Detail: fmt.Sprintf("must be at most %d characters", MaxTextLength)})
		} else {
			msg.Text = req.Text
		}
	}

	if len(fields) > 0 {
		return Message{}, &ValidationError{Fields: fields}
	}
	return msg, nil
}

// ParseUTCTimestamp parses an ISO-8601 timestamp that carries an explicit
// UTC designator ('Z' or '+00:00'). Offsets other than UTC are rejected.
func ParseUTCTimestamp(s string) (time.Time, error) {
	if !strings.HasSuffix(s, "Z") && !strings.HasSuffix(s, "+00:00") {
		return time.Time{}, fmt.Errorf("must be ISO-8601 UTC, e.g. 2025-01-15T10:00:00Z")
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be a valid ISO-8601 UTC timestamp, e.g. 2025-01-15T10:00:00Z")
	}
	return ts.UTC(), nil
}
