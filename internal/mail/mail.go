// Package mail delivers outbound messages such as confirmation codes.
package mail

import (
	"context"
	"log/slog"
	"time"
)

// Message is one outbound email.
type Message struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Mailer hands a message to whatever transport actually delivers it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// LogMailer writes messages to the log instead of delivering them. Used in
// development and when no transport is configured.
type LogMailer struct {
	logger *slog.Logger
	from   string
}

func NewLogMailer(logger *slog.Logger, from string) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger, from: from}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = m.from
	}
	m.logger.InfoContext(ctx, "outbound mail",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

func (m *LogMailer) Close() error { return nil }
