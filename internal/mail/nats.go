package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// publisher is the subset of *nats.Conn the mailer needs.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSMailer publishes messages as JSON on a subject consumed by a mail worker.
type NATSMailer struct {
	conn    publisher
	closer  func()
	subject string
	from    string
}

// NewNATSMailer connects to url and publishes on subject.
func NewNATSMailer(url, subject, from string) (*NATSMailer, error) {
	conn, err := nats.Connect(url,
		nats.Name("yamdb-mailer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSMailer{conn: conn, closer: conn.Close, subject: subject, from: from}, nil
}

func newNATSMailer(conn publisher, subject, from string) *NATSMailer {
	return &NATSMailer{conn: conn, closer: func() {}, subject: subject, from: from}
}

// Send publishes msg and waits for the server to acknowledge the flush, so a
// nil error means the message left this process.
func (m *NATSMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = m.from
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}
	if err := m.conn.Publish(m.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", m.subject, err)
	}
	if err := m.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", m.subject, err)
	}
	return nil
}

func (m *NATSMailer) Close() error {
	m.closer()
	return nil
}
