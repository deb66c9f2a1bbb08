package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/noah-isme/certdesk-go-api/internal/middleware"
)

// CertificateIssuedEvent is published after a certificate is generated.
type CertificateIssuedEvent struct {
	CertificateID uint      `json:"certificate_id"`
	Kind          string    `json:"kind"`
	StudentID     string    `json:"student_id"`
	Serial        int       `json:"serial"`
	FileName      string    `json:"file_name"`
	URL           string    `json:"url,omitempty"`
	Checksum      string    `json:"checksum"`
	IssuedAt      time.Time `json:"issued_at"`
}

// EventPublisher delivers issuance events to interested consumers.
type EventPublisher interface {
	PublishCertificateIssued(ctx context.Context, event CertificateIssuedEvent) error
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher publishes events as JSON on subject.
func NewNATSPublisher(conn *nats.Conn, subject string) EventPublisher {
	return &natsPublisher{conn: conn, subject: subject}
}

func (p *natsPublisher) PublishCertificateIssued(ctx context.Context, event CertificateIssuedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = payload
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		msg.Header.Set(middleware.HeaderCorrelationID, id)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher discards events; used when no broker is configured.
func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishCertificateIssued(context.Context, CertificateIssuedEvent) error {
	return nil
}
