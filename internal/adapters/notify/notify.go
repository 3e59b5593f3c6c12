// Package notify publishes committed plans so floor displays and judge
// devices can react without polling.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/metrics"
)

// DefaultSubject is the subject prefix plans are published under.
const DefaultSubject = "judgeflow.plans"

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("publisher closed")

// PlanEvent is the message body for one committed plan.
type PlanEvent struct {
	FloorID     string             `json:"floor_id"`
	RequestID   string             `json:"request_id,omitempty"`
	Assignments []model.Assignment `json:"assignments"`
	Failures    []model.Failure    `json:"failures"`
	Summary     model.Summary      `json:"summary"`
	Message     string             `json:"message"`
	PublishedAt time.Time          `json:"published_at"`
}

// Publisher delivers plan events.
type Publisher interface {
	PublishPlan(ctx context.Context, ev PlanEvent) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

// PublishPlan implements Publisher.
func (Nop) PublishPlan(context.Context, PlanEvent) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// Option configures a NATSPublisher.
type Option func(*NATSPublisher)

// WithSubject sets the subject prefix. The floor id is appended as the last token.
func WithSubject(subject string) Option {
	return func(p *NATSPublisher) {
		if subject != "" {
			p.subject = strings.TrimSuffix(subject, ".")
		}
	}
}

// WithFlush makes every publish wait for the server to acknowledge it.
func WithFlush(timeout time.Duration) Option {
	return func(p *NATSPublisher) {
		p.flushTimeout = timeout
	}
}

// NATSPublisher publishes plan events as JSON on <subject>.<floorID>.
type NATSPublisher struct {
	nc           *nats.Conn
	owned        bool
	subject      string
	flushTimeout time.Duration
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher wraps an existing connection. Close leaves it open.
func NewNATSPublisher(nc *nats.Conn, opts ...Option) *NATSPublisher {
	p := &NATSPublisher{nc: nc, subject: DefaultSubject}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url string, opts ...Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("judgeflow"),
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, opts...)
	p.owned = true
	return p, nil
}

// Subject returns the subject an event for floorID is published on.
func (p *NATSPublisher) Subject(floorID string) string {
	return p.subject + "." + subjectToken(floorID)
}

// PublishPlan implements Publisher.
func (p *NATSPublisher) PublishPlan(ctx context.Context, ev PlanEvent) error {
	if p.nc == nil || p.nc.IsClosed() {
		return ErrClosed
	}
	if ev.PublishedAt.IsZero() {
		ev.PublishedAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode plan event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(ev.FloorID), data); err != nil {
		return fmt.Errorf("publish plan event: %w", err)
	}
	if p.flushTimeout > 0 {
		fctx, cancel := context.WithTimeout(ctx, p.flushTimeout)
		defer cancel()
		if err := p.nc.FlushWithContext(fctx); err != nil {
			return fmt.Errorf("flush plan event: %w", err)
		}
	}
	metrics.RecordNotificationPublished()
	return nil
}

// Close drains the connection if the publisher opened it.
func (p *NATSPublisher) Close() error {
	if !p.owned || p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}

// subjectToken makes floorID safe as a single subject token.
func subjectToken(floorID string) string {
	if floorID == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, floorID)
}
