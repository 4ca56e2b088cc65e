// Package events publishes cycle outcomes to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Cycle names used in subjects.
const (
	CycleSpending   = "spending"
	CycleInvestment = "investment"
)

// Event describes a finished cycle.
type Event struct {
	Cycle       string    `json:"cycle"`
	SubjectID   string    `json:"subject_id"`
	Status      string    `json:"status"`
	RecordID    string    `json:"record_id,omitempty"`
	ActionCount int       `json:"action_count,omitempty"`
	PrimaryPath string    `json:"primary_path,omitempty"`
	Override    bool      `json:"safety_override,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher sends cycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Subject returns the subject for a cycle: <prefix>.<cycle>.completed
func Subject(prefix, cycle string) string {
	if prefix == "" {
		return cycle + ".completed"
	}
	return prefix + "." + cycle + ".completed"
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON events on a NATS connection.
type NATSPublisher struct {
	nc     conn
	prefix string
}

var _ Publisher = (*NATSPublisher)(nil)

// Connect dials url and returns a publisher for subjects under prefix.
func Connect(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("fiscal-pilot"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("Connect: connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Publish marshals e and publishes it on the cycle's subject.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("Publish: context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("Publish: marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, e.Cycle), data); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Nop discards events. It is used when no NATS URL is configured.
type Nop struct{}

var _ Publisher = Nop{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
