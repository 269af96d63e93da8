package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"go.uber.org/zap"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Event is the payload sent on every lifecycle subject. Property is nil
// for deletions.
type Event struct {
	Type       string           `json:"type"`
	PropertyID string           `json:"propertyId"`
	Property   *domain.Property `json:"property,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

var _ domain.EventPublisher = (*Publisher)(nil)

type Publisher struct {
	conn   Conn
	prefix string
	now    func() time.Time
	logger *logger.Logger
}

func NewPublisher(conn Conn, subjectPrefix string, log *logger.Logger) (*Publisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("NATS connection cannot be nil")
	}
	if subjectPrefix == "" {
		subjectPrefix = "properties"
	}
	return &Publisher{
		conn:   conn,
		prefix: subjectPrefix,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.Named("NATSPublisher"),
	}, nil
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *Publisher) PropertyCreated(ctx context.Context, prop domain.Property) error {
	return p.publish(ctx, Event{Type: EventCreated, PropertyID: prop.ID, Property: &prop})
}

func (p *Publisher) PropertyUpdated(ctx context.Context, prop domain.Property) error {
	return p.publish(ctx, Event{Type: EventUpdated, PropertyID: prop.ID, Property: &prop})
}

func (p *Publisher) PropertyDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, Event{Type: EventDeleted, PropertyID: id})
}

func (p *Publisher) publish(_ context.Context, ev Event) error {
	subject := p.Subject(ev.Type)
	ev.OccurredAt = p.now()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event for subject %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message to NATS subject %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject), zap.String("property_id", ev.PropertyID))
	return nil
}
