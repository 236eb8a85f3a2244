package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/lexfoundry/caseflowd/internal/session"
)

// Event types published on the case subject space.
const (
	EventCaseStarted   = "case.started"
	EventStageFinished = "stage.finished"
	EventAwaitingHuman = "case.awaiting_human"
	EventCaseBlocked   = "case.blocked"
	EventCaseResumed   = "case.resumed"
	EventCaseFinished  = "case.finished"
)

// Event is the wire payload for one lifecycle notification.
type Event struct {
	Type       string             `json:"type"`
	CaseID     string             `json:"case_id"`
	Stage      string             `json:"stage,omitempty"`
	Status     session.Status     `json:"status,omitempty"`
	Decision   session.Decision   `json:"decision,omitempty"`
	Confidence session.Confidence `json:"confidence,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Publisher emits case lifecycle events.
type Publisher interface {
	Publish(event Event)
	Close() error
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	// URL of the NATS server.
	URL string `koanf:"url"`

	// SubjectPrefix is the root of the subject space. Events publish to
	// <prefix>.<case_id>.<type>.
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ApplyDefaults fills unset fields.
func (c *NATSConfig) ApplyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "caseflow.case"
	}
}

// NATSPublisher publishes events over a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	config NATSConfig
	logger *zap.Logger
}

// NewNATSPublisher connects to NATS and returns a publisher.
func NewNATSPublisher(config NATSConfig, logger *zap.Logger) (*NATSPublisher, error) {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(config.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", config.URL, err)
	}
	logger.Info("connected to NATS", zap.String("url", config.URL))

	return &NATSPublisher{nc: nc, config: config, logger: logger}, nil
}

// Publish emits one event, best effort.
func (p *NATSPublisher) Publish(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode audit event", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, event.CaseID, event.Type)
	if err := p.nc.Publish(subject, payload); err != nil {
		p.logger.Warn("failed to publish audit event",
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	return p.nc.Drain()
}

// NopPublisher drops all events. Used when no broker is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(Event) {}

// Close does nothing.
func (NopPublisher) Close() error { return nil }
