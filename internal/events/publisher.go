package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/gradworks/thesis-flow-api/internal/models"
	"github.com/gradworks/thesis-flow-api/pkg/config"
)

// Event types emitted onto the workflow topic.
const (
	TypeStatusChanged   = "thesis.status.changed"
	TypeReviewSubmitted = "thesis.review.submitted"
	TypeTeamAssigned    = "thesis.team.assigned"
	TypeSigningAdvanced = "thesis.signing.advanced"
)

// Event is the payload published for workflow transitions.
type Event struct {
	Type       string              `json:"type"`
	ThesisID   string              `json:"thesisId,omitempty"`
	StudentID  string              `json:"studentId,omitempty"`
	Status     models.ThesisStatus `json:"status,omitempty"`
	Role       models.Role         `json:"role,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// Publisher writes workflow events to Kafka. With no broker configured it is
// a logged no-op so the engine never depends on the broker being up.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher builds a publisher from configuration.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Broker == "" {
		return &Publisher{logger: logger}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.Username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
		}
	}
	return &Publisher{writer: writer, logger: logger}
}

// Publish emits the event. Failures are logged and never propagate into the
// workflow operation that produced the event.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil || p.writer == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encode workflow event", zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.ThesisID),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		p.logger.Warn("publish workflow event", zap.String("type", event.Type), zap.Error(err))
	}
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
