package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"florist/internal/usecase"
)

const (
	EventPaymentStatusChanged = "PaymentStatusChanged"
	eventVersion              = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type messageSink interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// usecase.PaymentEventPublisher のKafka実装。キーはorder_idで同じ注文は同じパーティションへ
type PaymentEvents struct {
	sink     messageSink
	producer string
}

func NewPaymentEvents(sink messageSink, producer string) *PaymentEvents {
	return &PaymentEvents{sink: sink, producer: producer}
}

func (p *PaymentEvents) PublishPaymentStatusChanged(_ context.Context, ev usecase.PaymentStatusChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventPaymentStatusChanged,
		EventVersion:  eventVersion,
		OccurredAt:    ev.OccurredAt.UTC(),
		Producer:      p.producer,
		CorrelationID: ev.OrderID,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return p.sink.Publish([]byte(ev.OrderID), value,
		kafka.Header{Key: "x-event-type", Value: []byte(EventPaymentStatusChanged)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
	)
}

// 受け側で使う
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
