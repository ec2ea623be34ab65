package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventSaleCreated        = "SaleCreated"
	EventQuotationCancelled = "QuotationCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // quotation id
	Payload       json.RawMessage `json:"payload"`
}

type SaleItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type SaleCreatedPayload struct {
	SaleID        string     `json:"sale_id"`
	QuotationID   string     `json:"quotation_id"`
	ClientID      string     `json:"client_id,omitempty"`
	EmployeeID    string     `json:"employee_id,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	Total         float64    `json:"total"`
	Items         []SaleItem `json:"items"`
}

type QuotationCancelledPayload struct {
	QuotationID string `json:"quotation_id"`
}

// New wraps payload in an envelope with a fresh event id.
func New(producer, eventType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// UnwrapPayload decodes the payload of an envelope.
func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}
