package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker down")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestKafkaPublisherFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 4, zap.NewNop())

	env, err := New("backoffice", EventSaleCreated, "q1", SaleCreatedPayload{SaleID: "s1", QuotationID: "q1", Total: 39.96})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), env))
	p.Close()

	require.Len(t, w.msgs, 1)
	assert.True(t, w.closed)
	assert.Equal(t, "q1", string(w.msgs[0].Key))
	assert.Equal(t, EventSaleCreated, string(w.msgs[0].Headers[0].Value))

	assert.ErrorIs(t, p.Publish(context.Background(), env), ErrPublisherClosed)
}

func TestKafkaPublisherWriteErrorIsLogged(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := newKafkaPublisher(w, 1, zap.NewNop())

	env, err := New("backoffice", EventQuotationCancelled, "q2", QuotationCancelledPayload{QuotationID: "q2"})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), env))
	p.Close()
	assert.Empty(t, w.msgs)
}

func TestEnvelopePayloadRoundTrip(t *testing.T) {
	env, err := New("backoffice", EventSaleCreated, "q1", SaleCreatedPayload{
		SaleID: "s1",
		Items:  []SaleItem{{ProductID: "p1", Quantity: 2, UnitPrice: 10, Subtotal: 20}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)

	got, err := UnwrapPayload[SaleCreatedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SaleID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 20.0, got.Items[0].Subtotal)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), Envelope{EventType: EventSaleCreated}))
	require.NoError(t, Nop{}.Publish(context.Background(), Envelope{}))
	assert.Len(t, r.Events(), 1)
}
