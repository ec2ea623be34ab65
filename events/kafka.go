package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrPublisherClosed = errors.New("publicador de eventos cerrado")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues envelopes and writes them from a single goroutine,
// so Publish never waits on the brokers.
type KafkaPublisher struct {
	w     messageWriter
	inbox chan kafka.Message
	done  chan struct{}
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(brokers []string, topic string, buf int, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(w, buf, log)
}

func newKafkaPublisher(w messageWriter, buf int, log *zap.Logger) *KafkaPublisher {
	if buf <= 0 {
		buf = 256
	}
	p := &KafkaPublisher{
		w:     w,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		log:   log,
	}
	go p.loop()
	return p
}

func (p *KafkaPublisher) loop() {
	defer close(p.done)
	for m := range p.inbox {
		if err := p.w.WriteMessages(context.Background(), m); err != nil {
			p.log.Error("kafka write failed", zap.String("key", string(m.Key)), zap.Error(err))
		}
	}
	if err := p.w.Close(); err != nil {
		p.log.Error("kafka writer close failed", zap.Error(err))
	}
}

// Publish keys the message by correlation id so events of one quotation
// land on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes queued messages and waits for the writer to finish.
func (p *KafkaPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}
