package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/mall-cart/internal/core/domain"
)

// Mock message writer
type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublish_WritesJSONKeyedByCart(t *testing.T) {
	writer := &mockWriter{}
	pub := newKafkaPublisher(writer, "mall.", discardLogger())

	event := domain.CartLinesChangedEvent{
		CartID:     "cart-1",
		TenantID:   "tenant-1",
		CustomerID: "customer-1",
		VariantIDs: []string{"v-1", "v-2"},
		Timestamp:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), domain.TopicCartLinesCreated, "cart-1", event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if msg.Topic != "mall.cart.lines.created" {
		t.Errorf("unexpected topic %s", msg.Topic)
	}
	if string(msg.Key) != "cart-1" {
		t.Errorf("unexpected key %s", msg.Key)
	}

	var decoded domain.CartLinesChangedEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CartID != "cart-1" || len(decoded.VariantIDs) != 2 {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestPublish_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	pub := newKafkaPublisher(&mockWriter{err: boom}, "", discardLogger())

	err := pub.Publish(context.Background(), domain.TopicCartCreated, "cart-1", domain.CartCreatedEvent{CartID: "cart-1"})
	if !errors.Is(err, boom) {
		t.Errorf("expected broker error, got %v", err)
	}
}

func TestPublish_UnmarshalableEvent(t *testing.T) {
	writer := &mockWriter{}
	pub := newKafkaPublisher(writer, "", discardLogger())

	if err := pub.Publish(context.Background(), "t", "k", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
	if len(writer.messages) != 0 {
		t.Error("expected nothing written")
	}
}

func TestClose(t *testing.T) {
	writer := &mockWriter{}
	pub := newKafkaPublisher(writer, "", discardLogger())
	pub.Close()
	if !writer.closed {
		t.Error("expected writer to be closed")
	}
}
