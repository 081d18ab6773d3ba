package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/terraincognita07/healthintake/internal/models"
)

type amqpChannelStub struct {
	closed    bool
	published []amqp.Publishing
	keys      []string
	err       error
}

func (stub *amqpChannelStub) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if stub.err != nil {
		return stub.err
	}
	stub.keys = append(stub.keys, exchange+"/"+key)
	stub.published = append(stub.published, msg)
	return nil
}

func (stub *amqpChannelStub) IsClosed() bool {
	return stub.closed
}

func (stub *amqpChannelStub) Close() error {
	stub.closed = true
	return nil
}

func newPublisherWithStub(t *testing.T, channels ...*amqpChannelStub) (*AMQPPublisher, *int) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dials := 0
	publisher := &AMQPPublisher{
		queue:  "health-records",
		now:    time.Now,
		logger: logger,
		dial: func(string, string) (*amqp.Connection, amqpChannel, error) {
			if dials >= len(channels) {
				return nil, nil, errors.New("connection refused")
			}
			channel := channels[dials]
			dials++
			return nil, channel, nil
		},
	}
	if err := publisher.connect(); err != nil {
		t.Fatalf("connect() unexpected error: %v", err)
	}
	return publisher, &dials
}

func TestAMQPPublisherPublishesRecordCreated(t *testing.T) {
	channel := &amqpChannelStub{}
	publisher, _ := newPublisherWithStub(t, channel)
	createdAt := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

	record := models.HealthRecord{
		ID:                "rec-1",
		FullName:          "Jane Doe",
		MedicalReportPath: "uploads/1-abcd1234-report.pdf",
		CreatedAt:         createdAt,
	}
	if err := publisher.PublishRecordCreated(context.Background(), record); err != nil {
		t.Fatalf("PublishRecordCreated() unexpected error: %v", err)
	}

	if len(channel.published) != 1 {
		t.Fatalf("expected one publishing, got %d", len(channel.published))
	}
	if channel.keys[0] != "/health-records" {
		t.Fatalf("expected default exchange and queue routing key, got %q", channel.keys[0])
	}
	message := channel.published[0]
	if message.DeliveryMode != amqp.Persistent || message.MessageId != "rec-1" || message.Type != RecordCreatedType {
		t.Fatalf("unexpected publishing headers: %+v", message)
	}

	var event RecordCreatedEvent
	if err := sonic.Unmarshal(message.Body, &event); err != nil {
		t.Fatalf("decode event body: %v", err)
	}
	if event.RecordID != "rec-1" || !event.HasAttachment || !event.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected event: %+v", event)
	}
	var raw map[string]interface{}
	if err := sonic.Unmarshal(message.Body, &raw); err != nil {
		t.Fatalf("decode raw body: %v", err)
	}
	if _, leaked := raw["fullName"]; leaked {
		t.Fatal("event body must not carry health data")
	}
}

func TestAMQPPublisherRedialsClosedChannel(t *testing.T) {
	first := &amqpChannelStub{}
	second := &amqpChannelStub{}
	publisher, dials := newPublisherWithStub(t, first, second)

	first.closed = true
	if err := publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "rec-2"}); err != nil {
		t.Fatalf("PublishRecordCreated() unexpected error: %v", err)
	}
	if *dials != 2 {
		t.Fatalf("expected redial, got %d dials", *dials)
	}
	if len(second.published) != 1 {
		t.Fatalf("expected publish on the new channel, got %d", len(second.published))
	}
}

func TestAMQPPublisherReportsUnavailableBroker(t *testing.T) {
	channel := &amqpChannelStub{}
	publisher, _ := newPublisherWithStub(t, channel)
	channel.closed = true

	err := publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "rec-3"})
	if !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
}

func waitForRedial(publisher *AMQPPublisher) {
	publisher.mu.Lock()
	pending := publisher.redial
	publisher.mu.Unlock()
	if pending != nil {
		<-pending
	}
}

func TestAMQPPublisherDoesNotSerializeOnSlowBroker(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var dials int32
	publisher := &AMQPPublisher{
		queue:  "health-records",
		now:    time.Now,
		logger: logger,
		dial: func(string, string) (*amqp.Connection, amqpChannel, error) {
			atomic.AddInt32(&dials, 1)
			time.Sleep(300 * time.Millisecond)
			return nil, nil, errors.New("connection refused")
		},
	}

	const publishers = 5
	started := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, publishers)
	for index := 0; index < publishers; index++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			errs <- publisher.PublishRecordCreated(ctx, models.HealthRecord{ID: "rec-slow"})
		}()
	}
	wg.Wait()
	close(errs)
	elapsed := time.Since(started)

	if elapsed > 250*time.Millisecond {
		t.Fatalf("expected publishes bounded by their contexts, took %s", elapsed)
	}
	for err := range errs {
		if !errors.Is(err, errNotConnected) {
			t.Fatalf("expected errNotConnected, got %v", err)
		}
	}

	waitForRedial(publisher)
	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Fatalf("expected a single dial, got %d", got)
	}

	err := publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "rec-backoff"})
	if !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected during backoff, got %v", err)
	}
	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Fatalf("expected no dial during backoff, got %d", got)
	}
}

func TestAMQPPublisherRedialsAfterBackoff(t *testing.T) {
	channel := &amqpChannelStub{}
	publisher, dials := newPublisherWithStub(t, channel)
	channel.closed = true

	current := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return current }

	if err := publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "rec-4"}); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	if err := publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "rec-5"}); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected during backoff, got %v", err)
	}
	if *dials != 2 {
		t.Fatalf("expected one failed redial, got %d dials", *dials)
	}

	current = current.Add(redialBackoff)
	_ = publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "rec-6"})
	if *dials != 3 {
		t.Fatalf("expected redial after backoff, got %d dials", *dials)
	}
}

func TestAMQPPublisherRejectsPublishAfterClose(t *testing.T) {
	channel := &amqpChannelStub{}
	publisher, _ := newPublisherWithStub(t, channel)

	if err := publisher.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	err := publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "rec-7"})
	if !errors.Is(err, errPublisherClosed) {
		t.Fatalf("expected errPublisherClosed, got %v", err)
	}
}

func TestAMQPPublisherClose(t *testing.T) {
	channel := &amqpChannelStub{}
	publisher, _ := newPublisherWithStub(t, channel)

	if err := publisher.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	if !channel.closed {
		t.Fatal("expected channel to be closed")
	}
}

func TestNopPublisher(t *testing.T) {
	var publisher Publisher = NopPublisher{}
	if err := publisher.PublishRecordCreated(context.Background(), models.HealthRecord{ID: "x"}); err != nil {
		t.Fatalf("NopPublisher.PublishRecordCreated() unexpected error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("NopPublisher.Close() unexpected error: %v", err)
	}
}
