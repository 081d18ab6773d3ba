package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/terraincognita07/healthintake/internal/models"
)

const (
	publishTimeout = 5 * time.Second
	dialTimeout    = 5 * time.Second
	heartbeat      = 10 * time.Second
	redialBackoff  = 5 * time.Second
)

var (
	errNotConnected    = errors.New("not connected to a broker")
	errPublisherClosed = errors.New("event publisher closed")
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func(url string, queue string) (*amqp.Connection, amqpChannel, error)

// AMQPPublisher sends record.created events to a durable queue on the
// default exchange. A lost channel is redialed in the background; at most
// one dial runs at a time and failed dials back off before the next try.
type AMQPPublisher struct {
	mu       sync.Mutex
	url      string
	queue    string
	conn     *amqp.Connection
	channel  amqpChannel
	redial   chan struct{}
	dialErr  error
	nextDial time.Time
	shutdown bool
	dial     dialFunc
	now      func() time.Time
	logger   *logrus.Logger
}

func NewAMQPPublisher(url string, queue string, logger *logrus.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	publisher := &AMQPPublisher{
		url:    url,
		queue:  queue,
		dial:   dialQueue,
		now:    time.Now,
		logger: logger,
	}
	if err := publisher.connect(); err != nil {
		return nil, err
	}
	return publisher, nil
}

func dialQueue(url string, queue string) (*amqp.Connection, amqpChannel, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return conn, channel, nil
}

// connect dials synchronously. Only used before the publisher is shared.
func (publisher *AMQPPublisher) connect() error {
	conn, channel, err := publisher.dial(publisher.url, publisher.queue)
	if err != nil {
		return err
	}
	publisher.install(conn, channel)
	return nil
}

func (publisher *AMQPPublisher) install(conn *amqp.Connection, channel amqpChannel) {
	publisher.conn = conn
	publisher.channel = channel
	publisher.logger.WithField("queue", publisher.queue).Info("connected to message broker")
}

func (publisher *AMQPPublisher) PublishRecordCreated(ctx context.Context, record models.HealthRecord) error {
	body, err := sonic.Marshal(NewRecordCreatedEvent(record))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	channel, err := publisher.readyChannel(ctx)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return channel.PublishWithContext(publishCtx, "", publisher.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    record.ID,
		Type:         RecordCreatedType,
		Timestamp:    record.CreatedAt,
		Body:         body,
	})
}

// readyChannel returns the open channel, starting a redial when it is gone.
// Callers wait for a running dial no longer than ctx allows.
func (publisher *AMQPPublisher) readyChannel(ctx context.Context) (amqpChannel, error) {
	publisher.mu.Lock()
	if publisher.channel != nil && !publisher.channel.IsClosed() {
		channel := publisher.channel
		publisher.mu.Unlock()
		return channel, nil
	}
	if publisher.shutdown {
		publisher.mu.Unlock()
		return nil, errPublisherClosed
	}
	if publisher.redial == nil {
		if publisher.now().Before(publisher.nextDial) {
			err := publisher.dialErr
			publisher.mu.Unlock()
			return nil, fmt.Errorf("%w: %v", errNotConnected, err)
		}
		_ = publisher.closeLocked()
		publisher.redial = make(chan struct{})
		go publisher.redialBroker(publisher.redial)
	}
	pending := publisher.redial
	publisher.mu.Unlock()

	select {
	case <-pending:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", errNotConnected, ctx.Err())
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if publisher.channel == nil {
		return nil, fmt.Errorf("%w: %v", errNotConnected, publisher.dialErr)
	}
	return publisher.channel, nil
}

func (publisher *AMQPPublisher) redialBroker(done chan struct{}) {
	conn, channel, err := publisher.dial(publisher.url, publisher.queue)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	defer close(done)

	publisher.redial = nil
	publisher.dialErr = err
	if err != nil {
		publisher.nextDial = publisher.now().Add(redialBackoff)
		publisher.logger.WithError(err).Warn("message broker unavailable")
		return
	}
	if publisher.shutdown {
		_ = channel.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	publisher.install(conn, channel)
}

func (publisher *AMQPPublisher) Close() error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	publisher.shutdown = true
	return publisher.closeLocked()
}

func (publisher *AMQPPublisher) closeLocked() error {
	var closeErr error
	if publisher.channel != nil && !publisher.channel.IsClosed() {
		closeErr = publisher.channel.Close()
	}
	if publisher.conn != nil && !publisher.conn.IsClosed() {
		if err := publisher.conn.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	publisher.channel = nil
	publisher.conn = nil
	return closeErr
}
