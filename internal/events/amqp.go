package events

import (
	"context"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const amqpPublishTimeout = 5 * time.Second

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher forwards bus events to a topic exchange. The routing key is "reservo.<event type>".
type AMQPPublisher struct {
	conn     io.Closer
	ch       amqpChannel
	exchange string
	logger   *zerolog.Logger
}

func NewAMQPPublisher(url, exchange string, logger *zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return newAMQPPublisher(conn, ch, exchange, logger), nil
}

func newAMQPPublisher(conn io.Closer, ch amqpChannel, exchange string, logger *zerolog.Logger) *AMQPPublisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}
}

// Attach forwards every event of the bus until the returned func is called.
func (p *AMQPPublisher) Attach(bus *EventBus) func() {
	return bus.Subscribe(AllEvents, p.handle)
}

func (p *AMQPPublisher) handle(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), amqpPublishTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(event.Type), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.CreatedAt,
		Type:        event.Type,
		Body:        event.Payload,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to publish event to amqp")
	}
	return err
}

func RoutingKey(eventType string) string {
	return "reservo." + eventType
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
