package testutil

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/zhejian/shortlink/internal/infra"
)

// TestBroker holds a RabbitMQ container and an open channel to it
type TestBroker struct {
	URL       string
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	container *rabbitmq.RabbitMQContainer
}

// SetupTestBroker starts a RabbitMQ container and opens a channel
func SetupTestBroker(ctx context.Context) (*TestBroker, error) {
	container, err := rabbitmq.Run(ctx, "rabbitmq:3.13-alpine")
	if err != nil {
		return nil, err
	}

	url, err := container.AmqpURL(ctx)
	if err != nil {
		return nil, abort(ctx, container, err)
	}
	conn, ch, err := infra.NewBrokerChannel(url)
	if err != nil {
		return nil, abort(ctx, container, err)
	}

	return &TestBroker{URL: url, Conn: conn, Channel: ch, container: container}, nil
}

// Teardown closes the connection and terminates the container
func (t *TestBroker) Teardown(ctx context.Context) {
	if t.Conn != nil {
		_ = t.Conn.Close()
	}
	if t.container != nil {
		_ = t.container.Terminate(ctx)
	}
}
