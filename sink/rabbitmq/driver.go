// Package rabbitmq publishes messages to a RabbitMQ exchange with
// publisher confirms.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"streamproducer/sink"
)

type Config struct {
	URL          string `koanf:"url"`
	Exchange     string `koanf:"exchange"`    // "" = default exchange
	RoutingKey   string `koanf:"routing_key"` // defaults to Queue
	Queue        string `koanf:"queue"`
	DeclareQueue bool   `koanf:"declare_queue"`
	Persistent   bool   `koanf:"persistent"`
	ContentType  string `koanf:"content_type"`
}

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

type driver struct {
	cfg Config

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
}

func (d *driver) Configure(_ context.Context, raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("rabbitmq-sink: expected Config, got %T", raw)
	}
	if cfg.URL == "" {
		return errors.New("rabbitmq-sink: url is required")
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = cfg.Queue
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	d.cfg = cfg

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return sink.ConnectError("rabbitmq", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return sink.ConnectError("rabbitmq", err)
	}
	d.conn = conn
	if err := d.setup(ch); err != nil {
		d.Close()
		return sink.ConnectError("rabbitmq", err)
	}
	return nil
}

func (d *driver) setup(ch channel) error {
	d.ch = ch
	if d.cfg.DeclareQueue && d.cfg.Queue != "" {
		if _, err := ch.QueueDeclare(d.cfg.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", d.cfg.Queue, err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}
	return nil
}

func (d *driver) Send(ctx context.Context, msg []byte) error {
	pub := amqp.Publishing{
		ContentType: d.cfg.ContentType,
		Body:        msg,
	}
	if d.cfg.Persistent {
		pub.DeliveryMode = amqp.Persistent
	}
	dc, err := d.ch.PublishWithDeferredConfirmWithContext(ctx, d.cfg.Exchange, d.cfg.RoutingKey, false, false, pub)
	if err != nil {
		return sink.SendError("rabbitmq", err)
	}
	if dc == nil {
		return nil
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return sink.SendError("rabbitmq", err)
	}
	if !acked {
		return sink.SendError("rabbitmq", errors.New("broker nacked message"))
	}
	return nil
}

func (d *driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	if d.ch != nil {
		errs = append(errs, d.ch.Close())
		d.ch = nil
	}
	if d.conn != nil {
		errs = append(errs, d.conn.Close())
		d.conn = nil
	}
	return errors.Join(errs...)
}

func init() {
	sink.Register("rabbitmq", func() sink.Adapter { return &driver{} })
}
