// Package service publishes domain events to RabbitMQ.  Publishing is
// best effort: failures are logged and never fail the request that caused
// the event.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/gamezone-reservation/internal/queue"
)

// AMQPPublisher dials the broker per publish.  Event volume is a handful
// per request at most, so no connection is held open between calls.
type AMQPPublisher struct {
	URL   string
	Queue string
}

// Publish declares the durable queue and sends ev as a persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.Event) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Type:         ev.Type,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
}

// NopPublisher drops every event.  It is used when EVENTS_ENABLED is off.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.Event) error { return nil }

// Emitter builds events and hands them to a Publisher off the request path.
type Emitter struct {
	pub     queue.Publisher
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
	// sync publishes inline; tests use it to observe events deterministically.
	sync bool
}

// NewEmitter returns an Emitter.  A nil publisher behaves like NopPublisher.
func NewEmitter(pub queue.Publisher, log *slog.Logger) *Emitter {
	if pub == nil {
		pub = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{pub: pub, log: log, timeout: 5 * time.Second, now: time.Now}
}

// NewSyncEmitter is NewEmitter that publishes on the caller's goroutine.
func NewSyncEmitter(pub queue.Publisher, log *slog.Logger) *Emitter {
	e := NewEmitter(pub, log)
	e.sync = true
	return e
}

// Emit publishes an event of the given type.  It never blocks the caller on
// the broker and never returns an error.
func (e *Emitter) Emit(typ string, payload any) {
	if e == nil {
		return
	}
	ev, err := queue.NewEvent(typ, e.now(), payload)
	if err != nil {
		e.log.Error("events: build failed", "type", typ, "err", err)
		return
	}
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.pub.Publish(ctx, ev); err != nil {
			e.log.Warn("events: publish failed", "type", typ, "id", ev.ID, "err", err)
		}
	}
	if e.sync {
		send()
		return
	}
	go send()
}
