package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

const (
	dialTimeout   = 2 * time.Second
	redialBackoff = 5 * time.Second
)

// ErrBrokerUnavailable is returned without dialing while the publisher
// waits out the backoff after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("broker unavailable")

type publishFunc func(ctx context.Context, key string, msg amqp.Publishing) error

type dialFunc func(url string) (*amqp.Connection, error)

// dialBroker connects with a bounded TCP dial so an unreachable broker
// costs dialTimeout rather than the operating system's connect timeout.
func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

// Publisher sends booking events to the exchange.  The broker connection
// is opened on first use and reopened after it drops, so a broker outage
// only costs the events published while it lasts.  After a failed dial the
// publisher fails fast for redialBackoff instead of dialing per event.
type Publisher struct {
	url      string
	exchange string
	now      func() time.Time
	dial     dialFunc

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
	publish publishFunc
}

// NewPublisher returns a Publisher for the given broker and exchange.
func NewPublisher(url, exchange string) *Publisher {
	p := &Publisher{url: url, exchange: exchange, now: time.Now, dial: dialBroker}
	p.publish = p.send
	return p
}

// BookingConfirmed publishes a booking.confirmed event.
func (p *Publisher) BookingConfirmed(ctx context.Context, b model.Booking, seatIDs []uint64) error {
	return p.emit(ctx, KeyBookingConfirmed, b, seatIDs)
}

// BookingCancelled publishes a booking.cancelled event.
func (p *Publisher) BookingCancelled(ctx context.Context, b model.Booking, seatIDs []uint64) error {
	return p.emit(ctx, KeyBookingCancelled, b, seatIDs)
}

func (p *Publisher) emit(ctx context.Context, key string, b model.Booking, seatIDs []uint64) error {
	ev := NewBookingEvent(key, b, seatIDs, logging.CorrelationIDFromContext(ctx), p.now())
	body, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(key, "error").Inc()
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     ev.ID,
		CorrelationId: ev.CorrelationID,
		Timestamp:     ev.OccurredAt,
		Type:          key,
		Body:          body,
	}
	if err := p.publish(ctx, key, msg); err != nil {
		metrics.EventsPublished.WithLabelValues(key, "error").Inc()
		return fmt.Errorf("publish %s: %w", key, err)
	}
	metrics.EventsPublished.WithLabelValues(key, "ok").Inc()
	logging.FromContext(ctx).WithField("event_id", ev.ID).WithField("booking_id", b.ID).Debug(key + " published")
	return nil
}

func (p *Publisher) send(ctx context.Context, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		p.reset()
		return err
	}
	return nil
}

// ensureChannel dials the broker and declares the exchange when there is
// no usable channel.  Callers hold p.mu.
func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()
	if p.now().Before(p.retryAt) {
		return ErrBrokerUnavailable
	}
	conn, err := p.dial(p.url)
	if err != nil {
		p.retryAt = p.now().Add(redialBackoff)
		return fmt.Errorf("dial broker: %w", err)
	}
	p.retryAt = time.Time{}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	// durable topic exchange, survives broker restarts
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}
