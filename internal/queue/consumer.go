package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// AuditConsumer appends every booking event to a log file.  It is the
// reference consumer of the exchange; notification services would bind
// their own queues the same way.
type AuditConsumer struct {
	url      string
	exchange string
	queue    string
	logPath  string
	log      *logrus.Entry
}

// NewAuditConsumer returns a consumer writing to logPath.
func NewAuditConsumer(url, exchange, queue, logPath string) *AuditConsumer {
	return &AuditConsumer{
		url:      url,
		exchange: exchange,
		queue:    queue,
		logPath:  logPath,
		log:      logrus.WithField("component", "audit-consumer"),
	}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.  Message failures are logged and
// the message is rejected without requeue so one bad payload cannot stall
// the queue.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := dialBroker(c.url)
		if err == nil {
			backoff = time.Second
			err = c.consume(ctx, conn)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warnf("consumer stopped, reconnecting in %s", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}
	if err := declareExchange(ch, c.exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range []string{KeyBookingConfirmed, KeyBookingCancelled} {
		if err := ch.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", key, err)
		}
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.log.WithError(err).WithField("message_id", d.MessageId).Error("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handle(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.BookingID == 0 {
		return errors.New("event without type or booking id")
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatAuditLine(ev BookingEvent) string {
	seats := strings.Join(lo.Map(ev.SeatIDs, func(id uint64, _ int) string {
		return fmt.Sprint(id)
	}), ",")
	return fmt.Sprintf("[%s] %s | event_id=%s | booking_id=%d | user_id=%d | show_id=%d | status=%s | total=%d cents | seats=[%s] | correlation_id=%s\n",
		ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.ID, ev.BookingID, ev.UserID, ev.ShowID,
		ev.Status, ev.TotalAmountCents, seats, ev.CorrelationID)
}
