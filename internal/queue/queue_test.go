package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

var (
	at      = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	booking = model.Booking{ID: 42, ShowID: 100, UserID: 7, Holder: "u@example.com", Status: model.BookingConfirmed, TotalAmountCents: 200}
)

type sent struct {
	key string
	msg amqp.Publishing
}

func testPublisher(fail error) (*Publisher, *[]sent) {
	var out []sent
	p := NewPublisher("amqp://unused", "booking.events")
	p.now = func() time.Time { return at }
	p.publish = func(_ context.Context, key string, msg amqp.Publishing) error {
		if fail != nil {
			return fail
		}
		out = append(out, sent{key, msg})
		return nil
	}
	return p, &out
}

func TestPublisherBookingConfirmed(t *testing.T) {
	p, out := testPublisher(nil)
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")

	require.NoError(t, p.BookingConfirmed(ctx, booking, []uint64{1, 2}))
	require.Len(t, *out, 1)
	got := (*out)[0]
	assert.Equal(t, KeyBookingConfirmed, got.key)
	assert.Equal(t, "corr-1", got.msg.CorrelationId)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

	var ev BookingEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &ev))
	assert.Equal(t, got.msg.MessageId, ev.ID)
	assert.Equal(t, uint64(42), ev.BookingID)
	assert.Equal(t, []uint64{1, 2}, ev.SeatIDs)
	assert.Equal(t, at, ev.OccurredAt)
}

func TestPublisherError(t *testing.T) {
	p, _ := testPublisher(errors.New("broker down"))
	err := p.BookingCancelled(context.Background(), booking, nil)
	assert.ErrorContains(t, err, "publish booking.cancelled: broker down")
}

func TestPublisherBacksOffAfterFailedDial(t *testing.T) {
	now := at
	dials := 0
	p := NewPublisher("amqp://unreachable", "booking.events")
	p.now = func() time.Time { return now }
	p.dial = func(string) (*amqp.Connection, error) {
		dials++
		return nil, errors.New("i/o timeout")
	}
	ctx := context.Background()

	err := p.BookingConfirmed(ctx, booking, nil)
	assert.ErrorContains(t, err, "dial broker: i/o timeout")
	assert.Equal(t, 1, dials)

	// inside the backoff window nothing is dialed
	now = now.Add(redialBackoff - time.Second)
	err = p.BookingConfirmed(ctx, booking, nil)
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
	assert.Equal(t, 1, dials)

	now = now.Add(time.Second)
	err = p.BookingConfirmed(ctx, booking, nil)
	assert.ErrorContains(t, err, "dial broker")
	assert.Equal(t, 2, dials)
}

func TestNewBookingEventUniqueIDs(t *testing.T) {
	a := NewBookingEvent(KeyBookingConfirmed, booking, nil, "", at)
	b := NewBookingEvent(KeyBookingConfirmed, booking, nil, "", at)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotNil(t, a.SeatIDs)
}

func TestAuditConsumerHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	c := NewAuditConsumer("amqp://unused", "booking.events", "booking.audit", path)

	body, err := json.Marshal(NewBookingEvent(KeyBookingConfirmed, booking, []uint64{1, 2}, "corr-1", at))
	require.NoError(t, err)
	require.NoError(t, c.handle(body))

	cancelled := booking
	cancelled.Status = model.BookingCancelled
	body, err = json.Marshal(NewBookingEvent(KeyBookingCancelled, cancelled, []uint64{1, 2}, "", at))
	require.NoError(t, err)
	require.NoError(t, c.handle(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "booking.confirmed")
	assert.Contains(t, lines[0], "booking_id=42")
	assert.Contains(t, lines[0], "seats=[1,2]")
	assert.Contains(t, lines[0], "correlation_id=corr-1")
	assert.Contains(t, lines[1], "status=CANCELLED")
}

func TestAuditConsumerRejectsBadPayload(t *testing.T) {
	c := NewAuditConsumer("", "", "", filepath.Join(t.TempDir(), "booking.log"))
	assert.Error(t, c.handle([]byte("{")))
	assert.Error(t, c.handle([]byte(`{"type":""}`)))
}
