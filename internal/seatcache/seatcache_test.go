package seatcache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

var seats = []model.SeatAvailability{
	{SeatID: 1, RowLabel: "A", SeatNumber: 1},
	{SeatID: 2, RowLabel: "A", SeatNumber: 2, IsLocked: true},
}

func TestNewNilClient(t *testing.T) {
	assert.Nil(t, New(nil, ""))
}

func TestGetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "")
	bs, err := json.Marshal(seats)
	require.NoError(t, err)

	mock.ExpectGet("seatmap:100").SetVal(string(bs))
	got, ok := c.Get(context.Background(), 100)
	assert.True(t, ok)
	assert.Equal(t, seats, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "sm")

	mock.ExpectGet("sm:100").RedisNil()
	_, ok := c.Get(context.Background(), 100)
	assert.False(t, ok)

	mock.ExpectGet("sm:100").SetErr(errors.New("connection refused"))
	_, ok = c.Get(context.Background(), 100)
	assert.False(t, ok)

	mock.ExpectGet("sm:100").SetVal("{not json")
	_, ok = c.Get(context.Background(), 100)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGeneration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "")
	ctx := context.Background()

	mock.ExpectGet("seatmap:7:gen").RedisNil()
	gen, ok := c.Generation(ctx, 7)
	assert.True(t, ok)
	assert.Zero(t, gen)

	mock.ExpectGet("seatmap:7:gen").SetVal("3")
	gen, ok = c.Generation(ctx, 7)
	assert.True(t, ok)
	assert.Equal(t, int64(3), gen)

	mock.ExpectGet("seatmap:7:gen").SetErr(errors.New("connection refused"))
	_, ok = c.Generation(ctx, 7)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "")
	bs, err := json.Marshal(seats)
	require.NoError(t, err)
	keys := []string{"seatmap:7:gen", "seatmap:7"}

	mock.ExpectEvalSha(setIfGeneration.Hash(), keys, int64(3), string(bs), int64(12000)).SetVal(int64(1))
	c.Set(context.Background(), 7, 3, seats, 12*time.Second)
	// a non-positive ttl never reaches redis
	c.Set(context.Background(), 7, 3, seats, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSkippedAfterInvalidation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "")
	bs, err := json.Marshal(seats)
	require.NoError(t, err)
	keys := []string{"seatmap:7:gen", "seatmap:7"}

	// the generation moved on between the read and the write
	mock.ExpectEvalSha(setIfGeneration.Hash(), keys, int64(3), string(bs), int64(12000)).SetVal(int64(0))
	c.Set(context.Background(), 7, 3, seats, 12*time.Second)

	mock.ExpectEvalSha(setIfGeneration.Hash(), keys, int64(4), string(bs), int64(12000)).SetErr(errors.New("timeout"))
	c.Set(context.Background(), 7, 4, seats, 12*time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidate(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, "")

	mock.ExpectIncr("seatmap:7:gen").SetVal(4)
	mock.ExpectExpire("seatmap:7:gen", generationTTL).SetVal(true)
	mock.ExpectDel("seatmap:7").SetVal(1)
	c.Invalidate(context.Background(), 7)

	mock.ExpectIncr("seatmap:8:gen").SetErr(errors.New("timeout"))
	mock.ExpectDel("seatmap:8").SetErr(errors.New("timeout"))
	c.Invalidate(context.Background(), 8)
	assert.NoError(t, mock.ExpectationsWereMet())
}
