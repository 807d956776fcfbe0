package booking

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL repositories.  A
// transaction holds the store mutex for its whole duration and restores a
// snapshot on error; the unique keys on seat_locks(show_id, seat_id) and
// booking_seats(show_id, seat_id, active) are reproduced as ErrDuplicate.
type memStore struct {
	mu sync.Mutex

	shows        map[uint64]model.Show
	seats        map[uint64]model.Seat
	locks        map[uint64]model.SeatLock
	bookings     map[uint64]model.Booking
	bookingSeats []memBookingSeat
	nextLock     uint64
	nextBooking  uint64

	// beforeInsertLocks runs inside InsertBulk before the key check.
	beforeInsertLocks func()
	// afterLockRead runs inside ListForUpdate once the rows are read.
	afterLockRead func()
	txErr         error
	txOpts        []*sql.TxOptions
}

type memBookingSeat struct {
	model.BookingSeat
	active bool
}

type memSnapshot struct {
	locks        map[uint64]model.SeatLock
	bookings     map[uint64]model.Booking
	bookingSeats []memBookingSeat
	nextLock     uint64
	nextBooking  uint64
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		shows:    map[uint64]model.Show{},
		seats:    map[uint64]model.Seat{},
		locks:    map[uint64]model.SeatLock{},
		bookings: map[uint64]model.Booking{},
	}
}

func (m *memStore) repos() Repositories {
	return Repositories{Tx: m, Shows: m, Seats: m, Locks: m, Bookings: m}
}

func (m *memStore) addShow(s model.Show) { m.shows[s.ID] = s }
func (m *memStore) addSeat(s model.Seat) { m.seats[s.ID] = s }

// guard locks the store unless ctx is already inside a transaction.
func (m *memStore) guard(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) WithTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txOpts = append(m.txOpts, opts)
	if m.txErr != nil {
		return m.txErr
	}
	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		locks:        make(map[uint64]model.SeatLock, len(m.locks)),
		bookings:     make(map[uint64]model.Booking, len(m.bookings)),
		bookingSeats: append([]memBookingSeat(nil), m.bookingSeats...),
		nextLock:     m.nextLock,
		nextBooking:  m.nextBooking,
	}
	for k, v := range m.locks {
		s.locks[k] = v
	}
	for k, v := range m.bookings {
		s.bookings[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.locks, m.bookings, m.bookingSeats = s.locks, s.bookings, s.bookingSeats
	m.nextLock, m.nextBooking = s.nextLock, s.nextBooking
}

func idSet(ids []uint64) map[uint64]bool {
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// ShowReader

func (m *memStore) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	defer m.guard(ctx)()
	s, ok := m.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	return &s, nil
}

// SeatReader

func (m *memStore) GetByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error) {
	defer m.guard(ctx)()
	var out []model.Seat
	for _, id := range ids {
		if s, ok := m.seats[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error) {
	defer m.guard(ctx)()
	var out []model.Seat
	for _, s := range m.seats {
		if s.ScreenID == screenID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LockStore

func (m *memStore) sortedLocks(keep func(model.SeatLock) bool) []model.SeatLock {
	var out []model.SeatLock
	for _, l := range m.locks {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out
}

func (m *memStore) ListForUpdate(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.SeatLock, error) {
	defer m.guard(ctx)()
	want := idSet(seatIDs)
	out := m.sortedLocks(func(l model.SeatLock) bool { return l.ShowID == showID && want[l.SeatID] })
	if m.afterLockRead != nil {
		m.afterLockRead()
	}
	return out, nil
}

func (m *memStore) ListHeldForUpdate(ctx context.Context, showID uint64, seatIDs []uint64, holder string, now time.Time) ([]model.SeatLock, error) {
	defer m.guard(ctx)()
	want := idSet(seatIDs)
	return m.sortedLocks(func(l model.SeatLock) bool {
		return l.ShowID == showID && want[l.SeatID] && l.Holder == holder && l.ExpiresAt.After(now)
	}), nil
}

func (m *memStore) ListActiveByShow(ctx context.Context, showID uint64, now time.Time) ([]model.SeatLock, error) {
	defer m.guard(ctx)()
	return m.sortedLocks(func(l model.SeatLock) bool { return l.ShowID == showID && l.ExpiresAt.After(now) }), nil
}

func (m *memStore) InsertBulk(ctx context.Context, locks []model.SeatLock) error {
	defer m.guard(ctx)()
	if m.beforeInsertLocks != nil {
		m.beforeInsertLocks()
	}
	for _, l := range locks {
		for _, e := range m.locks {
			if e.ShowID == l.ShowID && e.SeatID == l.SeatID {
				return repository.ErrDuplicate
			}
		}
		m.nextLock++
		l.ID = m.nextLock
		m.locks[l.ID] = l
	}
	return nil
}

func (m *memStore) ExtendByIDs(ctx context.Context, ids []uint64, expiresAt time.Time) error {
	defer m.guard(ctx)()
	for _, id := range ids {
		if l, ok := m.locks[id]; ok {
			l.ExpiresAt = expiresAt
			m.locks[id] = l
		}
	}
	return nil
}

func (m *memStore) DeleteByIDs(ctx context.Context, ids []uint64) error {
	defer m.guard(ctx)()
	for _, id := range ids {
		delete(m.locks, id)
	}
	return nil
}

func (m *memStore) DeleteByHolder(ctx context.Context, showID uint64, holder string) (int64, error) {
	defer m.guard(ctx)()
	var n int64
	for id, l := range m.locks {
		if l.ShowID == showID && l.Holder == holder {
			delete(m.locks, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer m.guard(ctx)()
	var n int64
	for id, l := range m.locks {
		if l.Expired(now) {
			delete(m.locks, id)
			n++
		}
	}
	return n, nil
}

// BookingStore

func (m *memStore) activeSeats(showID uint64) []uint64 {
	var out []uint64
	for _, bs := range m.bookingSeats {
		if bs.ShowID == showID && bs.active {
			out = append(out, bs.SeatID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *memStore) BookedSeatIDs(ctx context.Context, showID uint64, seatIDs []uint64) ([]uint64, error) {
	defer m.guard(ctx)()
	want := idSet(seatIDs)
	var out []uint64
	for _, id := range m.activeSeats(showID) {
		if want[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// markBooked attaches seatID to a live booking of another session without
// taking the store mutex.
func (m *memStore) markBooked(showID, seatID uint64) {
	m.nextBooking++
	m.bookings[m.nextBooking] = model.Booking{ID: m.nextBooking, ShowID: showID, Status: model.BookingConfirmed}
	m.bookingSeats = append(m.bookingSeats, memBookingSeat{
		BookingSeat: model.BookingSeat{BookingID: m.nextBooking, ShowID: showID, SeatID: seatID},
		active:      true,
	})
}

func (m *memStore) ListBookedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error) {
	defer m.guard(ctx)()
	return m.activeSeats(showID), nil
}

func (m *memStore) Create(ctx context.Context, b *model.Booking, seatIDs []uint64) error {
	defer m.guard(ctx)()
	taken := idSet(m.activeSeats(b.ShowID))
	for _, id := range seatIDs {
		if taken[id] {
			return repository.ErrDuplicate
		}
	}
	m.nextBooking++
	b.ID = m.nextBooking
	m.bookings[b.ID] = *b
	for _, id := range seatIDs {
		m.bookingSeats = append(m.bookingSeats, memBookingSeat{
			BookingSeat: model.BookingSeat{BookingID: b.ID, ShowID: b.ShowID, SeatID: id},
			active:      b.Status != model.BookingCancelled,
		})
	}
	return nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	defer m.guard(ctx)()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (m *memStore) Cancel(ctx context.Context, id uint64) error {
	defer m.guard(ctx)()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = model.BookingCancelled
	m.bookings[id] = b
	for i := range m.bookingSeats {
		if m.bookingSeats[i].BookingID == id {
			m.bookingSeats[i].active = false
		}
	}
	return nil
}

func (m *memStore) SeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error) {
	defer m.guard(ctx)()
	var out []uint64
	for _, bs := range m.bookingSeats {
		if bs.BookingID == bookingID {
			out = append(out, bs.SeatID)
		}
	}
	return out, nil
}

func (m *memStore) summary(b model.Booking) model.BookingSummary {
	show := m.shows[b.ShowID]
	s := model.BookingSummary{
		ID:               b.ID,
		ShowID:           b.ShowID,
		Status:           b.Status,
		TotalAmountCents: b.TotalAmountCents,
		CreatedAt:        b.CreatedAt,
		StartsAt:         show.StartsAt,
		ScreenID:         show.ScreenID,
	}
	for _, bs := range m.bookingSeats {
		if bs.BookingID == b.ID {
			seat := m.seats[bs.SeatID]
			s.Seats = append(s.Seats, model.BookedSeat{SeatID: seat.ID, RowLabel: seat.RowLabel, SeatNumber: seat.SeatNumber})
		}
	}
	return s
}

func (m *memStore) ListByUser(ctx context.Context, userID uint64) ([]model.BookingSummary, error) {
	defer m.guard(ctx)()
	var out []model.BookingSummary
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, m.summary(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.BookingSummary, error) {
	defer m.guard(ctx)()
	b, ok := m.bookings[id]
	if !ok || b.UserID != userID {
		return nil, repository.ErrBookingNotFound
	}
	s := m.summary(b)
	return &s, nil
}

// lockCount and confirmedSeats are read by tests after the service calls
// return.
func (m *memStore) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *memStore) confirmedSeats(showID uint64) map[uint64][]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uint64][]uint64{}
	for _, bs := range m.bookingSeats {
		if bs.ShowID == showID && m.bookings[bs.BookingID].Status == model.BookingConfirmed {
			out[bs.BookingID] = append(out[bs.BookingID], bs.SeatID)
		}
	}
	return out
}

// fakeCache records what the service stores.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[uint64][]model.SeatAvailability
	ttls        map[uint64]time.Duration
	gens        map[uint64]int64
	invalidated []uint64

	// afterGeneration runs once the generation has been handed out.
	afterGeneration func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: map[uint64][]model.SeatAvailability{},
		ttls:    map[uint64]time.Duration{},
		gens:    map[uint64]int64{},
	}
}

func (c *fakeCache) Get(_ context.Context, showID uint64) ([]model.SeatAvailability, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[showID]
	return v, ok
}

func (c *fakeCache) Generation(_ context.Context, showID uint64) (int64, bool) {
	c.mu.Lock()
	gen := c.gens[showID]
	hook := c.afterGeneration
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return gen, true
}

func (c *fakeCache) Set(_ context.Context, showID uint64, gen int64, seats []model.SeatAvailability, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[showID] != gen {
		return
	}
	c.entries[showID] = seats
	c.ttls[showID] = ttl
}

func (c *fakeCache) Invalidate(_ context.Context, showID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, showID)
	c.gens[showID]++
	c.invalidated = append(c.invalidated, showID)
}

// fakePublisher records events.
type fakePublisher struct {
	mu        sync.Mutex
	confirmed []model.Booking
	cancelled []model.Booking
	err       error
}

func (p *fakePublisher) BookingConfirmed(_ context.Context, b model.Booking, _ []uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, b)
	return p.err
}

func (p *fakePublisher) BookingCancelled(_ context.Context, b model.Booking, _ []uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, b)
	return p.err
}
