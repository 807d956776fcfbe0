package catalog

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/clock"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeStore keeps shows in memory and answers overlap queries the way
// ShowRepo.FindOverlapping does.
type fakeStore struct {
	movies      map[uint64]model.Movie
	screens     map[uint64]model.Screen
	shows       map[uint64]model.Show
	deps        map[uint64]bool
	nextID      uint64
	lockedScr   []uint64
	txCount     int
	invalidated []uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		movies:  map[uint64]model.Movie{1: {ID: 1, Title: "Heat", DurationMinutes: 120}},
		screens: map[uint64]model.Screen{10: {ID: 10, TheaterID: 1, Name: "A"}},
		shows:   map[uint64]model.Show{},
		deps:    map[uint64]bool{},
		nextID:  100,
	}
}

func (f *fakeStore) WithTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context) error) error {
	f.txCount++
	return fn(ctx)
}

func (f *fakeStore) detail(s model.Show) model.ShowDetail {
	m := f.movies[s.MovieID]
	return model.ShowDetail{
		ID: s.ID, MovieID: s.MovieID, MovieTitle: m.Title, DurationMinutes: m.DurationMinutes,
		ScreenID: s.ScreenID, ScreenName: f.screens[s.ScreenID].Name,
		StartsAt: s.StartsAt, EndsAt: s.StartsAt.Add(m.Duration()), PriceCents: s.PriceCents,
	}
}

func (f *fakeStore) GetDetail(_ context.Context, id uint64) (*model.ShowDetail, error) {
	s, ok := f.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	d := f.detail(s)
	return &d, nil
}

func (f *fakeStore) GetForUpdate(_ context.Context, id uint64) (*model.Show, error) {
	s, ok := f.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	return &s, nil
}

func (f *fakeStore) ListByScreen(_ context.Context, screenID uint64) ([]model.ShowDetail, error) {
	out := []model.ShowDetail{}
	for _, s := range f.shows {
		if s.ScreenID == screenID {
			out = append(out, f.detail(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeStore) Search(_ context.Context, q repository.ShowSearchQuery) ([]model.ShowDetail, int64, error) {
	all, _ := f.ListByScreen(context.Background(), 10)
	var out []model.ShowDetail
	for _, d := range all {
		if !d.StartsAt.Before(q.From) {
			out = append(out, d)
		}
	}
	total := int64(len(out))
	start := (q.Page - 1) * q.PageSize
	if start > len(out) {
		start = len(out)
	}
	end := start + q.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (f *fakeStore) FindOverlapping(_ context.Context, screenID, excludeID uint64, start, end time.Time) ([]model.Show, error) {
	var out []model.Show
	for _, s := range f.shows {
		if s.ScreenID != screenID || s.ID == excludeID {
			continue
		}
		sEnd := s.StartsAt.Add(f.movies[s.MovieID].Duration())
		if s.StartsAt.Before(end) && sEnd.After(start) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, s *model.Show) error {
	f.nextID++
	s.ID = f.nextID
	f.shows[s.ID] = *s
	return nil
}

func (f *fakeStore) Reschedule(_ context.Context, id uint64, startsAt time.Time, priceCents uint32) error {
	s, ok := f.shows[id]
	if !ok {
		return repository.ErrShowNotFound
	}
	if s.StartsAt.Equal(startsAt) && s.PriceCents == priceCents {
		return repository.ErrNoChange
	}
	s.StartsAt, s.PriceCents = startsAt, priceCents
	f.shows[id] = s
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uint64) error {
	if _, ok := f.shows[id]; !ok {
		return repository.ErrShowNotFound
	}
	if f.deps[id] {
		return repository.ErrConflict
	}
	delete(f.shows, id)
	return nil
}

type fakeScreens struct{ f *fakeStore }

func (s fakeScreens) GetForUpdate(_ context.Context, id uint64) (*model.Screen, error) {
	sc, ok := s.f.screens[id]
	if !ok {
		return nil, repository.ErrScreenNotFound
	}
	s.f.lockedScr = append(s.f.lockedScr, id)
	return &sc, nil
}

type fakeMovies struct{ f *fakeStore }

func (m fakeMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	mv, ok := m.f.movies[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return &mv, nil
}

func (f *fakeStore) Invalidate(_ context.Context, showID uint64) {
	f.invalidated = append(f.invalidated, showID)
}

func newTestService() (*Service, *fakeStore) {
	f := newFakeStore()
	return NewService(f, f, fakeScreens{f}, fakeMovies{f}, f, clock.NewManual(t0)), f
}

func TestScheduleShow(t *testing.T) {
	svc, f := newTestService()
	ctx := context.Background()

	d, err := svc.ScheduleShow(ctx, 1, 10, t0.Add(2*time.Hour), 900)
	require.NoError(t, err)
	assert.Equal(t, "Heat", d.MovieTitle)
	assert.Equal(t, t0.Add(4*time.Hour), d.EndsAt)
	assert.Equal(t, []uint64{10}, f.lockedScr)
	assert.Equal(t, 1, f.txCount)
}

func TestScheduleShowOverlap(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.ScheduleShow(ctx, 1, 10, t0.Add(2*time.Hour), 900)
	require.NoError(t, err)

	// starts one minute before the first show ends
	_, err = svc.ScheduleShow(ctx, 1, 10, t0.Add(3*time.Hour+59*time.Minute), 900)
	assert.ErrorIs(t, err, ErrConflict)

	// back to back is fine
	_, err = svc.ScheduleShow(ctx, 1, 10, t0.Add(4*time.Hour), 900)
	assert.NoError(t, err)
}

func TestScheduleShowValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ScheduleShow(ctx, 1, 10, t0.Add(-time.Minute), 900)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ScheduleShow(ctx, 0, 10, t0.Add(time.Hour), 900)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ScheduleShow(ctx, 2, 10, t0.Add(time.Hour), 900)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, repository.ErrMovieNotFound)

	_, err = svc.ScheduleShow(ctx, 1, 11, t0.Add(time.Hour), 900)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRescheduleShow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	first, err := svc.ScheduleShow(ctx, 1, 10, t0.Add(2*time.Hour), 900)
	require.NoError(t, err)
	second, err := svc.ScheduleShow(ctx, 1, 10, t0.Add(5*time.Hour), 900)
	require.NoError(t, err)

	// moving within its own slot does not collide with itself
	d, err := svc.RescheduleShow(ctx, first.ID, t0.Add(2*time.Hour+30*time.Minute), 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), d.PriceCents)

	_, err = svc.RescheduleShow(ctx, second.ID, t0.Add(3*time.Hour), 900)
	assert.ErrorIs(t, err, ErrConflict)

	// unchanged values are not an error
	_, err = svc.RescheduleShow(ctx, second.ID, t0.Add(5*time.Hour), 900)
	assert.NoError(t, err)

	_, err = svc.RescheduleShow(ctx, 999, t0.Add(9*time.Hour), 900)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteShow(t *testing.T) {
	svc, f := newTestService()
	ctx := context.Background()
	d, err := svc.ScheduleShow(ctx, 1, 10, t0.Add(2*time.Hour), 900)
	require.NoError(t, err)

	f.deps[d.ID] = true
	err = svc.DeleteShow(ctx, d.ID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, f.invalidated)

	f.deps[d.ID] = false
	require.NoError(t, svc.DeleteShow(ctx, d.ID))
	assert.Equal(t, []uint64{d.ID}, f.invalidated)

	err = svc.DeleteShow(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchShowsPaging(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.ScheduleShow(ctx, 1, 10, t0.Add(time.Duration(2+3*i)*time.Hour), 900)
		require.NoError(t, err)
	}

	res, err := svc.SearchShows(ctx, SearchQuery{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Page)

	res, err = svc.SearchShows(ctx, SearchQuery{Page: 2, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, res.PageSize)
	assert.Empty(t, res.Items)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(repository.ErrDeadlock), ErrConflict)
	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}
