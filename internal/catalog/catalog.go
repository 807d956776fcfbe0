// Package catalog schedules shows on screens and serves the public show
// listings.  Scheduling keeps the screen timetable free of overlaps: two
// shows on one screen never share a minute of [start, start+duration).
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/clock"
	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// DefaultPageSize applies when a search asks for no page size.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Transactor interface {
	WithTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error
}

// ShowStore is the persistence the catalog needs.  repository.ShowRepo
// implements it.
type ShowStore interface {
	GetDetail(ctx context.Context, id uint64) (*model.ShowDetail, error)
	GetForUpdate(ctx context.Context, id uint64) (*model.Show, error)
	ListByScreen(ctx context.Context, screenID uint64) ([]model.ShowDetail, error)
	Search(ctx context.Context, q repository.ShowSearchQuery) ([]model.ShowDetail, int64, error)
	FindOverlapping(ctx context.Context, screenID, excludeID uint64, start, end time.Time) ([]model.Show, error)
	Create(ctx context.Context, s *model.Show) error
	Reschedule(ctx context.Context, id uint64, startsAt time.Time, priceCents uint32) error
	Delete(ctx context.Context, id uint64) error
}

type ScreenLocker interface {
	GetForUpdate(ctx context.Context, id uint64) (*model.Screen, error)
}

type MovieReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
}

// Invalidator drops cached seat maps of a show.
type Invalidator interface {
	Invalidate(ctx context.Context, showID uint64)
}

// Service implements show scheduling and the public show reads.
type Service struct {
	tx      Transactor
	shows   ShowStore
	screens ScreenLocker
	movies  MovieReader
	cache   Invalidator
	clock   clock.Clock
}

// NewService wires a Service.  cache may be nil.
func NewService(tx Transactor, shows ShowStore, screens ScreenLocker, movies MovieReader, cache Invalidator, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{tx: tx, shows: shows, screens: screens, movies: movies, cache: cache, clock: clk}
}

// ScheduleShow creates a show of movieID on screenID.  The screen row is
// locked for the duration of the overlap check so that concurrent
// schedulers on the same screen run one after another.
func (s *Service) ScheduleShow(ctx context.Context, movieID, screenID uint64, startsAt time.Time, priceCents uint32) (*model.ShowDetail, error) {
	if movieID == 0 || screenID == 0 {
		return nil, fmt.Errorf("movie and screen are required: %w", ErrInvalidInput)
	}
	if startsAt.IsZero() || !startsAt.After(s.clock.Now()) {
		return nil, fmt.Errorf("start time must be in the future: %w", ErrInvalidInput)
	}
	show := &model.Show{MovieID: movieID, ScreenID: screenID, StartsAt: startsAt.UTC(), PriceCents: priceCents}
	err := s.tx.WithTx(ctx, nil, func(ctx context.Context) error {
		if _, err := s.screens.GetForUpdate(ctx, screenID); err != nil {
			return err
		}
		movie, err := s.movies.GetByID(ctx, movieID)
		if err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, screenID, 0, show.StartsAt, movie.Duration()); err != nil {
			return err
		}
		return s.shows.Create(ctx, show)
	})
	if err != nil {
		return nil, translate(err)
	}
	logging.FromContext(ctx).WithField("show_id", show.ID).Info("show scheduled")
	return s.GetShow(ctx, show.ID)
}

// RescheduleShow moves a show and updates its price.  The overlap rule is
// the one of ScheduleShow, ignoring the show itself.
func (s *Service) RescheduleShow(ctx context.Context, showID uint64, startsAt time.Time, priceCents uint32) (*model.ShowDetail, error) {
	if startsAt.IsZero() || !startsAt.After(s.clock.Now()) {
		return nil, fmt.Errorf("start time must be in the future: %w", ErrInvalidInput)
	}
	err := s.tx.WithTx(ctx, nil, func(ctx context.Context) error {
		show, err := s.shows.GetForUpdate(ctx, showID)
		if err != nil {
			return err
		}
		if _, err := s.screens.GetForUpdate(ctx, show.ScreenID); err != nil {
			return err
		}
		movie, err := s.movies.GetByID(ctx, show.MovieID)
		if err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, show.ScreenID, showID, startsAt.UTC(), movie.Duration()); err != nil {
			return err
		}
		err = s.shows.Reschedule(ctx, showID, startsAt.UTC(), priceCents)
		if errors.Is(err, repository.ErrNoChange) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return s.GetShow(ctx, showID)
}

// DeleteShow removes a show nobody has booked or locked.
func (s *Service) DeleteShow(ctx context.Context, showID uint64) error {
	err := s.tx.WithTx(ctx, nil, func(ctx context.Context) error {
		return s.shows.Delete(ctx, showID)
	})
	if err != nil {
		return translate(err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, showID)
	}
	logging.FromContext(ctx).WithField("show_id", showID).Info("show deleted")
	return nil
}

// GetShow returns a single show with its movie, screen and theater.
func (s *Service) GetShow(ctx context.Context, showID uint64) (*model.ShowDetail, error) {
	d, err := s.shows.GetDetail(ctx, showID)
	if err != nil {
		return nil, translate(err)
	}
	return d, nil
}

// ListShowsByScreen returns the timetable of a screen.
func (s *Service) ListShowsByScreen(ctx context.Context, screenID uint64) ([]model.ShowDetail, error) {
	items, err := s.shows.ListByScreen(ctx, screenID)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	return items, nil
}

// SearchQuery holds the public search filters.  Zero Page and PageSize
// select the first page of DefaultPageSize items.
type SearchQuery struct {
	Title    string
	Theater  string
	Screen   string
	Page     int
	PageSize int
}

// SearchResult is one page of matching shows.
type SearchResult struct {
	Items    []model.ShowDetail `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// SearchShows lists upcoming shows matching q ordered by start time.
func (s *Service) SearchShows(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	items, total, err := s.shows.Search(ctx, repository.ShowSearchQuery{
		Title:    q.Title,
		Theater:  q.Theater,
		Screen:   q.Screen,
		From:     s.clock.Now(),
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("search shows: %w", err)
	}
	return &SearchResult{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *Service) checkOverlap(ctx context.Context, screenID, excludeID uint64, start time.Time, d time.Duration) error {
	end := start.Add(d)
	overlaps, err := s.shows.FindOverlapping(ctx, screenID, excludeID, start, end)
	if err != nil {
		return err
	}
	if len(overlaps) > 0 {
		return fmt.Errorf("screen %d already has show %d at that time: %w", screenID, overlaps[0].ID, ErrConflict)
	}
	return nil
}

// translate maps repository sentinels onto the catalog error kinds.
func translate(err error) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, repository.ErrShowNotFound),
		errors.Is(err, repository.ErrScreenNotFound),
		errors.Is(err, repository.ErrMovieNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("show has bookings or seat locks: %w", ErrConflict)
	case errors.Is(err, repository.ErrDeadlock):
		return fmt.Errorf("concurrent update, retry: %w", ErrConflict)
	}
	return err
}
