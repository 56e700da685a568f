package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// DefaultRetries is how many times a transition is re-evaluated after losing
// an optimistic version race.
const DefaultRetries = 3

// Store is the persistence the service needs. Both writes must apply only
// if the stored version still equals expectedVersion, and return
// planerr.ErrConflict otherwise. UpdateMesocycleStatus writes m's status,
// version, updated_at and archived_at; UpdateSet writes one set plus m's
// version and updated_at.
type Store interface {
	GetMesocycle(ctx context.Context, id uuid.UUID) (*models.Mesocycle, error)
	UpdateMesocycleStatus(ctx context.Context, m *models.Mesocycle, expectedVersion int) error
	UpdateSet(ctx context.Context, m *models.Mesocycle, set *models.Set, expectedVersion int) error
}

// TransitionRequest is a status change addressed to a stored mesocycle.
type TransitionRequest struct {
	MesocycleID uuid.UUID
	Target      models.Status
	Confirm     bool
}

// Service applies transitions to stored mesocycles. Writes to one mesocycle
// are serialized in-process and guarded by the store's version check across
// processes.
type Service struct {
	store   Store
	logger  *slog.Logger
	retries int
	now     func() time.Time
	locks   keyedMutex
}

// NewService creates a Service. retries <= 0 selects DefaultRetries.
func NewService(store Store, retries int, logger *slog.Logger) *Service {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Service{
		store:   store,
		logger:  logger,
		retries: retries,
		now:     time.Now,
	}
}

// Transition moves the mesocycle to req.Target and returns the stored result.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*models.Mesocycle, error) {
	return s.update(ctx, req.MesocycleID, "transition", func(m *models.Mesocycle) (*models.Mesocycle, error) {
		return Apply(m, Request{Target: req.Target, Confirm: req.Confirm}, s.now())
	}, s.store.UpdateMesocycleStatus)
}

// Delete archives the mesocycle regardless of its current status.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*models.Mesocycle, error) {
	return s.update(ctx, id, "archive", func(m *models.Mesocycle) (*models.Mesocycle, error) {
		return Archive(m, s.now())
	}, s.store.UpdateMesocycleStatus)
}

// SetAmrap marks or clears AMRAP on one set of a stored mesocycle.
func (s *Service) SetAmrap(ctx context.Context, mesocycleID uuid.UUID, edit AmrapEdit) (*models.Mesocycle, error) {
	return s.update(ctx, mesocycleID, "amrap", func(m *models.Mesocycle) (*models.Mesocycle, error) {
		return EditAmrap(m, edit, s.now())
	}, func(ctx context.Context, next *models.Mesocycle, expected int) error {
		return s.store.UpdateSet(ctx, next, next.FindSet(edit.SetID), expected)
	})
}

type writeFunc func(ctx context.Context, next *models.Mesocycle, expectedVersion int) error

func (s *Service) update(ctx context.Context, id uuid.UUID, op string, fn func(*models.Mesocycle) (*models.Mesocycle, error), write writeFunc) (*models.Mesocycle, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, err := s.store.GetMesocycle(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		err = write(ctx, next, current.Version)
		if err == nil {
			s.logger.Info("mesocycle updated",
				"op", op,
				"mesocycle", id,
				"from", current.Status,
				"to", next.Status,
				"version", next.Version,
			)
			return next, nil
		}
		if !errors.Is(err, planerr.ErrConflict) {
			return nil, fmt.Errorf("updating mesocycle %s (%s): %w", id, op, err)
		}
		lastErr = err
		s.logger.Warn("mesocycle version conflict, retrying", "mesocycle", id, "attempt", attempt+1)
	}
	return nil, lastErr
}

// keyedMutex hands out one mutex per aggregate id and drops it when the
// last holder releases.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id uuid.UUID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*refLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
