package service

import (
	"context"
	"fmt"
	"time"

	"simple_calculator/internal/logger"
	"simple_calculator/internal/models"
	"simple_calculator/internal/repository"

	"github.com/google/uuid"
)

// SweeperService drops calculator state nobody has touched for idleTTL, so
// a session does not outlive its user.
type SweeperService struct {
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	locks     *userLocks
	idleTTL   time.Duration
	now       func() time.Time
}

func NewSweeperService(stateRepo repository.StateRepo, eventRepo repository.EventRepo, locks *userLocks, idleTTL time.Duration) *SweeperService {
	if locks == nil {
		locks = newUserLocks()
	}
	return &SweeperService{
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		locks:     locks,
		idleTTL:   idleTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every tick until ctx is cancelled. It returns at once when
// expiry is disabled (idleTTL <= 0) or tick is not positive.
func (s *SweeperService) Run(ctx context.Context, tick time.Duration) {
	if s.idleTTL <= 0 || tick <= 0 {
		return
	}
	log := logger.Get(logger.InfoLevel)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Errorf("sweep idle calculator state: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("expired %d idle calculator session(s)", n)
			}
		}
	}
}

// Sweep expires every state older than idleTTL and returns how many were
// removed. A state touched after the listing is left alone.
func (s *SweeperService) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.idleTTL)

	ids, err := s.stateRepo.ListIdle(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		ok, err := s.expire(ctx, id, cutoff, now)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (s *SweeperService) expire(ctx context.Context, userID int, cutoff, now time.Time) (bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	deleted, err := s.stateRepo.DeleteIfIdle(ctx, userID, cutoff)
	if err != nil {
		return false, fmt.Errorf("expire state of user %d: %w", userID, err)
	}
	if !deleted {
		return false, nil
	}
	ev := models.CalculatorEvent{
		EventID:     uuid.NewString(),
		UserID:      userID,
		OccurredAt:  now,
		Type:        models.EventExpired,
		Description: "Calculator session expired",
		Metadata:    map[string]any{"idle_ttl": s.idleTTL.String()},
	}
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		return true, err
	}
	return true, nil
}
