package service

import (
	"context"
	"time"

	"simple_calculator/internal/calculator"
	"simple_calculator/internal/models"
	"simple_calculator/internal/repository"
)

type MonitoringService struct {
	stateRepo repository.StateRepo
}

func NewMonitoringService(stateRepo repository.StateRepo) *MonitoringService {
	return &MonitoringService{stateRepo: stateRepo}
}

// GetState returns the latest stored state of userID, or the state of a
// fresh calculator when nothing is stored.
func (s *MonitoringService) GetState(ctx context.Context, userID int) (models.CalculatorState, error) {
	state, err := s.stateRepo.Load(ctx, userID)
	if err != nil {
		return models.CalculatorState{}, err
	}
	if state.UserID == 0 {
		return baselineState(userID), nil
	}
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

func baselineState(userID int) models.CalculatorState {
	return stateFromEngine(userID, calculator.New(), time.Now().UTC())
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
