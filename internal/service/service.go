package service

import (
	"context"
	"time"

	"simple_calculator/internal/models"
	"simple_calculator/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Calculator forwards button presses to a user's engine.
type Calculator interface {
	Press(ctx context.Context, userID int, key string) (models.CalculatorState, error)
	PressSequence(ctx context.Context, userID int, keys []string) (models.CalculatorState, error)
	Reset(ctx context.Context, userID int) (models.CalculatorState, error)
}

// Monitoring exposes read-only state.
type Monitoring interface {
	GetState(ctx context.Context, userID int) (models.CalculatorState, error)
}

// EventLog exposes the append-only audit log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.CalculatorEvent, error)
}

// Sweeper expires idle calculator state in the background.
// Stop via context cancellation for graceful shutdown.
type Sweeper interface {
	Run(ctx context.Context, tick time.Duration)
}

type Service struct {
	Calculator
	Monitoring
	EventLog
	Sweeper
	Authorization
}

// Options carries settings the services need from configuration.
type Options struct {
	SigningKey string
	TokenTTL   time.Duration
	IdleTTL    time.Duration
}

// NewService wires the repository layer into concrete services. Calculator
// and Sweeper share per-user locks so a sweep never races a key press.
func NewService(repos *repository.Repository, opts Options) *Service {
	locks := newUserLocks()
	return &Service{
		Calculator:    NewCalculatorService(repos.StateRepo, repos.EventRepo, locks),
		Monitoring:    NewMonitoringService(repos.StateRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Sweeper:       NewSweeperService(repos.StateRepo, repos.EventRepo, locks, opts.IdleTTL),
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
	}
}
