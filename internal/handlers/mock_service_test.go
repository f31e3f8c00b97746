package handlers

import (
	"context"
	"net/http"
	"time"

	"simple_calculator/internal/logger"
	"simple_calculator/internal/models"
	"simple_calculator/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockCalculator struct {
	state models.CalculatorState
	err   error

	lastUserID int
	lastKeys   []string
	pressCalls int
	seqCalls   int
	resetCalls int
}

func (m *mockCalculator) Press(ctx context.Context, userID int, key string) (models.CalculatorState, error) {
	m.pressCalls++
	m.lastUserID = userID
	m.lastKeys = []string{key}
	return m.state, m.err
}
func (m *mockCalculator) PressSequence(ctx context.Context, userID int, keys []string) (models.CalculatorState, error) {
	m.seqCalls++
	m.lastUserID = userID
	m.lastKeys = keys
	return m.state, m.err
}
func (m *mockCalculator) Reset(ctx context.Context, userID int) (models.CalculatorState, error) {
	m.resetCalls++
	m.lastUserID = userID
	return m.state, m.err
}

type mockMonitoring struct {
	state      models.CalculatorState
	err        error
	lastUserID int
}

func (m *mockMonitoring) GetState(ctx context.Context, userID int) (models.CalculatorState, error) {
	m.lastUserID = userID
	return m.state, m.err
}

type mockEventLog struct {
	resp       []models.CalculatorEvent
	err        error
	lastUserID int
	lastFrom   time.Time
	lastTo     time.Time
	lastType   string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.CalculatorEvent, error) {
	m.lastUserID = f.UserID
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, logger.Nop())
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
