package handlers

import (
	"errors"
	"net/http"

	"simple_calculator/internal/calculator"
	"simple_calculator/internal/models"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK      = "ok"
	statusPressed = "pressed"
	statusReset   = "reset"

	errPressKey        = "failed to press key"
	errResetCalculator = "failed to reset calculator"
	errGetState        = "failed to load state"
	errInvalidBodyPref = "invalid body: "

	maxKeysPerRequest = 256
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// pressFailed maps a press error to a response. Unknown labels are the
// client's fault; anything else is ours.
func (h *Handler) pressFailed(c *gin.Context, err error, keys []string) {
	if errors.Is(err, calculator.ErrUnknownKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, errPressKey, "calculator_press_failed", err,
		"user_id", userID(c), "keys", keys)
}

func respondWithState(c *gin.Context, status string, st models.CalculatorState) {
	c.JSON(http.StatusOK, gin.H{"status": status, "state": st})
}

// PressRequest is the payload of a single button press.
type PressRequest struct {
	// Button label: 0-9 . AC +/- % ÷ × - + =
	Key string `json:"key" binding:"required" example:"7"`
}

// PressKeysRequest is the payload of a button sequence.
type PressKeysRequest struct {
	Keys []string `json:"keys" binding:"required,min=1,max=256" example:"7,+,3,="`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get calculator state
// @Description  Returns the stored state, or a fresh calculator when none exists.
// @Tags         calculator
// @Produce      json
// @Success      200  {object}  models.CalculatorState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/calculator/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx, userID(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "calculator_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Press a button
// @Tags         calculator
// @Accept       json
// @Produce      json
// @Param        body  body      PressRequest  true  "Button label"
// @Success      200   {object}  map[string]interface{}  "status, state"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/calculator/press [post]
// @Security     BearerAuth
func (h *Handler) pressKey(c *gin.Context) {
	var req PressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st, err := h.services.Calculator.Press(c.Request.Context(), userID(c), req.Key)
	if err != nil {
		h.pressFailed(c, err, []string{req.Key})
		return
	}
	respondWithState(c, statusPressed, st)
}

// @Summary      Press a sequence of buttons
// @Description  Every label is validated before any is applied.
// @Tags         calculator
// @Accept       json
// @Produce      json
// @Param        body  body      PressKeysRequest  true  "Button labels in order"
// @Success      200   {object}  map[string]interface{}  "status, state"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/calculator/keys [post]
// @Security     BearerAuth
func (h *Handler) pressKeys(c *gin.Context) {
	var req PressKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	st, err := h.services.Calculator.PressSequence(c.Request.Context(), userID(c), req.Keys)
	if err != nil {
		h.pressFailed(c, err, req.Keys)
		return
	}
	respondWithState(c, statusPressed, st)
}

// @Summary      Reset calculator
// @Description  Same as pressing AC.
// @Tags         calculator
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/calculator/reset [post]
// @Security     BearerAuth
func (h *Handler) resetCalculator(c *gin.Context) {
	st, err := h.services.Calculator.Reset(c.Request.Context(), userID(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errResetCalculator, "calculator_reset_failed", err)
		return
	}
	respondWithState(c, statusReset, st)
}

// @Summary      Keypad layout
// @Description  Button labels row by row, top to bottom.
// @Tags         calculator
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "rows"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/calculator/layout [get]
// @Security     BearerAuth
func (h *Handler) getLayout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rows": calculator.Layout()})
}
