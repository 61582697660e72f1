package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/response"
)

type assignmentService interface {
	Assign(ctx context.Context, sessionID string, req dto.AssignSessionRequest) (*dto.AssignmentOutcome, error)
	Unassign(ctx context.Context, sessionID string) (*dto.AssignmentOutcome, error)
	MarkNoMatch(ctx context.Context, sessionID string) (*dto.AssignmentOutcome, error)
	DeleteSession(ctx context.Context, sessionID string) (*dto.AssignmentOutcome, error)
}

// SessionHandler exposes the session assignment lifecycle.
type SessionHandler struct {
	assignments assignmentService
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(assignments assignmentService) *SessionHandler {
	return &SessionHandler{assignments: assignments}
}

// Assign godoc
// @Summary Match a session to a tutor
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.AssignSessionRequest true "Tutor to assign"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/{id}/assign [post]
func (h *SessionHandler) Assign(c *gin.Context) {
	var req dto.AssignSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	outcome, err := h.assignments.Assign(c.Request.Context(), c.Param("id"), req)
	respondOutcome(c, outcome, err)
}

// Unassign godoc
// @Summary Return a session to Pending
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/assign [delete]
func (h *SessionHandler) Unassign(c *gin.Context) {
	outcome, err := h.assignments.Unassign(c.Request.Context(), c.Param("id"))
	respondOutcome(c, outcome, err)
}

// NoMatch godoc
// @Summary Mark a session as No Match
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/no-match [post]
func (h *SessionHandler) NoMatch(c *gin.Context) {
	outcome, err := h.assignments.MarkNoMatch(c.Request.Context(), c.Param("id"))
	respondOutcome(c, outcome, err)
}

// Delete godoc
// @Summary Delete a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	outcome, err := h.assignments.DeleteSession(c.Request.Context(), c.Param("id"))
	respondOutcome(c, outcome, err)
}

func respondOutcome(c *gin.Context, outcome *dto.AssignmentOutcome, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
