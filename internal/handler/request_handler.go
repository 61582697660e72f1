package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/middleware"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, payload dto.CreateRequestPayload) (*models.RequestDetail, error)
	Get(ctx context.Context, id string) (*models.RequestDetail, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.TutoringRequest, *models.Pagination, error)
}

type candidateRanker interface {
	Candidates(ctx context.Context, requestID string, query dto.CandidateQuery) (*dto.CandidateList, error)
}

type requestRemover interface {
	DeleteRequest(ctx context.Context, requestID string) (*dto.AssignmentOutcome, error)
}

// RequestHandler exposes tutee request intake, lookup and ranking.
type RequestHandler struct {
	requests requestService
	ranker   candidateRanker
	remover  requestRemover
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(requests requestService, ranker candidateRanker, remover requestRemover) *RequestHandler {
	return &RequestHandler{requests: requests, ranker: ranker, remover: remover}
}

// List godoc
// @Summary List tutoring requests
// @Tags Requests
// @Produce json
// @Param kind query string false "TERM or SINGLE"
// @Param status query string false "Only requests with a session in this status"
// @Param tutor_id query string false "Only requests with a session matched to this tutor"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	filter := models.RequestFilter{
		Kind:    models.RequestKind(strings.ToUpper(strings.TrimSpace(c.Query("kind")))),
		Status:  models.SessionStatus(strings.TrimSpace(c.Query("status"))),
		TutorID: strings.TrimSpace(c.Query("tutor_id")),
	}
	filter.Page, filter.PageSize = pageParams(c)

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get request with sessions
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	detail, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Submit tutoring request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var payload dto.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	detail, err := h.requests.Create(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Delete godoc
// @Summary Delete request and release its tutors
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [delete]
func (h *RequestHandler) Delete(c *gin.Context) {
	outcome, err := h.remover.DeleteRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Candidates godoc
// @Summary Rank tutors for a request
// @Tags Matching
// @Produce json
// @Param id path string true "Request ID"
// @Param session_id query []string false "Restrict ranking to these sessions" collectionFormat(multi)
// @Param limit query int false "Maximum candidates returned"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/candidates [get]
func (h *RequestHandler) Candidates(c *gin.Context) {
	var query dto.CandidateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid candidate query"))
		return
	}
	list, err := h.ranker.Candidates(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, list.Cached)
	response.JSON(c, http.StatusOK, list, nil, middleware.Meta(c))
}
