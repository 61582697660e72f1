package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type requestRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.TutoringRequest) error
	FindByID(ctx context.Context, id string) (*models.TutoringRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.TutoringRequest, int, error)
}

type sessionWriter interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	ListByRequest(ctx context.Context, exec sqlx.ExtContext, requestID string) ([]models.Session, error)
}

type tutorFinder interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
}

// RequestService handles tutee request intake and lookup.
type RequestService struct {
	tx        txProvider
	requests  requestRepository
	sessions  sessionWriter
	tutors    tutorFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs a RequestService.
func NewRequestService(tx txProvider, requests requestRepository, sessions sessionWriter, tutors tutorFinder, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{tx: tx, requests: requests, sessions: sessions, tutors: tutors, validator: validate, logger: logger}
}

// Create stores a request and one Pending session per subject atomically.
func (s *RequestService) Create(ctx context.Context, payload dto.CreateRequestPayload) (*models.RequestDetail, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if err := payload.Availability.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability")
	}

	preferred := normalizeOptional(payload.PreferredTutorID)
	if preferred != nil {
		if _, err := s.tutors.FindByID(ctx, *preferred); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrValidation, "preferred tutor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferred tutor")
		}
	}

	availability, err := encodeJSON(payload.Availability.Normalize(), "{}")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode availability")
	}

	req := &models.TutoringRequest{
		TuteeName:        strings.TrimSpace(payload.TuteeName),
		TuteeEmail:       strings.TrimSpace(payload.TuteeEmail),
		Kind:             models.RequestKind(payload.Kind),
		PreferredTutorID: preferred,
		Availability:     availability,
		Notes:            normalizeOptional(payload.Notes),
	}
	sessions := make([]models.Session, 0, len(payload.Sessions))
	for _, input := range payload.Sessions {
		sessions = append(sessions, models.Session{
			Subject: strings.TrimSpace(input.Subject),
			Topic:   normalizeOptional(input.Topic),
			Status:  models.SessionStatusPending,
		})
	}

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.requests.Create(ctx, tx, req); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
		}
		for i := range sessions {
			sessions[i].RequestID = req.ID
		}
		if err := s.sessions.CreateBatch(ctx, tx, sessions); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sessions")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tutoring request submitted",
		zap.String("request_id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.Int("sessions", len(sessions)),
	)
	return &models.RequestDetail{TutoringRequest: *req, Sessions: sessions}, nil
}

// Get returns a request with its sessions.
func (s *RequestService) Get(ctx context.Context, id string) (*models.RequestDetail, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	sessions, err := s.sessions.ListByRequest(ctx, nil, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	return &models.RequestDetail{TutoringRequest: *req, Sessions: sessions}, nil
}

// List returns requests plus pagination data.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.TutoringRequest, *models.Pagination, error) {
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
