package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/ledger"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type requestLocker interface {
	LockByID(ctx context.Context, tx sqlx.ExtContext, id string) (*models.TutoringRequest, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type sessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByRequest(ctx context.Context, exec sqlx.ExtContext, requestID string) ([]models.Session, error)
	UpdateAssignment(ctx context.Context, exec sqlx.ExtContext, id string, tutorID *string, status models.SessionStatus) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type tutorLoadWriter interface {
	FindByIDWith(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Tutor, error)
	ApplyLoadDelta(ctx context.Context, exec sqlx.ExtContext, tutorID string, change int) error
}

// Operation labels used for logging and metrics.
const (
	opAssign        = "assign"
	opUnassign      = "unassign"
	opNoMatch       = "no_match"
	opDeleteSession = "delete_session"
	opDeleteRequest = "delete_request"
)

// AssignmentService changes session assignments and keeps tutor loads in step.
// Each operation locks the owning request row for the duration of its
// transaction, so ledger inputs computed from the request's sessions cannot
// go stale before the resulting deltas are written.
type AssignmentService struct {
	tx        txProvider
	requests  requestLocker
	sessions  sessionStore
	tutors    tutorLoadWriter
	cache     candidateInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(
	tx txProvider,
	requests requestLocker,
	sessions sessionStore,
	tutors tutorLoadWriter,
	cache candidateInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tx:        tx,
		requests:  requests,
		sessions:  sessions,
		tutors:    tutors,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Assign matches a session to a tutor. Re-assigning the current tutor is a no-op.
func (s *AssignmentService) Assign(ctx context.Context, sessionID string, req dto.AssignSessionRequest) (outcome *dto.AssignmentOutcome, err error) {
	defer func() { s.metrics.RecordAssignment(opAssign, err) }()
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	requestID, err := s.owningRequest(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		sessions, current, err := s.lockSessions(ctx, tx, requestID, sessionID)
		if err != nil {
			return err
		}

		tutor, err := s.tutors.FindByIDWith(ctx, tx, req.TutorID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
		}
		if !tutor.Active {
			return appErrors.Clone(appErrors.ErrTutorInactive, "")
		}

		prev := current.AssignedTutor()
		if prev == tutor.ID && current.Status == models.SessionStatusMatched {
			outcome = &dto.AssignmentOutcome{Session: current, RequestID: requestID, LoadChanges: []ledger.Delta{}}
			return nil
		}

		nextAlreadyHandling := countTutorSessions(sessions, tutor.ID) > 0
		var deltas []ledger.Delta
		if prev == "" || prev == tutor.ID {
			deltas = []ledger.Delta{ledger.OnAssign(tutor.ID, requestID, nextAlreadyHandling)}
		} else {
			prevRemaining := countTutorSessions(sessions, prev) - 1
			deltas = ledger.OnReassign(prev, tutor.ID, requestID, prevRemaining, nextAlreadyHandling)
		}

		tutorID := tutor.ID
		if err := s.sessions.UpdateAssignment(ctx, tx, sessionID, &tutorID, models.SessionStatusMatched); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
		}
		applied, err := s.applyDeltas(ctx, tx, deltas)
		if err != nil {
			return err
		}

		current.TutorID = &tutorID
		current.Status = models.SessionStatusMatched
		outcome = &dto.AssignmentOutcome{Session: current, RequestID: requestID, LoadChanges: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, opAssign, outcome)
	return outcome, nil
}

// Unassign clears a session's tutor and returns it to Pending.
func (s *AssignmentService) Unassign(ctx context.Context, sessionID string) (outcome *dto.AssignmentOutcome, err error) {
	defer func() { s.metrics.RecordAssignment(opUnassign, err) }()
	return s.release(ctx, sessionID, models.SessionStatusPending, opUnassign)
}

// MarkNoMatch gives up on a session, releasing any tutor it held.
func (s *AssignmentService) MarkNoMatch(ctx context.Context, sessionID string) (outcome *dto.AssignmentOutcome, err error) {
	defer func() { s.metrics.RecordAssignment(opNoMatch, err) }()
	return s.release(ctx, sessionID, models.SessionStatusNoMatch, opNoMatch)
}

func (s *AssignmentService) release(ctx context.Context, sessionID string, status models.SessionStatus, op string) (*dto.AssignmentOutcome, error) {
	requestID, err := s.owningRequest(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var outcome *dto.AssignmentOutcome
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		sessions, current, err := s.lockSessions(ctx, tx, requestID, sessionID)
		if err != nil {
			return err
		}

		var deltas []ledger.Delta
		if prev := current.AssignedTutor(); prev != "" {
			remaining := countTutorSessions(sessions, prev) - 1
			deltas = append(deltas, ledger.OnUnassign(prev, requestID, remaining))
		}

		if err := s.sessions.UpdateAssignment(ctx, tx, sessionID, nil, status); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
		}
		applied, err := s.applyDeltas(ctx, tx, deltas)
		if err != nil {
			return err
		}

		current.TutorID = nil
		current.Status = status
		outcome = &dto.AssignmentOutcome{Session: current, RequestID: requestID, LoadChanges: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, op, outcome)
	return outcome, nil
}

// DeleteSession removes a session. Removing a request's last session removes
// the request as well.
func (s *AssignmentService) DeleteSession(ctx context.Context, sessionID string) (outcome *dto.AssignmentOutcome, err error) {
	defer func() { s.metrics.RecordAssignment(opDeleteSession, err) }()

	requestID, err := s.owningRequest(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		sessions, current, err := s.lockSessions(ctx, tx, requestID, sessionID)
		if err != nil {
			return err
		}

		var deltas []ledger.Delta
		if prev := current.AssignedTutor(); prev != "" {
			remaining := countTutorSessions(sessions, prev) - 1
			deltas = append(deltas, ledger.OnSessionDelete(prev, requestID, remaining))
		}

		lastSession := len(sessions) == 1
		if lastSession {
			err = s.requests.Delete(ctx, tx, requestID)
		} else {
			err = s.sessions.Delete(ctx, tx, sessionID)
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
		}

		applied, err := s.applyDeltas(ctx, tx, deltas)
		if err != nil {
			return err
		}
		outcome = &dto.AssignmentOutcome{RequestID: requestID, RequestDeleted: lastSession, LoadChanges: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, opDeleteSession, outcome)
	return outcome, nil
}

// DeleteRequest removes a request and all its sessions, releasing every tutor once.
func (s *AssignmentService) DeleteRequest(ctx context.Context, requestID string) (outcome *dto.AssignmentOutcome, err error) {
	defer func() { s.metrics.RecordAssignment(opDeleteRequest, err) }()

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if _, err := s.requests.LockByID(ctx, tx, requestID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "request not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock request")
		}
		sessions, err := s.sessions.ListByRequest(ctx, tx, requestID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
		}

		tutorIDs := make([]string, 0, len(sessions))
		for _, session := range sessions {
			tutorIDs = append(tutorIDs, session.AssignedTutor())
		}
		deltas := ledger.OnRequestDelete(requestID, tutorIDs)

		if err := s.requests.Delete(ctx, tx, requestID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
		}
		applied, err := s.applyDeltas(ctx, tx, deltas)
		if err != nil {
			return err
		}
		outcome = &dto.AssignmentOutcome{RequestID: requestID, RequestDeleted: true, LoadChanges: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, opDeleteRequest, outcome)
	return outcome, nil
}

func (s *AssignmentService) owningRequest(ctx context.Context, sessionID string) (string, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session.RequestID, nil
}

// lockSessions locks the request row and re-reads its sessions under the lock.
func (s *AssignmentService) lockSessions(ctx context.Context, tx *sqlx.Tx, requestID, sessionID string) ([]models.Session, *models.Session, error) {
	if _, err := s.requests.LockByID(ctx, tx, requestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock request")
	}
	sessions, err := s.sessions.ListByRequest(ctx, tx, requestID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	for i := range sessions {
		if sessions[i].ID == sessionID {
			current := sessions[i]
			return sessions, &current, nil
		}
	}
	return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
}

func (s *AssignmentService) applyDeltas(ctx context.Context, tx *sqlx.Tx, deltas []ledger.Delta) ([]ledger.Delta, error) {
	coalesced := ledger.Coalesce(deltas)
	for _, d := range coalesced {
		if err := s.tutors.ApplyLoadDelta(ctx, tx, d.TutorID, d.Change); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tutor load")
		}
	}
	if coalesced == nil {
		coalesced = []ledger.Delta{}
	}
	return coalesced, nil
}

func (s *AssignmentService) afterCommit(ctx context.Context, op string, outcome *dto.AssignmentOutcome) {
	s.metrics.RecordLoadChanges(op, outcome.LoadChanges)
	if pattern := invalidationPattern(op, outcome); pattern != "" && s.cache != nil {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate candidate cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
	fields := []zap.Field{zap.String("operation", op), zap.String("request_id", outcome.RequestID), zap.Int("load_changes", len(outcome.LoadChanges))}
	if outcome.Session != nil {
		fields = append(fields, zap.String("session_id", outcome.Session.ID))
	}
	s.logger.Info("assignment updated", fields...)
}

// invalidationPattern picks the cached rankings an operation makes stale. Load
// changes reorder every request's ranking; deletes change the subjects of (or
// remove) the owning request even when no tutor was involved.
func invalidationPattern(op string, outcome *dto.AssignmentOutcome) string {
	switch {
	case len(outcome.LoadChanges) > 0:
		return CandidateCachePattern("")
	case op == opDeleteSession || op == opDeleteRequest:
		return CandidateCachePattern(outcome.RequestID)
	default:
		return ""
	}
}
