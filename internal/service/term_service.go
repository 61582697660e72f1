package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/ledger"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type requestPurger interface {
	DeleteByKind(ctx context.Context, exec sqlx.ExtContext, kind models.RequestKind) (int, error)
}

type assignmentLister interface {
	ListAssignments(ctx context.Context, exec sqlx.ExtContext) ([]models.SessionAssignment, error)
}

type tutorLoadResetter interface {
	LockLoads(ctx context.Context, exec sqlx.ExtContext) (int, error)
	ResetLoads(ctx context.Context, exec sqlx.ExtContext, counts map[string]int, closeIntake bool) (int, error)
}

// TermService performs the end-of-term reset.
type TermService struct {
	tx          txProvider
	requests    requestPurger
	assignments assignmentLister
	tutors      tutorLoadResetter
	cache       candidateInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// NewTermService constructs a TermService.
func NewTermService(tx txProvider, requests requestPurger, assignments assignmentLister, tutors tutorLoadResetter, cache candidateInvalidator, logger *zap.Logger) *TermService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{tx: tx, requests: requests, assignments: assignments, tutors: tutors, cache: cache, logger: logger, now: time.Now}
}

// Reset deletes every term-long request and rebuilds tutor loads from the
// single-session requests that remain. With closeIntake every tutor's maximum
// drops to zero so nobody is shown as accepting until they opt back in.
func (s *TermService) Reset(ctx context.Context, closeIntake bool) (*models.TermResetSummary, error) {
	summary := &models.TermResetSummary{IntakeClosed: closeIntake}
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		deleted, err := s.requests.DeleteByKind(ctx, tx, models.RequestKindTerm)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term requests")
		}
		// term requests are deleted first so an assignment already holding
		// one of their rows finishes before the tutors are locked
		if _, err := s.tutors.LockLoads(ctx, tx); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock tutor loads")
		}
		remaining, err := s.assignments.ListAssignments(ctx, tx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list remaining assignments")
		}
		counts := ledger.Expected(toLedgerAssignments(remaining))
		reset, err := s.tutors.ResetLoads(ctx, tx, counts, closeIntake)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset tutor loads")
		}
		summary.RequestsDeleted = deleted
		summary.TutorsReset = reset
		return nil
	})
	if err != nil {
		return nil, err
	}
	summary.ResetAt = s.now().UTC()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, CandidateCachePattern("")); err != nil {
			s.logger.Warn("failed to invalidate candidate cache", zap.Error(err))
		}
	}
	s.logger.Info("term reset completed",
		zap.Int("requests_deleted", summary.RequestsDeleted),
		zap.Int("tutors_reset", summary.TutorsReset),
		zap.Bool("intake_closed", closeIntake),
	)
	return summary, nil
}
