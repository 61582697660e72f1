package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/ledger"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/jobs"
)

// LoadAuditJobType identifies audit jobs on the background queue.
const LoadAuditJobType = "load_audit"

type tutorLoadAuditor interface {
	LockLoads(ctx context.Context, exec sqlx.ExtContext) (int, error)
	ListLoads(ctx context.Context, exec sqlx.ExtContext) ([]models.TutorLoad, error)
	SetLoad(ctx context.Context, exec sqlx.ExtContext, tutorID string, count int) error
}

// AuditService compares stored tutor loads with the loads implied by current
// assignments and optionally repairs them.
type AuditService struct {
	tx          txProvider
	tutors      tutorLoadAuditor
	assignments assignmentLister
	cache       candidateInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuditService constructs an AuditService.
func NewAuditService(tx txProvider, tutors tutorLoadAuditor, assignments assignmentLister, cache candidateInvalidator, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{tx: tx, tutors: tutors, assignments: assignments, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// Run performs one audit. Tutor rows stay locked from the first read until the
// repair commits, so in-flight load deltas are either counted or applied after.
func (s *AuditService) Run(ctx context.Context, repair bool) (*models.LoadAuditReport, error) {
	report := &models.LoadAuditReport{ID: uuid.NewString(), StartedAt: s.now().UTC(), Discrepancies: []models.LoadDiscrepancy{}}

	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if _, err := s.tutors.LockLoads(ctx, tx); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock tutor loads")
		}
		loads, err := s.tutors.ListLoads(ctx, tx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutor loads")
		}
		rows, err := s.assignments.ListAssignments(ctx, tx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
		}
		expected := ledger.Expected(toLedgerAssignments(rows))

		report.TutorsChecked = len(loads)
		for _, load := range loads {
			want := expected[load.TutorID]
			if load.TuteeCount == want {
				continue
			}
			report.Discrepancies = append(report.Discrepancies, models.LoadDiscrepancy{
				TutorID:  load.TutorID,
				FullName: load.FullName,
				Stored:   load.TuteeCount,
				Expected: want,
			})
		}

		if !repair || len(report.Discrepancies) == 0 {
			return nil
		}
		for _, d := range report.Discrepancies {
			if err := s.tutors.SetLoad(ctx, tx, d.TutorID, d.Expected); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repair tutor load")
			}
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.FinishedAt = s.now().UTC()

	remaining := len(report.Discrepancies)
	if report.Repaired {
		remaining = 0
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, CandidateCachePattern("")); err != nil {
				s.logger.Warn("failed to invalidate candidate cache", zap.Error(err))
			}
		}
	}
	s.metrics.SetLoadDiscrepancies(remaining)

	fields := []zap.Field{
		zap.String("audit_id", report.ID),
		zap.Int("tutors_checked", report.TutorsChecked),
		zap.Int("discrepancies", len(report.Discrepancies)),
		zap.Bool("repaired", report.Repaired),
	}
	if len(report.Discrepancies) > 0 {
		s.logger.Warn("tutor load discrepancies found", fields...)
	} else {
		s.logger.Info("tutor load audit clean", fields...)
	}
	return report, nil
}

// HandleJob adapts Run to the background queue. The payload, when a bool,
// overrides the repair flag.
func (s *AuditService) HandleJob(defaultRepair bool) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		repair := defaultRepair
		if v, ok := job.Payload.(bool); ok {
			repair = v
		}
		_, err := s.Run(ctx, repair)
		return err
	}
}
