package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/matching"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type requestReader interface {
	FindByID(ctx context.Context, id string) (*models.TutoringRequest, error)
}

type sessionLister interface {
	ListByRequest(ctx context.Context, exec sqlx.ExtContext, requestID string) ([]models.Session, error)
}

type eligibleTutorLister interface {
	ListEligible(ctx context.Context) ([]models.Tutor, error)
}

type candidateCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// MatchingConfig tunes candidate ranking.
type MatchingConfig struct {
	CacheTTL      time.Duration
	MaxCandidates int
}

// MatchingService ranks eligible tutors for a tutoring request.
type MatchingService struct {
	requests  requestReader
	sessions  sessionLister
	tutors    eligibleTutorLister
	cache     candidateCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MatchingConfig
	now       func() time.Time
}

// NewMatchingService constructs a MatchingService. cache and metrics may be nil.
func NewMatchingService(
	requests requestReader,
	sessions sessionLister,
	tutors eligibleTutorLister,
	cache candidateCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg MatchingConfig,
) *MatchingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingService{
		requests:  requests,
		sessions:  sessions,
		tutors:    tutors,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Candidates returns every eligible tutor ordered best-first for the request.
// When query.SessionIDs is set only those sessions drive subject overlap.
func (s *MatchingService) Candidates(ctx context.Context, requestID string, query dto.CandidateQuery) (*dto.CandidateList, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid candidate query")
	}

	key := CandidateCacheKey(requestID, query.SessionIDs)
	if s.cache != nil {
		var cached dto.CandidateList
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			cached.Cached = true
			cached.Candidates = s.limit(cached.Candidates, query.Limit)
			return &cached, nil
		}
	}

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	sessions, err := s.sessions.ListByRequest(ctx, nil, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	considered, err := selectSessions(sessions, query.SessionIDs)
	if err != nil {
		return nil, err
	}

	core, err := toMatchingRequest(*req, sessions)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode request")
	}

	eligible, err := s.tutors.ListEligible(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}
	profiles := make(map[string]models.Tutor, len(eligible))
	candidates := make([]matching.Tutor, 0, len(eligible))
	for _, tutor := range eligible {
		converted, convErr := toMatchingTutor(tutor)
		if convErr != nil {
			s.logger.Warn("skipping tutor with unreadable profile", zap.String("tutor_id", tutor.ID), zap.Error(convErr))
			continue
		}
		profiles[tutor.ID] = tutor
		candidates = append(candidates, converted)
	}

	var sessionsToConsider []matching.Session
	if considered != nil {
		sessionsToConsider = toMatchingSessions(considered)
	}

	start := time.Now()
	ranked := matching.Score(candidates, core, sessionsToConsider)
	s.metrics.ObserveRanking(len(candidates), time.Since(start))

	views := make([]dto.CandidateView, 0, len(ranked))
	for i, r := range ranked {
		profile := profiles[r.Tutor.ID]
		views = append(views, dto.CandidateView{
			Rank:            i + 1,
			TutorID:         r.Tutor.ID,
			FullName:        profile.FullName,
			Email:           profile.Email,
			TuteeCount:      r.Tutor.ActiveTutees,
			MaxTuteeCount:   r.Tutor.MaxTutees,
			Preferred:       r.Preferred,
			SubjectOverlap:  r.SubjectOverlap,
			HasCapacity:     r.HasCapacity,
			ScheduleOverlap: r.ScheduleOverlap,
		})
	}
	if s.cfg.MaxCandidates > 0 && len(views) > s.cfg.MaxCandidates {
		views = views[:s.cfg.MaxCandidates]
	}

	result := &dto.CandidateList{
		RequestID:   requestID,
		SessionIDs:  query.SessionIDs,
		Candidates:  views,
		GeneratedAt: s.now().UTC(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache candidates", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	out := *result
	out.Candidates = s.limit(views, query.Limit)
	return &out, nil
}

func (s *MatchingService) limit(views []dto.CandidateView, n int) []dto.CandidateView {
	if n > 0 && len(views) > n {
		return views[:n]
	}
	return views
}

// selectSessions returns the sessions named by ids, nil when ids is empty.
func selectSessions(sessions []models.Session, ids []string) ([]models.Session, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID := make(map[string]models.Session, len(sessions))
	for _, session := range sessions {
		byID[session.ID] = session
	}
	out := make([]models.Session, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		session, ok := byID[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session %s does not belong to request", id))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, session)
	}
	return out, nil
}
