package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

const sessionColumns = "id, request_id, subject, topic, tutor_id, status, created_at, updated_at"

// SessionRepository persists the per-subject sessions of a request.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts sessions for a request, assigning IDs where missing.
func (r *SessionRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `INSERT INTO sessions (id, request_id, subject, topic, tutor_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i := range sessions {
		s := &sessions[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.Status == "" {
			s.Status = models.SessionStatusPending
		}
		s.CreatedAt = now
		s.UpdatedAt = now
		if _, err := target.ExecContext(ctx, query, s.ID, s.RequestID, s.Subject, s.Topic, s.TutorID, s.Status, s.CreatedAt, s.UpdatedAt); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}
	return nil
}

// FindByID fetches a session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByRequest returns a request's sessions in creation order.
func (r *SessionRepository) ListByRequest(ctx context.Context, exec sqlx.ExtContext, requestID string) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE request_id = $1 ORDER BY created_at ASC, id ASC", sessionColumns)
	var sessions []models.Session
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, requestID); err != nil {
		return nil, fmt.Errorf("list sessions for request %s: %w", requestID, err)
	}
	return sessions, nil
}

// UpdateAssignment sets the tutor and status of a session. A nil tutorID clears the assignment.
func (r *SessionRepository) UpdateAssignment(ctx context.Context, exec sqlx.ExtContext, id string, tutorID *string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET tutor_id = $2, status = $3, updated_at = $4 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, tutorID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session assignment: %w", err)
	}
	return requireAffected(res, "update session assignment")
}

// Delete removes a single session.
func (r *SessionRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireAffected(res, "delete session")
}

// ListAssignments returns the (request, tutor) pair of every matched session.
func (r *SessionRepository) ListAssignments(ctx context.Context, exec sqlx.ExtContext) ([]models.SessionAssignment, error) {
	const query = `SELECT request_id, tutor_id FROM sessions WHERE tutor_id IS NOT NULL ORDER BY request_id ASC`
	var assignments []models.SessionAssignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query); err != nil {
		return nil, fmt.Errorf("list session assignments: %w", err)
	}
	return assignments, nil
}

// ListRoster returns every matched session joined with tutor and tutee details.
func (r *SessionRepository) ListRoster(ctx context.Context) ([]models.RosterEntry, error) {
	const query = `SELECT t.full_name AS tutor_name, t.email AS tutor_email, q.tutee_name, q.tutee_email, q.kind, s.subject, s.topic
FROM sessions s
JOIN tutoring_requests q ON q.id = s.request_id
JOIN tutors t ON t.id = s.tutor_id
WHERE s.status = 'Matched'
ORDER BY t.full_name ASC, q.tutee_name ASC, s.subject ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}
