package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

const requestColumns = "id, tutee_name, tutee_email, kind, preferred_tutor_id, availability, notes, created_at, updated_at"

// RequestRepository persists tutoring requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a request row. Sessions are written separately.
func (r *RequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.TutoringRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if len(req.Availability) == 0 {
		req.Availability = types.JSONText("{}")
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	const query = `INSERT INTO tutoring_requests (id, tutee_name, tutee_email, kind, preferred_tutor_id, availability, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.exec(exec).ExecContext(ctx, query, req.ID, req.TuteeName, req.TuteeEmail, req.Kind, req.PreferredTutorID, req.Availability, req.Notes, req.CreatedAt, req.UpdatedAt); err != nil {
		return fmt.Errorf("create tutoring request: %w", err)
	}
	return nil
}

// FindByID fetches a request without locking.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.TutoringRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM tutoring_requests WHERE id = $1", requestColumns)
	var req models.TutoringRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// LockByID fetches a request and holds a row lock until the surrounding
// transaction ends. Every load-changing operation on the request goes through it.
func (r *RequestRepository) LockByID(ctx context.Context, tx sqlx.ExtContext, id string) (*models.TutoringRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM tutoring_requests WHERE id = $1 FOR UPDATE", requestColumns)
	var req models.TutoringRequest
	if err := sqlx.GetContext(ctx, tx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter and the total count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.TutoringRequest, int, error) {
	base := "FROM tutoring_requests r WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("r.kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM sessions s WHERE s.request_id = r.id AND s.status = $%d)", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM sessions s WHERE s.request_id = r.id AND s.tutor_id = $%d)", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT r.id, r.tutee_name, r.tutee_email, r.kind, r.preferred_tutor_id, r.availability, r.notes, r.created_at, r.updated_at %s ORDER BY r.created_at DESC, r.id ASC LIMIT %d OFFSET %d", base, size, offset)
	var requests []models.TutoringRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tutoring requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count tutoring requests: %w", err)
	}
	return requests, total, nil
}

// Delete removes a request; its sessions go with it via ON DELETE CASCADE.
func (r *RequestRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM tutoring_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tutoring request: %w", err)
	}
	return requireAffected(res, "delete tutoring request")
}

// DeleteByKind removes every request of the given kind.
func (r *RequestRepository) DeleteByKind(ctx context.Context, exec sqlx.ExtContext, kind models.RequestKind) (int, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM tutoring_requests WHERE kind = $1`, kind)
	if err != nil {
		return 0, fmt.Errorf("delete %s requests: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s requests rows: %w", kind, err)
	}
	return int(affected), nil
}
