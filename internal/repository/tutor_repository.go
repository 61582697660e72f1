package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

const tutorColumns = "id, full_name, email, subjects, availability, tutee_count, max_tutee_count, active, created_at, updated_at"

// TutorRepository manages persistence for tutors and their load counters.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs a TutorRepository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

func (r *TutorRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns tutors matching filters along with total count.
func (r *TutorRepository) List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error) {
	base := "FROM tutors WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Accepting != nil {
		if *filter.Accepting {
			conditions = append(conditions, "tutee_count < max_tutee_count")
		} else {
			conditions = append(conditions, "tutee_count >= max_tutee_count")
		}
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}
	if filter.Subject != "" {
		probe, err := json.Marshal([]map[string]string{{"subject": filter.Subject}})
		if err != nil {
			return nil, 0, fmt.Errorf("encode subject filter: %w", err)
		}
		conditions = append(conditions, fmt.Sprintf("subjects @> $%d::jsonb", len(args)+1))
		args = append(args, string(probe))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"full_name":   "full_name",
		"email":       "email",
		"tutee_count": "tutee_count",
		"created_at":  "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", tutorColumns, base, column, order, size, offset)
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tutors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tutors: %w", err)
	}

	return tutors, total, nil
}

// ListEligible returns active tutors in a stable order suitable for ranking.
func (r *TutorRepository) ListEligible(ctx context.Context) ([]models.Tutor, error) {
	query := fmt.Sprintf("SELECT %s FROM tutors WHERE active = TRUE ORDER BY created_at ASC, id ASC", tutorColumns)
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query); err != nil {
		return nil, fmt.Errorf("list eligible tutors: %w", err)
	}
	return tutors, nil
}

// ListAll returns every tutor ordered by name.
func (r *TutorRepository) ListAll(ctx context.Context) ([]models.Tutor, error) {
	query := fmt.Sprintf("SELECT %s FROM tutors ORDER BY full_name ASC, id ASC", tutorColumns)
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query); err != nil {
		return nil, fmt.Errorf("list all tutors: %w", err)
	}
	return tutors, nil
}

// FindByID fetches a tutor by ID.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	return r.FindByIDWith(ctx, nil, id)
}

// FindByIDWith fetches a tutor using the provided executor.
func (r *TutorRepository) FindByIDWith(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Tutor, error) {
	query := fmt.Sprintf("SELECT %s FROM tutors WHERE id = $1", tutorColumns)
	var tutor models.Tutor
	if err := sqlx.GetContext(ctx, r.exec(exec), &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// ExistsByEmail checks for duplicate email addresses.
func (r *TutorRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := `SELECT 1 FROM tutors WHERE LOWER(email) = LOWER($1)`
	args := []interface{}{email}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check tutor email: %w", err)
	}
	return true, nil
}

// Create inserts a new tutor with an empty load.
func (r *TutorRepository) Create(ctx context.Context, tutor *models.Tutor) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	if len(tutor.Subjects) == 0 {
		tutor.Subjects = types.JSONText("[]")
	}
	if len(tutor.Availability) == 0 {
		tutor.Availability = types.JSONText("{}")
	}
	now := time.Now().UTC()
	tutor.TuteeCount = 0
	tutor.CreatedAt = now
	tutor.UpdatedAt = now
	const query = `INSERT INTO tutors (id, full_name, email, subjects, availability, tutee_count, max_tutee_count, active, created_at, updated_at)
		VALUES (:id, :full_name, :email, :subjects, :availability, :tutee_count, :max_tutee_count, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tutor); err != nil {
		return fmt.Errorf("create tutor: %w", err)
	}
	return nil
}

// Update modifies profile fields. The tutee counter is never written here.
func (r *TutorRepository) Update(ctx context.Context, tutor *models.Tutor) error {
	tutor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tutors SET full_name = :full_name, email = :email, subjects = :subjects, availability = :availability,
		max_tutee_count = :max_tutee_count, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, tutor)
	if err != nil {
		return fmt.Errorf("update tutor: %w", err)
	}
	return requireAffected(res, "update tutor")
}

// Deactivate marks a tutor inactive so it drops out of ranking.
func (r *TutorRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tutors SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate tutor: %w", err)
	}
	return requireAffected(res, "deactivate tutor")
}

// ApplyLoadDelta atomically adds change to the tutor's tutee counter.
func (r *TutorRepository) ApplyLoadDelta(ctx context.Context, exec sqlx.ExtContext, tutorID string, change int) error {
	const query = `UPDATE tutors SET tutee_count = tutee_count + $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, tutorID, change, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply load delta for tutor %s: %w", tutorID, err)
	}
	return requireAffected(res, "apply load delta")
}

// LockLoads row-locks every tutor in id order. Callers that write absolute
// counters take it first so a concurrent ApplyLoadDelta either commits before
// the recount is read or waits until the overwrite commits.
func (r *TutorRepository) LockLoads(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	const query = `SELECT id FROM tutors ORDER BY id ASC FOR UPDATE`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query); err != nil {
		return 0, fmt.Errorf("lock tutor loads: %w", err)
	}
	return len(ids), nil
}

// SetLoad overwrites a tutor's tutee counter. Used by audit repair.
func (r *TutorRepository) SetLoad(ctx context.Context, exec sqlx.ExtContext, tutorID string, count int) error {
	const query = `UPDATE tutors SET tutee_count = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, tutorID, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set load for tutor %s: %w", tutorID, err)
	}
	return requireAffected(res, "set load")
}

// ResetLoads zeroes every counter, optionally closes intake by zeroing the
// maximum, then writes the provided counts. It returns the number of tutors reset.
func (r *TutorRepository) ResetLoads(ctx context.Context, exec sqlx.ExtContext, counts map[string]int, closeIntake bool) (int, error) {
	target := r.exec(exec)
	now := time.Now().UTC()
	query := `UPDATE tutors SET tutee_count = 0, updated_at = $1`
	if closeIntake {
		query = `UPDATE tutors SET tutee_count = 0, max_tutee_count = 0, updated_at = $1`
	}
	res, err := target.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("reset tutor loads: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check reset rows: %w", err)
	}

	ids := make([]string, 0, len(counts))
	for id, n := range counts {
		if n != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := r.SetLoad(ctx, target, id, counts[id]); err != nil {
			return 0, err
		}
	}
	return int(affected), nil
}

// ListLoads returns the stored counter of every tutor.
func (r *TutorRepository) ListLoads(ctx context.Context, exec sqlx.ExtContext) ([]models.TutorLoad, error) {
	const query = `SELECT id, full_name, tutee_count FROM tutors ORDER BY full_name ASC, id ASC`
	var loads []models.TutorLoad
	if err := sqlx.SelectContext(ctx, r.exec(exec), &loads, query); err != nil {
		return nil, fmt.Errorf("list tutor loads: %w", err)
	}
	return loads, nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
