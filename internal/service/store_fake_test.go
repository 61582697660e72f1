package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// fakeStore is an in-memory stand-in for the tutor, request and session repositories.
type fakeStore struct {
	tutors   map[string]*models.Tutor
	requests map[string]*models.TutoringRequest
	sessions []models.Session
	locked   []string
	calls    []string
	failLoad error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tutors: map[string]*models.Tutor{}, requests: map[string]*models.TutoringRequest{}}
}

func (f *fakeStore) addTutor(id string, load, max int, active bool, subjects string) {
	f.tutors[id] = &models.Tutor{
		ID:            id,
		FullName:      "Tutor " + id,
		Email:         id + "@example.edu",
		Subjects:      types.JSONText(subjects),
		Availability:  types.JSONText(`{}`),
		TuteeCount:    load,
		MaxTuteeCount: max,
		Active:        active,
	}
}

func (f *fakeStore) addRequest(id string, kind models.RequestKind, subjects ...string) {
	f.requests[id] = &models.TutoringRequest{ID: id, Kind: kind, TuteeName: "Tutee " + id, Availability: types.JSONText(`{}`)}
	for i, subject := range subjects {
		f.sessions = append(f.sessions, models.Session{
			ID:        id + "-s" + string(rune('1'+i)),
			RequestID: id,
			Subject:   subject,
			Status:    models.SessionStatusPending,
			CreatedAt: time.Unix(int64(len(f.sessions)), 0),
		})
	}
}

func (f *fakeStore) load(id string) int {
	return f.tutors[id].TuteeCount
}

func (f *fakeStore) session(id string) *models.Session {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			return &f.sessions[i]
		}
	}
	return nil
}

// tutor repository

func (f *fakeStore) FindByIDWith(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Tutor, error) {
	tutor, ok := f.tutors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *tutor
	return &cp, nil
}

func (f *fakeStore) ApplyLoadDelta(ctx context.Context, exec sqlx.ExtContext, tutorID string, change int) error {
	if f.failLoad != nil {
		return f.failLoad
	}
	tutor, ok := f.tutors[tutorID]
	if !ok {
		return sql.ErrNoRows
	}
	tutor.TuteeCount += change
	return nil
}

func (f *fakeStore) ListEligible(ctx context.Context) ([]models.Tutor, error) {
	ids := make([]string, 0, len(f.tutors))
	for id, tutor := range f.tutors {
		if tutor.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]models.Tutor, 0, len(ids))
	for _, id := range ids {
		out = append(out, *f.tutors[id])
	}
	return out, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]models.Tutor, error) {
	ids := make([]string, 0, len(f.tutors))
	for id := range f.tutors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.Tutor, 0, len(ids))
	for _, id := range ids {
		out = append(out, *f.tutors[id])
	}
	return out, nil
}

func (f *fakeStore) LockLoads(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	f.calls = append(f.calls, "lock_loads")
	return len(f.tutors), nil
}

func (f *fakeStore) ListLoads(ctx context.Context, exec sqlx.ExtContext) ([]models.TutorLoad, error) {
	all, _ := f.ListAll(ctx)
	out := make([]models.TutorLoad, 0, len(all))
	for _, t := range all {
		out = append(out, models.TutorLoad{TutorID: t.ID, FullName: t.FullName, TuteeCount: t.TuteeCount})
	}
	return out, nil
}

func (f *fakeStore) SetLoad(ctx context.Context, exec sqlx.ExtContext, tutorID string, count int) error {
	f.calls = append(f.calls, "set_load")
	tutor, ok := f.tutors[tutorID]
	if !ok {
		return sql.ErrNoRows
	}
	tutor.TuteeCount = count
	return nil
}

func (f *fakeStore) ResetLoads(ctx context.Context, exec sqlx.ExtContext, counts map[string]int, closeIntake bool) (int, error) {
	f.calls = append(f.calls, "reset_loads")
	for id, tutor := range f.tutors {
		tutor.TuteeCount = counts[id]
		if closeIntake {
			tutor.MaxTuteeCount = 0
		}
	}
	return len(f.tutors), nil
}

// request repository

func (f *fakeStore) LockByID(ctx context.Context, tx sqlx.ExtContext, id string) (*models.TutoringRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	f.locked = append(f.locked, id)
	cp := *req
	return &cp, nil
}

func (f *fakeStore) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := f.requests[id]; ok {
		delete(f.requests, id)
		kept := f.sessions[:0]
		for _, s := range f.sessions {
			if s.RequestID != id {
				kept = append(kept, s)
			}
		}
		f.sessions = kept
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeStore) DeleteByKind(ctx context.Context, exec sqlx.ExtContext, kind models.RequestKind) (int, error) {
	n := 0
	for id, req := range f.requests {
		if req.Kind == kind {
			_ = f.Delete(ctx, exec, id)
			n++
		}
	}
	return n, nil
}

// session repository

type fakeSessions struct{ *fakeStore }

func (f fakeSessions) FindByID(ctx context.Context, id string) (*models.Session, error) {
	s := f.session(id)
	if s == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f fakeSessions) ListByRequest(ctx context.Context, exec sqlx.ExtContext, requestID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.RequestID == requestID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f fakeSessions) UpdateAssignment(ctx context.Context, exec sqlx.ExtContext, id string, tutorID *string, status models.SessionStatus) error {
	s := f.session(id)
	if s == nil {
		return sql.ErrNoRows
	}
	if tutorID != nil {
		v := *tutorID
		s.TutorID = &v
	} else {
		s.TutorID = nil
	}
	s.Status = status
	return nil
}

func (f fakeSessions) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.fakeStore.sessions = append(f.fakeStore.sessions[:i], f.fakeStore.sessions[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeSessions) ListAssignments(ctx context.Context, exec sqlx.ExtContext) ([]models.SessionAssignment, error) {
	f.calls = append(f.calls, "list_assignments")
	var out []models.SessionAssignment
	for _, s := range f.sessions {
		if s.TutorID != nil {
			out = append(out, models.SessionAssignment{RequestID: s.RequestID, TutorID: *s.TutorID})
		}
	}
	return out, nil
}

func (f fakeSessions) ListRoster(ctx context.Context) ([]models.RosterEntry, error) {
	var out []models.RosterEntry
	for _, s := range f.sessions {
		if s.TutorID == nil {
			continue
		}
		tutor := f.tutors[*s.TutorID]
		req := f.requests[s.RequestID]
		out = append(out, models.RosterEntry{
			TutorName: tutor.FullName, TutorEmail: tutor.Email,
			TuteeName: req.TuteeName, TuteeEmail: req.TuteeEmail,
			Kind: req.Kind, Subject: s.Subject, Topic: s.Topic,
		})
	}
	return out, nil
}

type invalidationRecorder struct {
	patterns []string
}

func (r *invalidationRecorder) Invalidate(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}
