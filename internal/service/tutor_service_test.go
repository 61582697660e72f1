package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/matching"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

type mockTutorRepo struct {
	items       map[string]*models.Tutor
	emailIndex  map[string]string
	listResult  []models.Tutor
	listTotal   int
	deactivated []string
}

func (m *mockTutorRepo) List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockTutorRepo) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	if tutor, ok := m.items[id]; ok {
		cp := *tutor
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTutorRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	if owner, ok := m.emailIndex[email]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTutorRepo) Create(ctx context.Context, tutor *models.Tutor) error {
	if m.items == nil {
		m.items = make(map[string]*models.Tutor)
	}
	if tutor.ID == "" {
		tutor.ID = "generated"
	}
	tutor.CreatedAt = time.Now()
	cp := *tutor
	m.items[tutor.ID] = &cp
	return nil
}

func (m *mockTutorRepo) Update(ctx context.Context, tutor *models.Tutor) error {
	cp := *tutor
	m.items[tutor.ID] = &cp
	return nil
}

func (m *mockTutorRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func validTutorRequest() CreateTutorRequest {
	return CreateTutorRequest{
		Email:         "ada@example.edu",
		FullName:      " Ada Lovelace ",
		Subjects:      []matching.SubjectTopics{{Subject: "Math", Topics: []string{"Calculus"}}},
		Availability:  matching.Schedule{matching.Monday: {"09:00-10:30", "07:30-09:00", "07:30-09:00"}},
		MaxTuteeCount: 3,
	}
}

func TestTutorServiceCreate(t *testing.T) {
	repo := &mockTutorRepo{}
	cache := &invalidationRecorder{}
	svc := NewTutorService(repo, cache, nil, zap.NewNop())

	tutor, err := svc.Create(context.Background(), validTutorRequest())
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", tutor.FullName)
	assert.True(t, tutor.Active)
	assert.Equal(t, 0, tutor.TuteeCount)
	assert.JSONEq(t, `{"M":["07:30-09:00","09:00-10:30"]}`, string(tutor.Availability))
	assert.JSONEq(t, `[{"subject":"Math","topics":["Calculus"]}]`, string(tutor.Subjects))
	assert.Equal(t, []string{CandidateCachePattern("")}, cache.patterns)
}

func TestTutorServiceCreateValidation(t *testing.T) {
	svc := NewTutorService(&mockTutorRepo{}, nil, nil, nil)

	req := validTutorRequest()
	req.Availability = matching.Schedule{"X": {"07:30-09:00"}}
	_, err := svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validTutorRequest()
	req.Subjects = append(req.Subjects, matching.SubjectTopics{Subject: "Math"})
	_, err = svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validTutorRequest()
	req.MaxTuteeCount = -1
	_, err = svc.Create(context.Background(), req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTutorServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockTutorRepo{emailIndex: map[string]string{"ada@example.edu": "tutor-1"}}
	svc := NewTutorService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), validTutorRequest())
	assert.ErrorIs(t, err, appErrors.ErrEmailTaken)
}

func TestTutorServiceUpdateKeepsLoad(t *testing.T) {
	repo := &mockTutorRepo{items: map[string]*models.Tutor{
		"tutor-1": {ID: "tutor-1", Email: "ada@example.edu", TuteeCount: 2, MaxTuteeCount: 3, Active: true},
	}}
	svc := NewTutorService(repo, nil, nil, nil)
	inactive := false

	req := validTutorRequest()
	tutor, err := svc.Update(context.Background(), "tutor-1", UpdateTutorRequest{
		Email:         req.Email,
		FullName:      req.FullName,
		Subjects:      req.Subjects,
		Availability:  req.Availability,
		MaxTuteeCount: 5,
		Active:        &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tutor.TuteeCount)
	assert.Equal(t, 5, tutor.MaxTuteeCount)
	assert.False(t, tutor.Active)
}

func TestTutorServiceGetAndDeactivateMissing(t *testing.T) {
	repo := &mockTutorRepo{}
	svc := NewTutorService(repo, nil, nil, nil)

	_, err := svc.Get(context.Background(), "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	err = svc.Deactivate(context.Background(), "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deactivated)
}

func TestTutorServiceListPagination(t *testing.T) {
	repo := &mockTutorRepo{listResult: []models.Tutor{{ID: "t1"}}, listTotal: 41}
	svc := NewTutorService(repo, nil, nil, nil)

	tutors, pagination, err := svc.List(context.Background(), models.TutorFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, tutors, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 41}, pagination)
}
