package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/ledger"
	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/service"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type tutorServiceMock struct {
	filter   models.TutorFilter
	created  service.CreateTutorRequest
	tutor    *models.Tutor
	err      error
	deactive string
}

func (m *tutorServiceMock) List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, *models.Pagination, error) {
	m.filter = filter
	return []models.Tutor{{ID: "t1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, m.err
}

func (m *tutorServiceMock) Get(ctx context.Context, id string) (*models.Tutor, error) {
	return m.tutor, m.err
}

func (m *tutorServiceMock) Create(ctx context.Context, req service.CreateTutorRequest) (*models.Tutor, error) {
	m.created = req
	return m.tutor, m.err
}

func (m *tutorServiceMock) Update(ctx context.Context, id string, req service.UpdateTutorRequest) (*models.Tutor, error) {
	return m.tutor, m.err
}

func (m *tutorServiceMock) Deactivate(ctx context.Context, id string) error {
	m.deactive = id
	return m.err
}

func TestTutorHandlerListParsesFilters(t *testing.T) {
	mockSvc := &tutorServiceMock{}
	handler := NewTutorHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/tutors?accepting=true&active=false&subject=Math&page=2&limit=5&sort=tutee_count", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.filter.Accepting)
	assert.True(t, *mockSvc.filter.Accepting)
	require.NotNil(t, mockSvc.filter.Active)
	assert.False(t, *mockSvc.filter.Active)
	assert.Equal(t, "Math", mockSvc.filter.Subject)
	assert.Equal(t, 2, mockSvc.filter.Page)
	assert.Equal(t, 5, mockSvc.filter.PageSize)
	assert.Equal(t, "tutee_count", mockSvc.filter.SortBy)
}

func TestTutorHandlerCreate(t *testing.T) {
	mockSvc := &tutorServiceMock{tutor: &models.Tutor{ID: "t1"}}
	handler := NewTutorHandler(mockSvc)

	body := []byte(`{"email":"a@example.edu","full_name":"Ada","subjects":[{"subject":"Math"}],"availability":{"M":["07:30-09:00"]},"max_tutee_count":3}`)
	c, w := newGinContext(http.MethodPost, "/tutors", body)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 3, mockSvc.created.MaxTuteeCount)
	require.Len(t, mockSvc.created.Subjects, 1)
	assert.Equal(t, "Math", mockSvc.created.Subjects[0].Subject)

	c, w = newGinContext(http.MethodPost, "/tutors", []byte(`{`))
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTutorHandlerMapsServiceErrors(t *testing.T) {
	handler := NewTutorHandler(&tutorServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "tutor not found")})

	c, w := newGinContext(http.MethodGet, "/tutors/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decodeEnvelope(t, w).Error.Code)
}

func TestTutorHandlerDelete(t *testing.T) {
	mockSvc := &tutorServiceMock{}
	handler := NewTutorHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/tutors/t1", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "t1", mockSvc.deactive)
}

type requestServiceMock struct {
	payload dto.CreateRequestPayload
	filter  models.RequestFilter
	err     error
}

func (m *requestServiceMock) Create(ctx context.Context, payload dto.CreateRequestPayload) (*models.RequestDetail, error) {
	m.payload = payload
	return &models.RequestDetail{TutoringRequest: models.TutoringRequest{ID: "req-1"}}, m.err
}

func (m *requestServiceMock) Get(ctx context.Context, id string) (*models.RequestDetail, error) {
	return &models.RequestDetail{TutoringRequest: models.TutoringRequest{ID: id}}, m.err
}

func (m *requestServiceMock) List(ctx context.Context, filter models.RequestFilter) ([]models.TutoringRequest, *models.Pagination, error) {
	m.filter = filter
	return nil, &models.Pagination{}, m.err
}

type rankerMock struct {
	query dto.CandidateQuery
	list  *dto.CandidateList
	err   error
}

func (m *rankerMock) Candidates(ctx context.Context, requestID string, query dto.CandidateQuery) (*dto.CandidateList, error) {
	m.query = query
	return m.list, m.err
}

type assignmentServiceMock struct {
	calls   []string
	outcome *dto.AssignmentOutcome
	err     error
	tutorID string
}

func (m *assignmentServiceMock) Assign(ctx context.Context, sessionID string, req dto.AssignSessionRequest) (*dto.AssignmentOutcome, error) {
	m.calls = append(m.calls, "assign:"+sessionID)
	m.tutorID = req.TutorID
	return m.outcome, m.err
}

func (m *assignmentServiceMock) Unassign(ctx context.Context, sessionID string) (*dto.AssignmentOutcome, error) {
	m.calls = append(m.calls, "unassign:"+sessionID)
	return m.outcome, m.err
}

func (m *assignmentServiceMock) MarkNoMatch(ctx context.Context, sessionID string) (*dto.AssignmentOutcome, error) {
	m.calls = append(m.calls, "no-match:"+sessionID)
	return m.outcome, m.err
}

func (m *assignmentServiceMock) DeleteSession(ctx context.Context, sessionID string) (*dto.AssignmentOutcome, error) {
	m.calls = append(m.calls, "delete-session:"+sessionID)
	return m.outcome, m.err
}

func (m *assignmentServiceMock) DeleteRequest(ctx context.Context, requestID string) (*dto.AssignmentOutcome, error) {
	m.calls = append(m.calls, "delete-request:"+requestID)
	return m.outcome, m.err
}

func TestRequestHandlerListFilters(t *testing.T) {
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc, &rankerMock{}, &assignmentServiceMock{})

	c, w := newGinContext(http.MethodGet, "/requests?kind=term&status=Pending&tutor_id=t1", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestKindTerm, mockSvc.filter.Kind)
	assert.Equal(t, models.SessionStatusPending, mockSvc.filter.Status)
	assert.Equal(t, "t1", mockSvc.filter.TutorID)
}

func TestRequestHandlerCreate(t *testing.T) {
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc, &rankerMock{}, &assignmentServiceMock{})

	body := []byte(`{"tutee_name":"Sam","tutee_email":"sam@example.edu","kind":"SINGLE","sessions":[{"subject":"Math"}]}`)
	c, w := newGinContext(http.MethodPost, "/requests", body)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SINGLE", mockSvc.payload.Kind)
	require.Len(t, mockSvc.payload.Sessions, 1)
}

func TestRequestHandlerCandidates(t *testing.T) {
	ranker := &rankerMock{list: &dto.CandidateList{
		RequestID:  "req-1",
		Candidates: []dto.CandidateView{{Rank: 1, TutorID: "Y"}, {Rank: 2, TutorID: "X"}},
		Cached:     true,
	}}
	handler := NewRequestHandler(&requestServiceMock{}, ranker, &assignmentServiceMock{})

	c, w := newGinContext(http.MethodGet, "/requests/req-1/candidates?session_id=s1&session_id=s2&limit=5", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Candidates(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"s1", "s2"}, ranker.query.SessionIDs)
	assert.Equal(t, 5, ranker.query.Limit)

	env := decodeEnvelope(t, w)
	var list dto.CandidateList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Candidates, 2)
	assert.Equal(t, "Y", list.Candidates[0].TutorID)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestRequestHandlerDelete(t *testing.T) {
	remover := &assignmentServiceMock{outcome: &dto.AssignmentOutcome{
		RequestID:      "req-1",
		RequestDeleted: true,
		LoadChanges:    []ledger.Delta{{TutorID: "A", RequestID: "req-1", Change: -1}},
	}}
	handler := NewRequestHandler(&requestServiceMock{}, &rankerMock{}, remover)

	c, w := newGinContext(http.MethodDelete, "/requests/req-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	handler.Delete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"delete-request:req-1"}, remover.calls)
}

func TestSessionHandlerRoutesToAssignmentService(t *testing.T) {
	mockSvc := &assignmentServiceMock{outcome: &dto.AssignmentOutcome{RequestID: "req-1"}}
	handler := NewSessionHandler(mockSvc)

	run := func(fn gin.HandlerFunc, method string, body []byte) int {
		c, w := newGinContext(method, "/sessions/s1", body)
		c.Params = gin.Params{{Key: "id", Value: "s1"}}
		fn(c)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, run(handler.Assign, http.MethodPost, []byte(`{"tutor_id":"A"}`)))
	assert.Equal(t, http.StatusOK, run(handler.Unassign, http.MethodDelete, nil))
	assert.Equal(t, http.StatusOK, run(handler.NoMatch, http.MethodPost, nil))
	assert.Equal(t, http.StatusOK, run(handler.Delete, http.MethodDelete, nil))
	assert.Equal(t, "A", mockSvc.tutorID)
	assert.Equal(t, []string{"assign:s1", "unassign:s1", "no-match:s1", "delete-session:s1"}, mockSvc.calls)

	assert.Equal(t, http.StatusBadRequest, run(handler.Assign, http.MethodPost, []byte(`not json`)))
}

func TestSessionHandlerPreconditionFailure(t *testing.T) {
	handler := NewSessionHandler(&assignmentServiceMock{err: appErrors.ErrTutorInactive})

	c, w := newGinContext(http.MethodPost, "/sessions/s1/assign", []byte(`{"tutor_id":"A"}`))
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Assign(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

type termResetterMock struct{ closeIntake bool }

func (m *termResetterMock) Reset(ctx context.Context, closeIntake bool) (*models.TermResetSummary, error) {
	m.closeIntake = closeIntake
	return &models.TermResetSummary{RequestsDeleted: 2, IntakeClosed: closeIntake}, nil
}

type auditorMock struct{ repair bool }

func (m *auditorMock) Run(ctx context.Context, repair bool) (*models.LoadAuditReport, error) {
	m.repair = repair
	return &models.LoadAuditReport{ID: "audit-1", Repaired: repair}, nil
}

type rosterMock struct {
	view   service.RosterView
	format string
}

func (m *rosterMock) Roster(ctx context.Context, view service.RosterView, format string) (*service.RosterFile, error) {
	m.view, m.format = view, format
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	return &service.RosterFile{Filename: "tutor-roster-loads-20260101.csv", ContentType: "text/csv", Body: []byte("Name\n")}, nil
}

type snapshotMock struct{}

func (snapshotMock) Snapshot() models.SystemMetrics {
	return models.SystemMetrics{RankingsTotal: 7}
}

func TestAdminHandlerResetAndAudit(t *testing.T) {
	terms := &termResetterMock{}
	audits := &auditorMock{}
	handler := NewAdminHandler(terms, audits, &rosterMock{}, snapshotMock{})

	c, w := newGinContext(http.MethodPost, "/admin/term/reset", []byte(`{"close_intake":true}`))
	handler.ResetTerm(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, terms.closeIntake)

	c, w = newGinContext(http.MethodPost, "/admin/audits/load", nil)
	handler.AuditLoads(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, audits.repair)

	c, w = newGinContext(http.MethodPost, "/admin/audits/load", []byte(`{"repair":"maybe"}`))
	handler.AuditLoads(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandlerRoster(t *testing.T) {
	reports := &rosterMock{}
	handler := NewAdminHandler(&termResetterMock{}, &auditorMock{}, reports, nil)

	c, w := newGinContext(http.MethodGet, "/admin/reports/roster?view=loads", nil)
	handler.Roster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", reports.format)
	assert.Equal(t, service.RosterViewLoads, reports.view)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "tutor-roster-loads-20260101.csv")
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	c, w = newGinContext(http.MethodGet, "/admin/reports/roster?format=xlsx", nil)
	handler.Roster(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/admin/metrics", nil)
	handler.Metrics(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAdminHandlerMetricsSnapshot(t *testing.T) {
	handler := NewAdminHandler(&termResetterMock{}, &auditorMock{}, &rosterMock{}, snapshotMock{})

	c, w := newGinContext(http.MethodGet, "/admin/metrics", nil)
	handler.Metrics(c)
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.SystemMetrics
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &snap))
	assert.Equal(t, uint64(7), snap.RankingsTotal)
}

func TestMetricsHandlerReady(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{"database": ok})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, map[string]ReadinessCheck{"database": ok, "redis": down})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveRanking(3, time.Millisecond)
	handler := NewMetricsHandler(metrics.Handler(), nil)

	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tutor_ranking_candidates")
}
