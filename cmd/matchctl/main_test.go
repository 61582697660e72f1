package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/matching"
	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	"github.com/noah-isme/tutor-match-api/internal/service"
	"github.com/noah-isme/tutor-match-api/pkg/config"
)

const fixtureYAML = `
tutors:
  - id: X
    subjects:
      - subject: Math
    active_tutees: 2
    max_tutees: 2
    availability:
      M: ["07:30-09:00"]
  - id: "Y"
    subjects:
      - subject: Math
    active_tutees: 0
    max_tutees: 3
request:
  sessions:
    - subject: Math
  availability:
    M: ["07:30-09:00"]
`

func loadFixture(t *testing.T) dto.RankFixture {
	t.Helper()
	var fixture dto.RankFixture
	require.NoError(t, yaml.Unmarshal([]byte(fixtureYAML), &fixture))
	return fixture
}

func TestRenderRankingTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderRanking(&out, loadFixture(t), false))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Equal(t, []string{"1", "Y"}, strings.Fields(lines[1])[:2])
	assert.Equal(t, []string{"2", "X"}, strings.Fields(lines[2])[:2])
}

func TestRenderRankingJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderRanking(&out, loadFixture(t), true))

	var ranked []matching.Ranked
	require.NoError(t, json.Unmarshal(out.Bytes(), &ranked))
	require.Len(t, ranked, 2)
	assert.Equal(t, "Y", ranked[0].Tutor.ID)
	assert.True(t, ranked[0].HasCapacity)
	assert.False(t, ranked[1].HasCapacity)
}

func TestRenderRankingRejectsBadSchedule(t *testing.T) {
	fixture := loadFixture(t)
	fixture.Request.Availability = matching.Schedule{matching.Monday: {"25:00-26:00"}}
	assert.Error(t, renderRanking(&bytes.Buffer{}, fixture, false))
}

func TestRankCommandReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"rank", "--file", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Y")
}

func TestMintToken(t *testing.T) {
	svc := service.NewTokenService(service.TokenConfig{Secret: "secret", Issuer: "matchctl"})

	var out bytes.Buffer
	require.NoError(t, mintToken(&out, svc, "ops-1", "", "", "coordinator"))
	token := strings.SplitN(out.String(), "\n", 2)[0]
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.UserID)
	assert.Equal(t, models.RoleCoordinator, claims.Role)

	assert.Error(t, mintToken(&bytes.Buffer{}, svc, "ops-1", "", "", "root"))
}

func TestPrintAudit(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printAudit(&out, &models.LoadAuditReport{
		TutorsChecked: 3,
		Repaired:      true,
		Discrepancies: []models.LoadDiscrepancy{{TutorID: "A", Stored: 3, Expected: 1}},
	}))
	assert.Contains(t, out.String(), "checked 3 tutors, 1 discrepancies (repaired)")
	assert.Contains(t, out.String(), "A")
}

type syncRecorder struct {
	bytes.Buffer
	synced int
}

func (s *syncRecorder) Sync() error {
	s.synced++
	return nil
}

func TestEnvConnectFailureFlushesLogger(t *testing.T) {
	orig := openPostgres
	t.Cleanup(func() { openPostgres = orig })
	openPostgres = func(config.DatabaseConfig) (*sqlx.DB, error) {
		return nil, errors.New("connection refused")
	}

	sink := &syncRecorder{}
	logr := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapcore.InfoLevel))
	e := &env{cfg: &config.Config{}, logger: logr, cache: repository.NewCacheRepository(nil, logr)}

	err := e.connect()
	require.EqualError(t, err, "connection refused")
	assert.Nil(t, e.db)

	e.close()
	assert.Equal(t, 1, sink.synced)
}
