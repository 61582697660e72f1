package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/matching"
	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/export"
)

// RosterView selects which roster is exported.
type RosterView string

const (
	// RosterViewLoads lists every tutor with load and capacity.
	RosterViewLoads RosterView = "loads"
	// RosterViewAssignments lists every matched session.
	RosterViewAssignments RosterView = "assignments"
)

type rosterTutorLister interface {
	ListAll(ctx context.Context) ([]models.Tutor, error)
}

type rosterSessionLister interface {
	ListRoster(ctx context.Context) ([]models.RosterEntry, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// RosterFile is a rendered export ready to be streamed.
type RosterFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService renders tutor rosters for coordinators.
type ReportService struct {
	tutors    rosterTutorLister
	sessions  rosterSessionLister
	renderers map[string]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs a ReportService with CSV and PDF renderers.
func NewReportService(tutors rosterTutorLister, sessions rosterSessionLister, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		tutors:   tutors,
		sessions: sessions,
		renderers: map[string]datasetRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// Roster builds the requested roster view in the requested format.
func (s *ReportService) Roster(ctx context.Context, view RosterView, format string) (*RosterFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if view == "" {
		view = RosterViewLoads
	}

	var (
		data export.Dataset
		err  error
	)
	switch view {
	case RosterViewLoads:
		data, err = s.loadsDataset(ctx)
	case RosterViewAssignments:
		data, err = s.assignmentsDataset(ctx)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported roster view %q", view))
	}
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	s.logger.Info("roster exported", zap.String("view", string(view)), zap.String("format", format), zap.Int("rows", len(data.Rows)))
	return &RosterFile{
		Filename:    fmt.Sprintf("tutor-roster-%s-%s.%s", view, s.now().UTC().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func (s *ReportService) loadsDataset(ctx context.Context) (export.Dataset, error) {
	tutors, err := s.tutors.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}
	data := export.Dataset{
		Title:   "Tutor load roster",
		Headers: []string{"Name", "Email", "Active", "Tutees", "Max", "Accepting", "Subjects"},
	}
	for _, tutor := range tutors {
		var subjects []matching.SubjectTopics
		if err := decodeJSON(tutor.Subjects, &subjects); err != nil {
			s.logger.Warn("unreadable tutor subjects", zap.String("tutor_id", tutor.ID), zap.Error(err))
		}
		names := make([]string, 0, len(subjects))
		for _, subject := range subjects {
			names = append(names, subject.Subject)
		}
		data.Append(
			tutor.FullName,
			tutor.Email,
			yesNo(tutor.Active),
			strconv.Itoa(tutor.TuteeCount),
			strconv.Itoa(tutor.MaxTuteeCount),
			yesNo(tutor.Active && tutor.Accepting()),
			strings.Join(names, "; "),
		)
	}
	return data, nil
}

func (s *ReportService) assignmentsDataset(ctx context.Context) (export.Dataset, error) {
	entries, err := s.sessions.ListRoster(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list roster")
	}
	data := export.Dataset{
		Title:   "Tutor assignment roster",
		Headers: []string{"Tutor", "Tutor Email", "Tutee", "Tutee Email", "Kind", "Subject", "Topic"},
	}
	for _, entry := range entries {
		topic := ""
		if entry.Topic != nil {
			topic = *entry.Topic
		}
		data.Append(entry.TutorName, entry.TutorEmail, entry.TuteeName, entry.TuteeEmail, string(entry.Kind), entry.Subject, topic)
	}
	return data, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
