package service

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/tutor-match-api/internal/ledger"
	"github.com/noah-isme/tutor-match-api/internal/matching"
	"github.com/noah-isme/tutor-match-api/internal/models"
)

func toMatchingTutor(t models.Tutor) (matching.Tutor, error) {
	var subjects []matching.SubjectTopics
	if err := decodeJSON(t.Subjects, &subjects); err != nil {
		return matching.Tutor{}, fmt.Errorf("decode subjects for tutor %s: %w", t.ID, err)
	}
	var availability matching.Schedule
	if err := decodeJSON(t.Availability, &availability); err != nil {
		return matching.Tutor{}, fmt.Errorf("decode availability for tutor %s: %w", t.ID, err)
	}
	return matching.Tutor{
		ID:           t.ID,
		Subjects:     subjects,
		ActiveTutees: t.TuteeCount,
		MaxTutees:    t.MaxTuteeCount,
		Availability: availability,
	}, nil
}

func toMatchingRequest(req models.TutoringRequest, sessions []models.Session) (matching.Request, error) {
	var availability matching.Schedule
	if err := decodeJSON(req.Availability, &availability); err != nil {
		return matching.Request{}, fmt.Errorf("decode availability for request %s: %w", req.ID, err)
	}
	out := matching.Request{Availability: availability, Sessions: toMatchingSessions(sessions)}
	if req.PreferredTutorID != nil {
		out.PreferredTutorID = *req.PreferredTutorID
	}
	return out, nil
}

func toMatchingSessions(sessions []models.Session) []matching.Session {
	out := make([]matching.Session, 0, len(sessions))
	for _, s := range sessions {
		session := matching.Session{Subject: s.Subject}
		if s.Topic != nil {
			session.Topic = *s.Topic
		}
		out = append(out, session)
	}
	return out
}

func toLedgerAssignments(rows []models.SessionAssignment) []ledger.Assignment {
	out := make([]ledger.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledger.Assignment{RequestID: row.RequestID, TutorID: row.TutorID})
	}
	return out
}

func encodeJSON(v interface{}, empty string) (types.JSONText, error) {
	if v == nil {
		return types.JSONText(empty), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return types.JSONText(empty), nil
	}
	return types.JSONText(raw), nil
}

func decodeJSON(raw types.JSONText, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// countTutorSessions returns how many of sessions are assigned to tutorID.
func countTutorSessions(sessions []models.Session, tutorID string) int {
	n := 0
	for _, s := range sessions {
		if s.AssignedTutor() == tutorID {
			n++
		}
	}
	return n
}
