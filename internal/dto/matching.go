package dto

import (
	"time"

	"github.com/noah-isme/tutor-match-api/internal/ledger"
	"github.com/noah-isme/tutor-match-api/internal/models"
)

// CandidateView is one ranked tutor as returned by the candidates endpoint.
type CandidateView struct {
	Rank            int    `json:"rank"`
	TutorID         string `json:"tutor_id"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	TuteeCount      int    `json:"tutee_count"`
	MaxTuteeCount   int    `json:"max_tutee_count"`
	Preferred       bool   `json:"preferred"`
	SubjectOverlap  int    `json:"subject_overlap"`
	HasCapacity     bool   `json:"has_capacity"`
	ScheduleOverlap int    `json:"schedule_overlap"`
}

// CandidateList is the ranked response for a request.
type CandidateList struct {
	RequestID   string          `json:"request_id"`
	SessionIDs  []string        `json:"session_ids,omitempty"`
	Candidates  []CandidateView `json:"candidates"`
	Cached      bool            `json:"cached"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// CandidateQuery narrows ranking to a subset of the request's sessions.
type CandidateQuery struct {
	SessionIDs []string `form:"session_id"`
	Limit      int      `form:"limit" validate:"omitempty,gte=1,lte=200"`
}

// AssignSessionRequest is the payload for matching a session to a tutor.
type AssignSessionRequest struct {
	TutorID string `json:"tutor_id" validate:"required"`
}

// AssignmentOutcome reports the session state after a load-changing operation
// together with the counter changes that were applied.
type AssignmentOutcome struct {
	Session        *models.Session `json:"session,omitempty"`
	RequestID      string          `json:"request_id"`
	RequestDeleted bool            `json:"request_deleted"`
	LoadChanges    []ledger.Delta  `json:"load_changes"`
}

// TermResetRequest controls the end-of-term reset.
type TermResetRequest struct {
	CloseIntake bool `json:"close_intake"`
}

// LoadAuditRequest controls a manual audit run.
type LoadAuditRequest struct {
	Repair bool `json:"repair"`
}
