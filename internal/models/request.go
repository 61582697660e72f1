package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RequestKind distinguishes term-long requests from one-off sessions.
type RequestKind string

const (
	RequestKindTerm   RequestKind = "TERM"
	RequestKindSingle RequestKind = "SINGLE"
)

// SessionStatus tracks where a session is in the matching lifecycle.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "Pending"
	SessionStatusMatched SessionStatus = "Matched"
	SessionStatusNoMatch SessionStatus = "No Match"
)

// TutoringRequest is a tutee's submission for help in one or more subjects.
type TutoringRequest struct {
	ID               string         `db:"id" json:"id"`
	TuteeName        string         `db:"tutee_name" json:"tutee_name"`
	TuteeEmail       string         `db:"tutee_email" json:"tutee_email"`
	Kind             RequestKind    `db:"kind" json:"kind"`
	PreferredTutorID *string        `db:"preferred_tutor_id" json:"preferred_tutor_id,omitempty"`
	Availability     types.JSONText `db:"availability" json:"availability"`
	Notes            *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Session is one independently assignable subject of a request.
type Session struct {
	ID        string        `db:"id" json:"id"`
	RequestID string        `db:"request_id" json:"request_id"`
	Subject   string        `db:"subject" json:"subject"`
	Topic     *string       `db:"topic" json:"topic,omitempty"`
	TutorID   *string       `db:"tutor_id" json:"tutor_id,omitempty"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// AssignedTutor returns the session's tutor or "" when unmatched.
func (s Session) AssignedTutor() string {
	if s.TutorID == nil {
		return ""
	}
	return *s.TutorID
}

// RequestDetail bundles a request with its sessions.
type RequestDetail struct {
	TutoringRequest
	Sessions []Session `json:"sessions"`
}

// RequestFilter describes query params for listing requests.
type RequestFilter struct {
	Kind     RequestKind
	Status   SessionStatus
	TutorID  string
	Page     int
	PageSize int
}

// SessionAssignment is the (request, tutor) pair behind a matched session.
type SessionAssignment struct {
	RequestID string `db:"request_id"`
	TutorID   string `db:"tutor_id"`
}
