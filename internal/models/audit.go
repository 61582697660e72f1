package models

import "time"

// LoadDiscrepancy is a tutor whose stored counter disagrees with its assignments.
type LoadDiscrepancy struct {
	TutorID  string `json:"tutor_id"`
	FullName string `json:"full_name"`
	Stored   int    `json:"stored"`
	Expected int    `json:"expected"`
}

// LoadAuditReport summarises one consistency check of tutee counters.
type LoadAuditReport struct {
	ID            string            `json:"id"`
	TutorsChecked int               `json:"tutors_checked"`
	Discrepancies []LoadDiscrepancy `json:"discrepancies"`
	Repaired      bool              `json:"repaired"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

// TermResetSummary reports what a term reset removed and recomputed.
type TermResetSummary struct {
	RequestsDeleted int       `json:"requests_deleted"`
	TutorsReset     int       `json:"tutors_reset"`
	IntakeClosed    bool      `json:"intake_closed"`
	ResetAt         time.Time `json:"reset_at"`
}

// RosterEntry is one matched session as it appears on the tutor roster export.
type RosterEntry struct {
	TutorName  string      `db:"tutor_name" json:"tutor_name"`
	TutorEmail string      `db:"tutor_email" json:"tutor_email"`
	TuteeName  string      `db:"tutee_name" json:"tutee_name"`
	TuteeEmail string      `db:"tutee_email" json:"tutee_email"`
	Kind       RequestKind `db:"kind" json:"kind"`
	Subject    string      `db:"subject" json:"subject"`
	Topic      *string     `db:"topic" json:"topic,omitempty"`
}
