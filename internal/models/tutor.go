package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Tutor is a volunteer tutor record. Subjects holds a JSON array of
// {subject, topics} objects; Availability holds a JSON weekday -> timeslots map.
type Tutor struct {
	ID            string         `db:"id" json:"id"`
	FullName      string         `db:"full_name" json:"full_name"`
	Email         string         `db:"email" json:"email"`
	Subjects      types.JSONText `db:"subjects" json:"subjects"`
	Availability  types.JSONText `db:"availability" json:"availability"`
	TuteeCount    int            `db:"tutee_count" json:"tutee_count"`
	MaxTuteeCount int            `db:"max_tutee_count" json:"max_tutee_count"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Accepting reports whether the tutor has room for another tutee.
func (t Tutor) Accepting() bool {
	return t.TuteeCount < t.MaxTuteeCount
}

// TutorFilter captures filtering options for listing tutors.
type TutorFilter struct {
	Search    string
	Active    *bool
	Accepting *bool
	Subject   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TutorLoad is a tutor's stored active-tutee counter.
type TutorLoad struct {
	TutorID    string `db:"id" json:"tutor_id"`
	FullName   string `db:"full_name" json:"full_name"`
	TuteeCount int    `db:"tutee_count" json:"tutee_count"`
}
