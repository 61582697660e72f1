package dto

import "github.com/noah-isme/tutor-match-api/internal/matching"

// SessionInput describes one subject requested by a tutee.
type SessionInput struct {
	Subject string  `json:"subject" validate:"required,max=100"`
	Topic   *string `json:"topic" validate:"omitempty,max=200"`
}

// CreateRequestPayload is the body for submitting a tutoring request.
type CreateRequestPayload struct {
	TuteeName        string            `json:"tutee_name" validate:"required,max=200"`
	TuteeEmail       string            `json:"tutee_email" validate:"required,email"`
	Kind             string            `json:"kind" validate:"required,oneof=TERM SINGLE"`
	PreferredTutorID *string           `json:"preferred_tutor_id"`
	Availability     matching.Schedule `json:"availability"`
	Notes            *string           `json:"notes" validate:"omitempty,max=2000"`
	Sessions         []SessionInput    `json:"sessions" validate:"required,min=1,dive"`
}
