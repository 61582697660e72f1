package dto

import "github.com/noah-isme/tutor-match-api/internal/matching"

// RankFixture is the offline input accepted by the matchctl rank command.
type RankFixture struct {
	Tutors   []matching.Tutor   `yaml:"tutors" json:"tutors"`
	Request  matching.Request   `yaml:"request" json:"request"`
	Sessions []matching.Session `yaml:"sessions,omitempty" json:"sessions,omitempty"`
}
