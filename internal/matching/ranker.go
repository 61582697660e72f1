// Package matching orders candidate tutors for a tutoring request.
//
// Ranking is lexicographic over four criteria, each consulted only when the
// previous ones tie:
//
//  1. the tutor is the request's preferred tutor
//  2. number of considered sessions whose subject the tutor teaches
//  3. the tutor has room for another tutee
//  4. number of free (day, timeslot) pairs shared with the tutee
//
// Tutors tied on all four keep their candidate-list order. The package does no
// I/O and never mutates its inputs, so it is safe for concurrent use.
package matching

import "sort"

// SubjectTopics is one subject a tutor teaches with the topics covered under it.
type SubjectTopics struct {
	Subject string   `json:"subject" yaml:"subject"`
	Topics  []string `json:"topics,omitempty" yaml:"topics,omitempty"`
}

// Tutor is a candidate already filtered for eligibility by the caller.
type Tutor struct {
	ID           string          `json:"id" yaml:"id"`
	Subjects     []SubjectTopics `json:"subjects" yaml:"subjects"`
	ActiveTutees int             `json:"active_tutees" yaml:"active_tutees"`
	MaxTutees    int             `json:"max_tutees" yaml:"max_tutees"`
	Availability Schedule        `json:"availability" yaml:"availability"`
}

// HasCapacity reports whether the tutor can take another tutee.
// A maximum of zero means the tutor is not accepting.
func (t Tutor) HasCapacity() bool {
	return t.ActiveTutees < t.MaxTutees
}

// Teaches reports whether subject is in the tutor's subject list. Names are
// compared exactly as stored.
func (t Tutor) Teaches(subject string) bool {
	for _, s := range t.Subjects {
		if s.Subject == subject {
			return true
		}
	}
	return false
}

// Session is one subject-level unit of a request.
type Session struct {
	Subject string `json:"subject" yaml:"subject"`
	Topic   string `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// Request is the tutee side of a ranking.
type Request struct {
	// PreferredTutorID is empty when the tutee has no preference.
	PreferredTutorID string   `json:"preferred_tutor_id,omitempty" yaml:"preferred_tutor_id,omitempty"`
	Sessions         []Session `json:"sessions" yaml:"sessions"`
	Availability     Schedule  `json:"availability" yaml:"availability"`
}

// Ranked carries a tutor together with the criterion values that placed it.
type Ranked struct {
	Tutor           Tutor `json:"tutor"`
	Preferred       bool  `json:"preferred"`
	SubjectOverlap  int   `json:"subject_overlap"`
	HasCapacity     bool  `json:"has_capacity"`
	ScheduleOverlap int   `json:"schedule_overlap"`
}

// Rank returns the candidates ordered from most to least suitable. When
// sessions is nil the request's own sessions are considered.
func Rank(candidates []Tutor, req Request, sessions []Session) []Tutor {
	scored := Score(candidates, req, sessions)
	out := make([]Tutor, len(scored))
	for i, r := range scored {
		out[i] = r.Tutor
	}
	return out
}

// Score is Rank with the per-criterion values attached.
func Score(candidates []Tutor, req Request, sessions []Session) []Ranked {
	if sessions == nil {
		sessions = req.Sessions
	}
	scored := make([]Ranked, len(candidates))
	for i, tutor := range candidates {
		scored[i] = Ranked{
			Tutor:           tutor,
			Preferred:       req.PreferredTutorID != "" && tutor.ID == req.PreferredTutorID,
			SubjectOverlap:  subjectOverlap(tutor, sessions),
			HasCapacity:     tutor.HasCapacity(),
			ScheduleOverlap: req.Availability.Overlap(tutor.Availability),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return ahead(scored[i], scored[j])
	})
	return scored
}

// ahead reports whether a strictly outranks b.
func ahead(a, b Ranked) bool {
	if a.Preferred != b.Preferred {
		return a.Preferred
	}
	if a.SubjectOverlap != b.SubjectOverlap {
		return a.SubjectOverlap > b.SubjectOverlap
	}
	if a.HasCapacity != b.HasCapacity {
		return a.HasCapacity
	}
	return a.ScheduleOverlap > b.ScheduleOverlap
}

func subjectOverlap(tutor Tutor, sessions []Session) int {
	count := 0
	for _, s := range sessions {
		if tutor.Teaches(s.Subject) {
			count++
		}
	}
	return count
}
