// Package ledger computes tutor load changes as sessions gain and lose tutors.
//
// A tutor's load is the number of distinct requests in which at least one
// session names that tutor. Sessions do not count individually: three
// subjects of the same request taught by one tutor add one to that tutor's
// load.
//
// Every function here is arithmetic over caller-supplied facts. The ledger
// holds no state, takes no locks and cannot detect a corrupted counter.
//
// Precondition: callers must serialize the read-compute-write sequence per
// request and per tutor. Two concurrent assignments that both observe
// alreadyHandling == false for the same tutor and request will both return +1
// and silently break the invariant. Apply returned deltas in the same
// transaction as the session change they describe, using an atomic increment
// at the storage layer.
package ledger

// Delta is a signed change to one tutor's active-tutee counter.
type Delta struct {
	TutorID   string `json:"tutor_id"`
	RequestID string `json:"request_id,omitempty"`
	Change    int    `json:"change"`
}

// IsZero reports whether the delta leaves the counter unchanged.
func (d Delta) IsZero() bool {
	return d.Change == 0
}

// Assignment pairs a request with a tutor named on one of its sessions.
type Assignment struct {
	RequestID string
	TutorID   string
}

// OnAssign returns +1 when this is the tutor's first session in the request.
// alreadyHandling must say whether another session of the same request
// already names tutorID.
func OnAssign(tutorID, requestID string, alreadyHandling bool) Delta {
	d := Delta{TutorID: tutorID, RequestID: requestID}
	if tutorID != "" && !alreadyHandling {
		d.Change = 1
	}
	return d
}

// OnUnassign returns -1 when the tutor has no sessions left in the request.
// remaining is the number of the request's sessions still naming tutorID after
// this removal.
func OnUnassign(tutorID, requestID string, remaining int) Delta {
	d := Delta{TutorID: tutorID, RequestID: requestID}
	if tutorID != "" && remaining == 0 {
		d.Change = -1
	}
	return d
}

// OnSessionDelete applies the unassign rule to a deleted session. An empty
// tutorID (the session was never matched) yields a zero delta.
func OnSessionDelete(tutorID, requestID string, remaining int) Delta {
	return OnUnassign(tutorID, requestID, remaining)
}

// OnReassign moves a session from prevTutorID to nextTutorID. It returns the
// displaced tutor's decrement followed by the chosen tutor's increment; zero
// deltas are omitted. Reassigning to the same tutor changes nothing.
func OnReassign(prevTutorID, nextTutorID, requestID string, prevRemaining int, nextAlreadyHandling bool) []Delta {
	if prevTutorID == nextTutorID {
		return nil
	}
	var out []Delta
	if d := OnUnassign(prevTutorID, requestID, prevRemaining); !d.IsZero() {
		out = append(out, d)
	}
	if d := OnAssign(nextTutorID, requestID, nextAlreadyHandling); !d.IsZero() {
		out = append(out, d)
	}
	return out
}

// OnRequestDelete returns one -1 per distinct tutor named among the deleted
// request's sessions, in first-seen order. tutorIDs holds the tutor of each
// session; unmatched sessions may be passed as empty strings.
func OnRequestDelete(requestID string, tutorIDs []string) []Delta {
	seen := make(map[string]struct{}, len(tutorIDs))
	distinct := make([]string, 0, len(tutorIDs))
	for _, id := range tutorIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	out := BatchDecrement(distinct)
	for i := range out {
		out[i].RequestID = requestID
	}
	return out
}

// BatchDecrement returns -1 for every occurrence in tutorIDs. Duplicates are
// kept: a tutor listed twice is decremented twice.
func BatchDecrement(tutorIDs []string) []Delta {
	out := make([]Delta, 0, len(tutorIDs))
	for _, id := range tutorIDs {
		if id == "" {
			continue
		}
		out = append(out, Delta{TutorID: id, Change: -1})
	}
	return out
}

// Coalesce sums deltas per tutor, drops net-zero entries and keeps the order
// in which tutors first appear. RequestID is kept only when every merged
// delta agrees on it.
func Coalesce(deltas []Delta) []Delta {
	index := make(map[string]int, len(deltas))
	merged := make([]Delta, 0, len(deltas))
	for _, d := range deltas {
		if d.TutorID == "" {
			continue
		}
		if i, ok := index[d.TutorID]; ok {
			merged[i].Change += d.Change
			if merged[i].RequestID != d.RequestID {
				merged[i].RequestID = ""
			}
			continue
		}
		index[d.TutorID] = len(merged)
		merged = append(merged, d)
	}
	out := merged[:0]
	for _, d := range merged {
		if !d.IsZero() {
			out = append(out, d)
		}
	}
	return out
}

// Expected recomputes each tutor's load from the current assignments.
// Unmatched entries (empty TutorID) are ignored.
func Expected(assignments []Assignment) map[string]int {
	perTutor := make(map[string]map[string]struct{})
	for _, a := range assignments {
		if a.TutorID == "" {
			continue
		}
		reqs, ok := perTutor[a.TutorID]
		if !ok {
			reqs = make(map[string]struct{})
			perTutor[a.TutorID] = reqs
		}
		reqs[a.RequestID] = struct{}{}
	}
	out := make(map[string]int, len(perTutor))
	for tutorID, reqs := range perTutor {
		out[tutorID] = len(reqs)
	}
	return out
}
