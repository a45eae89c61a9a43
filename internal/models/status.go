package models

// Status represents a job's position in the pipeline lifecycle. Normal
// flow only ever advances; the approval callback may move a job from
// pending_approval to approved, rejected or editing, and editing re-enters
// pending_approval.
type Status string

const (
	StatusNew              Status = "new"
	StatusScoring          Status = "scoring"
	StatusFilteredOut      Status = "filtered_out"
	StatusExtracting       Status = "extracting"
	StatusGenerating       Status = "generating"
	StatusBoostDeciding    Status = "boost_deciding"
	StatusPendingApproval  Status = "pending_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusEditing          Status = "editing"
	StatusSubmitted        Status = "submitted"
	StatusSubmissionFailed Status = "submission_failed"

	// StatusError is absorbing and reachable from any non-terminal state
	StatusError Status = "error"
)

// transitions is the edge set of the status graph. StatusError is handled
// separately since every non-terminal state may enter it.
var transitions = map[Status][]Status{
	StatusNew:             {StatusScoring},
	StatusScoring:         {StatusFilteredOut, StatusExtracting},
	StatusExtracting:      {StatusGenerating},
	StatusGenerating:      {StatusBoostDeciding},
	StatusBoostDeciding:   {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusEditing},
	StatusEditing:         {StatusPendingApproval},
	StatusApproved:        {StatusSubmitted, StatusSubmissionFailed},
}

// rank orders statuses for monotonicity checks. Branch states share a rank.
var rank = map[Status]int{
	StatusNew:              0,
	StatusScoring:          1,
	StatusFilteredOut:      2,
	StatusExtracting:       2,
	StatusGenerating:       3,
	StatusBoostDeciding:    4,
	StatusPendingApproval:  5,
	StatusApproved:         6,
	StatusRejected:         6,
	StatusEditing:          6,
	StatusSubmitted:        7,
	StatusSubmissionFailed: 7,
	StatusError:            8,
}

// IsValid reports whether s is a known status value
func (s Status) IsValid() bool {
	_, ok := rank[s]
	return ok
}

// IsTerminal reports whether a job in this status is finished for the
// current run and will never advance again
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilteredOut, StatusRejected, StatusSubmitted, StatusSubmissionFailed, StatusError:
		return true
	}
	return false
}

// Rank returns the status position used for never-regress assertions.
// The editing edge back to pending_approval is the single sanctioned
// exception and is checked through CanTransition instead.
func (s Status) Rank() int {
	r, ok := rank[s]
	if !ok {
		return -1
	}
	return r
}

// CanTransition reports whether the graph permits moving from s to next
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return false
	}
	if next == StatusError {
		return !s.IsTerminal()
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus returns the Status for a raw string, or false when unknown
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	if s.IsValid() {
		return s, true
	}
	return "", false
}
