package calls

import "strings"

// Reasons a reported status is not applied.
const (
	IgnoreUnknown    = "unknown_status"
	IgnoreTerminal   = "terminal"
	IgnoreDuplicate  = "duplicate"
	IgnoreStale      = "stale"
	IgnoreOnHold     = "on_hold"
	IgnoreLocalState = "local_state"
)

// Outcome is the decision for one reported status.
type Outcome struct {
	Next  Status
	Apply bool

	// Terminal is set when Next is terminal and the agent must be released.
	Terminal bool
	// TransferAccepted is set for transferring -> in-progress.
	TransferAccepted bool

	// Reason explains why Apply is false.
	Reason string
}

// NormalizeStatus maps a provider status string onto Status.
// Provider aliases: initiated is queued, answered is in-progress.
func NormalizeStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	switch s {
	case "initiated":
		return StatusQueued, true
	case "answered":
		return StatusInProgress, true
	}
	st := Status(s)
	if !st.Valid() {
		return "", false
	}
	return st, true
}

// rank orders the provider-driven progression. Local side states share in-progress's rank.
func rank(s Status) int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRinging:
		return 1
	case StatusInProgress, StatusOnHold, StatusTransferring:
		return 2
	default:
		return 3
	}
}

// Transition decides what a reported status does to a call currently in current.
//
//	queued -> ringing -> in-progress -> {completed, failed, busy, no-answer, canceled}
//	in-progress <-> on-hold            (engine only)
//	in-progress -> transferring        (engine only)
//	transferring -> in-progress | completed
//
// Any non-terminal state may jump to a terminal one. Terminal states absorb everything.
func Transition(current, reported Status) Outcome {
	switch {
	case !reported.Valid():
		return Outcome{Next: current, Reason: IgnoreUnknown}
	case current.IsTerminal():
		return Outcome{Next: current, Reason: IgnoreTerminal}
	case reported == current:
		return Outcome{Next: current, Reason: IgnoreDuplicate}
	case reported.IsTerminal():
		return Outcome{Next: reported, Apply: true, Terminal: true}
	case reported == StatusOnHold || reported == StatusTransferring:
		return Outcome{Next: current, Reason: IgnoreLocalState}
	case current == StatusTransferring && reported == StatusInProgress:
		return Outcome{Next: StatusInProgress, Apply: true, TransferAccepted: true}
	case current == StatusOnHold && reported == StatusInProgress:
		return Outcome{Next: current, Reason: IgnoreOnHold}
	case rank(reported) < rank(current):
		return Outcome{Next: current, Reason: IgnoreStale}
	default:
		return Outcome{Next: reported, Apply: true}
	}
}
