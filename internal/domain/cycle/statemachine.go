package cycle

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a cycle lifecycle stage.
type Status string

const (
	StatusPlanning      Status = "planning"
	StatusStimulation   Status = "stimulation"
	StatusTrigger       Status = "trigger"
	StatusRetrieval     Status = "retrieval"
	StatusFertilization Status = "fertilization"
	StatusCulture       Status = "culture"
	StatusTransfer      Status = "transfer"
	StatusTWW           Status = "tww"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

// Statuses is the full selectable order. Cancelled is outside the sequence.
var Statuses = []Status{
	StatusPlanning, StatusStimulation, StatusTrigger, StatusRetrieval,
	StatusFertilization, StatusCulture, StatusTransfer, StatusTWW, StatusCompleted,
}

// Older records and clients use these spellings.
var statusAliases = map[string]Status{
	"planned":       StatusPlanning,
	"monitoring":    StatusStimulation,
	"opu":           StatusRetrieval,
	"luteal":        StatusTWW,
	"2ww":           StatusTWW,
	"two_week_wait": StatusTWW,
	"canceled":      StatusCancelled,
}

func (s Status) IsValid() bool {
	if s == StatusCancelled {
		return true
	}
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Closed reports whether the status ends the cycle.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus normalizes case, whitespace and legacy aliases.
func ParseStatus(raw string) (Status, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := statusAliases[v]; ok {
		return s, true
	}
	s := Status(v)
	return s, s.IsValid()
}

// Step is one entry in the progress display.
type Step struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
}

// DisplaySteps is the condensed progress bar. Fertilization and culture are
// shown at the retrieval step.
var DisplaySteps = []Step{
	{StatusPlanning, "Planning"},
	{StatusStimulation, "Stimulation"},
	{StatusTrigger, "Trigger"},
	{StatusRetrieval, "Retrieval"},
	{StatusTransfer, "Transfer"},
	{StatusTWW, "TWW"},
	{StatusCompleted, "Completed"},
}

// StepIndex returns the position of raw in DisplaySteps. Empty, unknown and
// cancelled statuses map to 0.
func StepIndex(raw string) int {
	s, ok := ParseStatus(raw)
	if !ok {
		return 0
	}
	switch s {
	case StatusFertilization, StatusCulture:
		s = StatusRetrieval
	}
	for i, step := range DisplaySteps {
		if step.Status == s {
			return i
		}
	}
	return 0
}

// Policy selects how strictly transitions are checked.
type Policy string

const (
	// PolicyGuarded allows any move between open statuses, but leaving
	// completed or cancelled needs an explicit reopen.
	PolicyGuarded Policy = "guarded"
	// PolicyPermissive allows any transition, as older clients expect.
	PolicyPermissive Policy = "permissive"
)

func (p Policy) IsValid() bool {
	return p == PolicyGuarded || p == PolicyPermissive
}

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound is returned when a cycle does not exist.
	ErrNotFound = errors.New("not found")
)

// TransitionError rejects a requested status change.
type TransitionError struct {
	From   Status `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move cycle from %q to %q: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidateTransition checks a requested move from current and returns the
// normalized target status. Backward and skipping moves between open
// statuses are allowed. A current status that cannot be parsed is treated as
// unset.
func ValidateTransition(current Status, requested string, policy Policy) (Status, error) {
	from, fromOK := ParseStatus(string(current))
	if !fromOK {
		from = current
	}
	to, ok := ParseStatus(requested)
	if !ok {
		return "", &TransitionError{From: from, To: requested, Reason: "unknown status"}
	}
	if policy == PolicyPermissive || !fromOK || from == to {
		return to, nil
	}
	if from.Closed() {
		return "", &TransitionError{From: from, To: string(to), Reason: "cycle is " + string(from) + "; reopen it first"}
	}
	return to, nil
}

// ValidateReopen checks an explicit reopen of a closed cycle into an open
// status and returns the normalized target.
func ValidateReopen(current Status, requested string) (Status, error) {
	from, _ := ParseStatus(string(current))
	if !from.Closed() {
		return "", &TransitionError{From: current, To: requested, Reason: "only completed or cancelled cycles can be reopened"}
	}
	to, ok := ParseStatus(requested)
	if !ok {
		return "", &TransitionError{From: from, To: requested, Reason: "unknown status"}
	}
	if to.Closed() {
		return "", &TransitionError{From: from, To: string(to), Reason: "reopen target must be an open status"}
	}
	return to, nil
}

// Progress is the display state of a cycle.
type Progress struct {
	Status    Status `json:"status"`
	StepIndex int    `json:"step_index"`
	Steps     []Step `json:"steps"`
	Cancelled bool   `json:"cancelled"`
}

// ProgressFor builds the progress display for status.
func ProgressFor(status Status) Progress {
	s, _ := ParseStatus(string(status))
	return Progress{
		Status:    s,
		StepIndex: StepIndex(string(status)),
		Steps:     DisplaySteps,
		Cancelled: s == StatusCancelled,
	}
}
