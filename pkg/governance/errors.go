package governance

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups.
var (
	// ErrLineageNotFound is returned when no artifact exists for a lineage code.
	ErrLineageNotFound = errors.New("lineage not found")

	// ErrArtifactNotFound is returned when an artifact ID does not resolve.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrRequestNotFound is returned when an approval request ID does not resolve.
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrNoAuthority is returned when no threshold rule has authority over a
	// decision. Callers must not fall back to a default committee.
	ErrNoAuthority = errors.New("no authority configured for decision")
)

// InvalidVersionError reports a malformed semantic version string.
type InvalidVersionError struct {
	Version string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid semantic version %q", e.Version)
}

// InvalidTransitionError reports an artifact status transition that is not
// allowed. Code is machine-readable.
type InvalidTransitionError struct {
	Code    string         `json:"code"`
	From    ArtifactStatus `json:"from"`
	To      ArtifactStatus `json:"to"`
	Message string         `json:"message"`
}

func (e *InvalidTransitionError) Error() string {
	return e.Message
}

// OutOfOrderError reports a decision submitted against a step that is not the
// lowest pending step of its request.
type OutOfOrderError struct {
	RequestID   string `json:"requestId"`
	StepOrder   int    `json:"stepOrder"`
	CurrentStep int    `json:"currentStep"`
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("step %d of request %s cannot be decided: current step is %d",
		e.StepOrder, e.RequestID, e.CurrentStep)
}

// DuplicateDecisionError reports a decision against a step that already holds
// a terminal status, or against an already-closed request.
type DuplicateDecisionError struct {
	RequestID  string     `json:"requestId"`
	StepOrder  int        `json:"stepOrder"`
	StepStatus StepStatus `json:"stepStatus"`
}

func (e *DuplicateDecisionError) Error() string {
	return fmt.Sprintf("step %d of request %s is already %s",
		e.StepOrder, e.RequestID, e.StepStatus)
}

// NotWithdrawableError reports a withdraw attempt after a step has already
// been decided, or after the request itself closed.
type NotWithdrawableError struct {
	RequestID string        `json:"requestId"`
	Status    RequestStatus `json:"status"`
}

func (e *NotWithdrawableError) Error() string {
	return fmt.Sprintf("request %s cannot be withdrawn (status %s, decisions recorded)",
		e.RequestID, e.Status)
}

// NotEscalatableError reports an escalation attempt on a request that is not
// overdue or not pending.
type NotEscalatableError struct {
	RequestID string    `json:"requestId"`
	SLAStatus SLAStatus `json:"slaStatus"`
}

func (e *NotEscalatableError) Error() string {
	return fmt.Sprintf("request %s cannot be escalated (sla status %s)", e.RequestID, e.SLAStatus)
}
