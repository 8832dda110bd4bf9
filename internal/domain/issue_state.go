package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidTransition is returned when the requested status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrActionTakenRequired guards resolution.
	ErrActionTakenRequired = errors.New("actionTaken is required to resolve")
	// ErrMaintenanceFieldsRequired guards the maintenance hand-off.
	ErrMaintenanceFieldsRequired = errors.New("logNumber and maintenanceComment are required")
)

var allowedTransitions = map[IssueStatus][]IssueStatus{
	IssueStatusPending:     {IssueStatusResolved, IssueStatusMaintenance, IssueStatusCancelled},
	IssueStatusMaintenance: {IssueStatusResolved},
	IssueStatusCancelled:   {IssueStatusPending},
	IssueStatusResolved:    {},
}

// IsValidTransition reports whether the state machine permits current -> next.
func IsValidTransition(current, next IssueStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is possible.
func (s IssueStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Resolve closes the issue. Irreversible.
func (i *Issue) Resolve(actor Identity, now time.Time) error {
	if !IsValidTransition(i.Status, IssueStatusResolved) {
		return ErrInvalidTransition
	}
	if strings.TrimSpace(i.ActionTaken) == "" {
		return ErrActionTakenRequired
	}
	ref := actor.Ref()
	closed := now
	i.Status = IssueStatusResolved
	i.ResolvedBy = &ref
	i.DateOfClosure = &closed
	return nil
}

// MarkMaintenance hands the issue to maintenance under a work log number.
func (i *Issue) MarkMaintenance() error {
	if !IsValidTransition(i.Status, IssueStatusMaintenance) {
		return ErrInvalidTransition
	}
	if strings.TrimSpace(i.LogNumber) == "" || strings.TrimSpace(i.MaintenanceComment) == "" {
		return ErrMaintenanceFieldsRequired
	}
	i.Status = IssueStatusMaintenance
	return nil
}

// ToggleCancel flips Pending <-> Cancelled.
func (i *Issue) ToggleCancel() error {
	switch i.Status {
	case IssueStatusPending:
		i.Status = IssueStatusCancelled
	case IssueStatusCancelled:
		i.Status = IssueStatusPending
	default:
		return ErrInvalidTransition
	}
	return nil
}

// Escalate raises the severity flag. It reports whether anything changed.
func (i *Issue) Escalate() bool {
	if i.IsPrioritized || i.Status == IssueStatusResolved {
		return false
	}
	i.IsPrioritized = true
	return true
}
