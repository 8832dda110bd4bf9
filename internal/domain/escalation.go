package domain

import "time"

// EscalationRun records the outcome of one escalation pass.
type EscalationRun struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cutoff     time.Time `json:"cutoff"`
	Updated    int64     `json:"updated"`
	Trigger    string    `json:"trigger"`
	Error      string    `json:"error,omitempty"`
}

// Succeeded reports whether the run completed without error.
func (r EscalationRun) Succeeded() bool {
	return r.Error == ""
}
