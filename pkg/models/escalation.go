package models

import "time"

// CompensationEscalation is a manual-intervention queue entry created when a
// compensating activity exhausts its retries. The execution still terminates
// as failed; the escalation row is what keeps it from being silently lost.
type CompensationEscalation struct {
	ID          string     `json:"id"`
	ExecutionID string     `json:"execution_id"`
	StepName    string     `json:"step_name"`
	Reason      string     `json:"reason"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
