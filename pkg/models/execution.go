// Package models defines the core domain models for durable workflow orchestration.
package models

import (
	"encoding/json"
	"time"
)

// WorkflowType identifies one of the two supported workflow shapes.
type WorkflowType string

const (
	WorkflowTypeInvestmentCreation WorkflowType = "investment_creation"
	WorkflowTypeROIDistribution    WorkflowType = "roi_distribution"
)

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending      ExecutionStatus = "pending"
	ExecutionStatusRunning      ExecutionStatus = "running"
	ExecutionStatusCompleted    ExecutionStatus = "completed"
	ExecutionStatusCompensating ExecutionStatus = "compensating"
	ExecutionStatusFailed       ExecutionStatus = "failed"
	ExecutionStatusRejected     ExecutionStatus = "rejected" // Compliance denial, terminal, not an error
)

// IsTerminal reports whether the status permits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusRejected
}

// WorkflowExecution is one instance of a running or completed workflow.
//
// CurrentStepIndex advances monotonically; it points at the next step to run,
// so a worker picking up the execution after a crash resumes at the correct
// step without re-running completed ones. Terminal executions are archived,
// never deleted.
type WorkflowExecution struct {
	ID               string          `json:"id"`
	WorkflowType     WorkflowType    `json:"workflow_type" validate:"required"`
	Input            json.RawMessage `json:"input"`
	Status           ExecutionStatus `json:"status"`
	CurrentStepIndex int             `json:"current_step_index"`
	ErrorReason      string          `json:"error_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// InvestmentInput is the opaque input payload of an investment_creation execution.
type InvestmentInput struct {
	InvestorID    string `json:"investor_id"    validate:"required"`
	PropertyID    string `json:"property_id"    validate:"required"`
	Amount        int64  `json:"amount"         validate:"required,gt=0"` // kobo
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// DistributionInput is the opaque input payload of a roi_distribution execution.
type DistributionInput struct {
	BatchID string `json:"batch_id" validate:"required"`
}
