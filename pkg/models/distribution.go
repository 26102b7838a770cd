package models

import "time"

// BatchStatus represents the lifecycle state of a distribution batch.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
)

// DistributionResultStatus is the terminal outcome of one investor's payout.
type DistributionResultStatus string

const (
	DistributionResultPending DistributionResultStatus = "pending"
	DistributionResultSuccess DistributionResultStatus = "success"
	DistributionResultFailed  DistributionResultStatus = "failed"
)

// DistributionBatch groups the per-investor payout sub-results of one ROI
// distribution run. Result amounts are computed once at batch creation and
// fixed thereafter; investments added mid-run are not picked up.
type DistributionBatch struct {
	ID               string               `json:"id"`
	PropertyID       string               `json:"property_id"  validate:"required"`
	TotalAmount      int64                `json:"total_amount" validate:"required,gt=0"` // kobo
	DistributionDate time.Time            `json:"distribution_date"`
	Status           BatchStatus          `json:"status"`
	Results          []DistributionResult `json:"results"`
	CreatedAt        time.Time            `json:"created_at"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
}

// DistributionResult is one investor's share of a batch and its outcome.
// A failed result never affects the other results of the batch.
type DistributionResult struct {
	InvestmentID  string                   `json:"investment_id"`
	UserID        string                   `json:"user_id"`
	Amount        int64                    `json:"amount"` // kobo
	Status        DistributionResultStatus `json:"status"`
	FailureReason string                   `json:"failure_reason,omitempty"`
}

// Terminal reports whether every result of the batch has reached a terminal
// status.
func (b *DistributionBatch) Terminal() bool {
	for _, r := range b.Results {
		if r.Status == DistributionResultPending {
			return false
		}
	}

	return true
}

// FailedResults returns the results that need manual follow-up.
func (b *DistributionBatch) FailedResults() []DistributionResult {
	var failed []DistributionResult

	for _, r := range b.Results {
		if r.Status == DistributionResultFailed {
			failed = append(failed, r)
		}
	}

	return failed
}
