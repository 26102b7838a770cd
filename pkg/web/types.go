// Package web provides the HTTP trigger surface of the orchestration
// subsystem: submit endpoints returning pollable handles, and the status
// endpoints behind them.
package web

// SubmitInvestmentResponse carries the handle of an accepted investment
// submission.
type SubmitInvestmentResponse struct {
	ExecutionID string `json:"execution_id"`
}

// SubmitDistributionResponse carries the handle of an accepted distribution
// submission.
type SubmitDistributionResponse struct {
	BatchID string `json:"batch_id"`
}
