package models

import "time"

// TransactionType classifies a money movement.
type TransactionType string

const (
	TransactionTypeInvestment TransactionType = "investment"
	TransactionTypeROIPayout  TransactionType = "roi_payout"
	TransactionTypeRefund     TransactionType = "refund"
)

// Transaction is the audit record of a money movement. The wallet ledger
// entry that changes the balance references the transaction, not the other
// way round.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id" validate:"required"`
	Type        TransactionType `json:"type"`
	Amount      int64           `json:"amount"` // kobo
	ReferenceID string          `json:"reference_id"`
	CreatedAt   time.Time       `json:"created_at"`
}
