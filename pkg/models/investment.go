package models

import "time"

// InvestmentStatus represents the lifecycle state of an investment record.
type InvestmentStatus string

const (
	InvestmentStatusActive  InvestmentStatus = "active"
	InvestmentStatusPending InvestmentStatus = "pending"
	InvestmentStatusFailed  InvestmentStatus = "failed"
)

// Investment is the business record created as the successful outcome of the
// investment-creation workflow. It is created only after payment succeeds,
// never speculatively.
type Investment struct {
	ID               string           `json:"id"`
	InvestorID       string           `json:"investor_id" validate:"required"`
	PropertyID       string           `json:"property_id" validate:"required"`
	Amount           int64            `json:"amount"      validate:"required,gt=0"` // kobo
	PaymentReference string           `json:"payment_reference"`
	Status           InvestmentStatus `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
}
