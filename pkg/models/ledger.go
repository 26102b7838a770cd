package models

import "time"

// WalletLedgerEntry is an append-only record of a wallet balance change.
// Amount is signed (credit positive, debit negative), in kobo. Balance is
// always derived by summing entries; there is no mutable balance field to
// race on between concurrent credit and debit workflows.
type WalletLedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       int64     `json:"amount"`
	ReferenceID  string    `json:"reference_id"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
