package models

import (
	"time"

	"github.com/democredit/wallet-service/internal/ledger"
	"github.com/shopspring/decimal"
)

// Funding is one credit applied to an account. Append-only, one record per
// successful fund operation.
type Funding struct {
	FundingID string    `json:"fundingId" bson:"_id"`
	ToAccount string    `json:"toAccount" bson:"to_account"`
	Amount    string    `json:"amount" bson:"amount"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Withdrawal is one debit taken from an account. Append-only.
type Withdrawal struct {
	WithdrawalID string    `json:"withdrawalId" bson:"_id"`
	FromAccount  string    `json:"fromAccount" bson:"from_account"`
	Amount       string    `json:"amount" bson:"amount"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// Transfer records a balance movement between two accounts. Its id is derived
// as "{fromAccount}-{toAccount}", so the log keeps only the most recent
// transfer per ordered pair.
type Transfer struct {
	TransferID  string    `json:"transferId" bson:"_id"`
	FromAccount string    `json:"fromAccount" bson:"from_account"`
	ToAccount   string    `json:"toAccount" bson:"to_account"`
	Amount      string    `json:"amount" bson:"amount"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

type FundRequest struct {
	Amount Amount `json:"amount"`
}

type WithdrawRequest struct {
	Amount Amount `json:"amount"`
}

type TransferRequest struct {
	ToAccount string `json:"toAccount"`
	Amount    Amount `json:"amount"`
}

// FundingResult is the API payload for a successful fund operation.
type FundingResult struct {
	CreatedAt      time.Time `json:"createdAt"`
	FundingID      string    `json:"fundingId"`
	Amount         string    `json:"amount"`
	ToAccount      string    `json:"toAccount"`
	AccountBalance string    `json:"accountBalance"`
}

// WithdrawalResult is the API payload for a successful withdrawal.
type WithdrawalResult struct {
	CreatedAt      time.Time `json:"createdAt"`
	WithdrawalID   string    `json:"withdrawalId"`
	Amount         string    `json:"amount"`
	FromAccount    string    `json:"fromAccount"`
	AccountBalance string    `json:"accountBalance"`
}

// TransferResult is the API payload for a successful transfer. AccountBalance
// is the source account's balance after the debit.
type TransferResult struct {
	CreatedAt      time.Time `json:"createdAt"`
	TransferID     string    `json:"transferId"`
	Amount         string    `json:"amount"`
	FromAccount    string    `json:"fromAccount"`
	ToAccount      string    `json:"toAccount"`
	AccountBalance string    `json:"accountBalance"`
}

// Ledger event operations published after a committed mutation.
const (
	OpFunding    = "funding"
	OpWithdrawal = "withdrawal"
	OpTransfer   = "transfer"
)

// LedgerEvent notifies downstream consumers of a committed balance mutation.
type LedgerEvent struct {
	Operation   string    `json:"operation"`
	RecordID    string    `json:"recordId"`
	FromAccount string    `json:"fromAccount,omitempty"`
	ToAccount   string    `json:"toAccount,omitempty"`
	Amount      string    `json:"amount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ParseAmount validates a textual amount before any account lookup happens.
// It rejects anything that is not a finite decimal greater than zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, ledger.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ledger.ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ledger.ErrInvalidAmount
	}
	return d, nil
}
