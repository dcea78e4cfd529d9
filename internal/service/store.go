package service

import (
	"context"

	"github.com/democredit/wallet-service/internal/models"
	"github.com/shopspring/decimal"
)

// AccountStore is the durable account table. Balance mutations are atomic:
// the read-validate-write runs as one unit per call, so concurrent mutations
// of the same account cannot lose updates.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// AdjustBalance applies a signed delta and returns the new balance. It
	// fails with ErrInsufficientFunds if the result would be negative,
	// without writing anything.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)

	// TransferBalances debits fromID and credits toID atomically, returning
	// the source's new balance. Neither side commits without the other.
	TransferBalances(ctx context.Context, fromID, toID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// TransactionLog holds the three append-only records of balance mutations.
type TransactionLog interface {
	AppendFunding(ctx context.Context, funding *models.Funding) error
	AppendWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error
	AppendTransfer(ctx context.Context, transfer *models.Transfer) error
	ListFundingsFor(ctx context.Context, accountID string) ([]models.Funding, error)
	ListWithdrawalsFor(ctx context.Context, accountID string) ([]models.Withdrawal, error)
	ListTransfersFrom(ctx context.Context, accountID string) ([]models.Transfer, error)
}

// EventPublisher feeds committed mutations to downstream consumers.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.LedgerEvent) error
}
