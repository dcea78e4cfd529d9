package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/democredit/wallet-service/internal/ledger"
	"github.com/democredit/wallet-service/internal/models"
	"github.com/google/uuid"
)

// TransactionService is the balance operation engine. Every operation runs
// the same protocol: validate the amount, mutate the balance atomically in
// the account store, then append one log record for the mutation.
type TransactionService struct {
	accounts AccountStore
	logs     TransactionLog
	events   EventPublisher
}

// creates a new TransactionService
func NewTransactionService(accounts AccountStore, logs TransactionLog, events EventPublisher) *TransactionService {
	return &TransactionService{
		accounts: accounts,
		logs:     logs,
		events:   events,
	}
}

// Fund credits an account and records the funding.
func (s *TransactionService) Fund(ctx context.Context, toAccount, rawAmount string) (*models.FundingResult, error) {
	if rawAmount == "" || toAccount == "" {
		return nil, ledger.ErrMissingFundFields
	}
	amount, err := models.ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	newBalance, err := s.accounts.AdjustBalance(ctx, toAccount, amount)
	if err != nil {
		return nil, err
	}

	funding := &models.Funding{
		FundingID: uuid.New().String(),
		ToAccount: toAccount,
		Amount:    amount.StringFixed(2),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.logs.AppendFunding(ctx, funding); err != nil {
		return nil, fmt.Errorf("balance updated but funding record failed: %w", err)
	}

	s.publish(ctx, &models.LedgerEvent{
		Operation: models.OpFunding,
		RecordID:  funding.FundingID,
		ToAccount: toAccount,
		Amount:    funding.Amount,
		CreatedAt: funding.CreatedAt,
	})

	return &models.FundingResult{
		CreatedAt:      funding.CreatedAt,
		FundingID:      funding.FundingID,
		Amount:         funding.Amount,
		ToAccount:      toAccount,
		AccountBalance: newBalance.StringFixed(2),
	}, nil
}

// Withdraw debits an account and records the withdrawal. The store rejects
// the debit before anything is written if funds are insufficient.
func (s *TransactionService) Withdraw(ctx context.Context, fromAccount, rawAmount string) (*models.WithdrawalResult, error) {
	if rawAmount == "" || fromAccount == "" {
		return nil, ledger.ErrMissingWithdrawFields
	}
	amount, err := models.ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	newBalance, err := s.accounts.AdjustBalance(ctx, fromAccount, amount.Neg())
	if err != nil {
		return nil, err
	}

	withdrawal := &models.Withdrawal{
		WithdrawalID: uuid.New().String(),
		FromAccount:  fromAccount,
		Amount:       amount.StringFixed(2),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.logs.AppendWithdrawal(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("balance updated but withdrawal record failed: %w", err)
	}

	s.publish(ctx, &models.LedgerEvent{
		Operation:   models.OpWithdrawal,
		RecordID:    withdrawal.WithdrawalID,
		FromAccount: fromAccount,
		Amount:      withdrawal.Amount,
		CreatedAt:   withdrawal.CreatedAt,
	})

	return &models.WithdrawalResult{
		CreatedAt:      withdrawal.CreatedAt,
		WithdrawalID:   withdrawal.WithdrawalID,
		Amount:         withdrawal.Amount,
		FromAccount:    fromAccount,
		AccountBalance: newBalance.StringFixed(2),
	}, nil
}

// Transfer moves funds between two accounts. Debit and credit commit
// together or not at all. The transfer record's id is "{from}-{to}", so a
// repeat transfer between the same ordered pair supersedes the old record.
func (s *TransactionService) Transfer(ctx context.Context, fromAccount, toAccount, rawAmount string) (*models.TransferResult, error) {
	if rawAmount == "" || fromAccount == "" || toAccount == "" {
		return nil, ledger.ErrMissingTransferFields
	}
	amount, err := models.ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	fromBalance, err := s.accounts.TransferBalances(ctx, fromAccount, toAccount, amount)
	if err != nil {
		return nil, err
	}

	transfer := &models.Transfer{
		TransferID:  fmt.Sprintf("%s-%s", fromAccount, toAccount),
		FromAccount: fromAccount,
		ToAccount:   toAccount,
		Amount:      amount.StringFixed(2),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.logs.AppendTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("balances updated but transfer record failed: %w", err)
	}

	s.publish(ctx, &models.LedgerEvent{
		Operation:   models.OpTransfer,
		RecordID:    transfer.TransferID,
		FromAccount: fromAccount,
		ToAccount:   toAccount,
		Amount:      transfer.Amount,
		CreatedAt:   transfer.CreatedAt,
	})

	return &models.TransferResult{
		CreatedAt:      transfer.CreatedAt,
		TransferID:     transfer.TransferID,
		Amount:         transfer.Amount,
		FromAccount:    fromAccount,
		ToAccount:      toAccount,
		AccountBalance: fromBalance.StringFixed(2),
	}, nil
}

// publish emits a ledger event. The mutation is already committed at this
// point, so a publish failure is logged rather than failing the request.
func (s *TransactionService) publish(ctx context.Context, event *models.LedgerEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		log.Printf("failed to publish %s event %s: %v", event.Operation, event.RecordID, err)
	}
}
