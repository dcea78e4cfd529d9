// Package memory provides in-memory implementations of the account store,
// transaction log and event publisher. They back the test suites and mirror
// the atomicity of the SQL store: each mutation runs under one lock.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/democredit/wallet-service/internal/ledger"
	"github.com/democredit/wallet-service/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store holds accounts keyed by id.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	fail     bool
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
	}
}

// FailNext makes every subsequent store call return ErrStoreUnavailable.
func (s *Store) FailNext(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// unavailable mimics the SQL store folding driver failures into
// ErrStoreUnavailable with the underlying message attached.
func unavailable() error {
	return fmt.Errorf("%w: connection refused", ledger.ErrStoreUnavailable)
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return unavailable()
	}
	if _, ok := s.accounts[account.AccountID]; ok {
		return ledger.ErrAccountExists
	}
	for _, existing := range s.accounts {
		if existing.Username == account.Username || existing.Email == account.Email {
			return ledger.ErrAccountExists
		}
	}

	clone := *account
	s.accounts[account.AccountID] = &clone
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *models.Account) bool { return a.AccountID == id })
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *models.Account) bool { return a.Username == username })
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(a *models.Account) bool { return a.Email == email })
}

func (s *Store) find(match func(*models.Account) bool) (*models.Account, error) {
	if s.fail {
		return nil, unavailable()
	}
	for _, account := range s.accounts {
		if match(account) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, ledger.ErrAccountNotFound
}

// AdjustBalance mutates the balance under the store lock, so concurrent
// adjustments of the same account serialize.
func (s *Store) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return decimal.Zero, unavailable()
	}
	account, ok := s.accounts[id]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}

	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, ledger.ErrInsufficientFunds
	}
	account.Balance = newBalance
	return newBalance, nil
}

func (s *Store) TransferBalances(ctx context.Context, fromID, toID string, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return decimal.Zero, unavailable()
	}
	from, ok := s.accounts[fromID]
	if !ok {
		return decimal.Zero, ledger.ErrGiverNotFound
	}
	to, ok := s.accounts[toID]
	if !ok {
		return decimal.Zero, ledger.ErrReceiverNotFound
	}

	newBalance := from.Balance.Sub(amount)
	if newBalance.IsNegative() {
		return decimal.Zero, ledger.ErrInsufficientFunds
	}
	from.Balance = newBalance
	to.Balance = to.Balance.Add(amount)
	return from.Balance, nil
}

// Log keeps the three transaction logs as slices in insertion order. The
// transfer log upserts in place on the record id.
type Log struct {
	mu          sync.Mutex
	fundings    []models.Funding
	withdrawals []models.Withdrawal
	transfers   []models.Transfer
	fail        bool
}

func NewLog() *Log {
	return &Log{}
}

// FailNext makes every subsequent log call return ErrStoreUnavailable.
func (l *Log) FailNext(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = fail
}

func (l *Log) AppendFunding(ctx context.Context, funding *models.Funding) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fail {
		return unavailable()
	}
	if funding.FundingID == "" {
		funding.FundingID = uuid.New().String()
	}
	if funding.CreatedAt.IsZero() {
		funding.CreatedAt = time.Now().UTC()
	}
	l.fundings = append(l.fundings, *funding)
	return nil
}

func (l *Log) AppendWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fail {
		return unavailable()
	}
	if withdrawal.WithdrawalID == "" {
		withdrawal.WithdrawalID = uuid.New().String()
	}
	if withdrawal.CreatedAt.IsZero() {
		withdrawal.CreatedAt = time.Now().UTC()
	}
	l.withdrawals = append(l.withdrawals, *withdrawal)
	return nil
}

func (l *Log) AppendTransfer(ctx context.Context, transfer *models.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fail {
		return unavailable()
	}
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now().UTC()
	}
	for i := range l.transfers {
		if l.transfers[i].TransferID == transfer.TransferID {
			l.transfers[i] = *transfer
			return nil
		}
	}
	l.transfers = append(l.transfers, *transfer)
	return nil
}

func (l *Log) ListFundingsFor(ctx context.Context, accountID string) ([]models.Funding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fail {
		return nil, unavailable()
	}
	out := []models.Funding{}
	for _, f := range l.fundings {
		if f.ToAccount == accountID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (l *Log) ListWithdrawalsFor(ctx context.Context, accountID string) ([]models.Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fail {
		return nil, unavailable()
	}
	out := []models.Withdrawal{}
	for _, w := range l.withdrawals {
		if w.FromAccount == accountID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (l *Log) ListTransfersFrom(ctx context.Context, accountID string) ([]models.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fail {
		return nil, unavailable()
	}
	out := []models.Transfer{}
	for _, t := range l.transfers {
		if t.FromAccount == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Publisher records published events for assertions.
type Publisher struct {
	mu     sync.Mutex
	events []models.LedgerEvent
	fail   bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// FailNext makes every subsequent publish return an error.
func (p *Publisher) FailNext(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

func (p *Publisher) PublishEvent(ctx context.Context, event *models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("publisher unavailable")
	}
	p.events = append(p.events, *event)
	return nil
}

func (p *Publisher) Events() []models.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.LedgerEvent, len(p.events))
	copy(out, p.events)
	return out
}
