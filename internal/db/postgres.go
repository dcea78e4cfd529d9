package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/democredit/wallet-service/internal/ledger"
	"github.com/democredit/wallet-service/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Postgres stores the accounts table. Balance mutations run as single SQL
// transactions with row locks so concurrent requests on the same account
// serialize instead of losing updates.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

// creates a new Postgres instance
func NewPostgres(connStr string, timeout time.Duration) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db, timeout: timeout}, nil
}

// closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// initialize the database schema, idempotent
func (p *Postgres) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		account_id VARCHAR(6) PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		account_balance DECIMAL(15, 2) NOT NULL DEFAULT 0 CHECK (account_balance >= 0),
		created_at TIMESTAMP NOT NULL
	);`

	_, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	return nil
}

func (p *Postgres) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// storeErr folds driver and timeout failures into ErrStoreUnavailable,
// keeping the underlying message.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
}

// CreateAccount inserts a new account. A duplicate id, username or email
// surfaces as ErrAccountExists.
func (p *Postgres) CreateAccount(ctx context.Context, account *models.Account) error {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	query := `
	INSERT INTO accounts (account_id, username, password, email, account_balance, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := p.db.ExecContext(ctx, query,
		account.AccountID, account.Username, account.PasswordHash,
		account.Email, account.Balance, account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ledger.ErrAccountExists
		}
		return storeErr(err)
	}
	return nil
}

// GetAccount retrieves an account by id.
func (p *Postgres) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return p.getAccountBy(ctx, "account_id", id)
}

// GetAccountByUsername retrieves an account by its unique username.
func (p *Postgres) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return p.getAccountBy(ctx, "username", username)
}

// GetAccountByEmail retrieves an account by its unique email.
func (p *Postgres) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return p.getAccountBy(ctx, "email", email)
}

func (p *Postgres) getAccountBy(ctx context.Context, column, value string) (*models.Account, error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`
	SELECT account_id, username, password, email, account_balance, created_at
	FROM accounts
	WHERE %s = $1`, column)

	var account models.Account
	err := p.db.QueryRowContext(ctx, query, value).Scan(
		&account.AccountID, &account.Username, &account.PasswordHash,
		&account.Email, &account.Balance, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, storeErr(err)
	}

	return &account, nil
}

// AdjustBalance applies a signed delta to an account balance inside one
// transaction. The row stays locked from read to write, and a result below
// zero aborts with ErrInsufficientFunds before anything is written.
func (p *Postgres) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (newBalance decimal.Decimal, err error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var currentBalance decimal.Decimal
	err = tx.QueryRowContext(
		ctx,
		"SELECT account_balance FROM accounts WHERE account_id = $1 FOR UPDATE",
		id,
	).Scan(&currentBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ledger.ErrAccountNotFound
		}
		return decimal.Zero, storeErr(err)
	}

	newBalance = currentBalance.Add(delta)
	if newBalance.IsNegative() {
		err = ledger.ErrInsufficientFunds
		return decimal.Zero, err
	}

	_, err = tx.ExecContext(
		ctx,
		"UPDATE accounts SET account_balance = $1 WHERE account_id = $2",
		newBalance, id,
	)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, storeErr(err)
	}

	return newBalance, nil
}

// TransferBalances debits the source and credits the target inside a single
// transaction; if either write fails the whole transfer rolls back, so funds
// are never stranded. Both rows are locked in account-id order to avoid
// deadlocks between opposing transfers.
func (p *Postgres) TransferBalances(ctx context.Context, fromID, toID string, amount decimal.Decimal) (fromBalance decimal.Decimal, err error) {
	ctx, cancel := p.opCtx(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(
		ctx,
		"SELECT account_id, account_balance FROM accounts WHERE account_id = ANY($1) ORDER BY account_id FOR UPDATE",
		pq.Array([]string{fromID, toID}),
	)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	balances := make(map[string]decimal.Decimal, 2)
	for rows.Next() {
		var id string
		var balance decimal.Decimal
		if err = rows.Scan(&id, &balance); err != nil {
			rows.Close()
			return decimal.Zero, storeErr(err)
		}
		balances[id] = balance
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return decimal.Zero, storeErr(err)
	}

	currentBalance, ok := balances[fromID]
	if !ok {
		err = ledger.ErrGiverNotFound
		return decimal.Zero, err
	}
	if _, ok := balances[toID]; !ok {
		err = ledger.ErrReceiverNotFound
		return decimal.Zero, err
	}

	if currentBalance.Sub(amount).IsNegative() {
		err = ledger.ErrInsufficientFunds
		return decimal.Zero, err
	}

	// Relative updates: the balances were validated under the row locks, so a
	// self-transfer nets to zero instead of minting funds.
	_, err = tx.ExecContext(
		ctx,
		"UPDATE accounts SET account_balance = account_balance - $1 WHERE account_id = $2",
		amount, fromID,
	)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	_, err = tx.ExecContext(
		ctx,
		"UPDATE accounts SET account_balance = account_balance + $1 WHERE account_id = $2",
		amount, toID,
	)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, storeErr(err)
	}

	if fromID == toID {
		return currentBalance, nil
	}
	return currentBalance.Sub(amount), nil
}
