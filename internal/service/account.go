package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/democredit/wallet-service/internal/ledger"
	"github.com/democredit/wallet-service/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	accountIDLength  = 6
	accountIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// attempts to find a free id before giving up
	maxIDAttempts = 5
)

// AccountService is the account directory: it creates accounts and
// authenticates callers.
type AccountService struct {
	store AccountStore
}

// creates a new Account Service
func NewAccountService(store AccountStore) *AccountService {
	return &AccountService{
		store: store,
	}
}

// CreateAccount registers a new account with a zero balance. The password is
// stored as a bcrypt hash with a per-account random salt and never returned.
func (s *AccountService) CreateAccount(ctx context.Context, username, password, email string) (*models.Account, error) {
	if username == "" || password == "" || email == "" {
		return nil, ledger.ErrMissingSignupFields
	}

	// Reject duplicates by email before hashing anything.
	_, err := s.store.GetAccountByEmail(ctx, email)
	if err == nil {
		return nil, ledger.ErrAccountExists
	}
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := s.newAccountID(ctx)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		AccountID:    id,
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// Authenticate verifies a username/password pair and returns the account.
// bcrypt's comparison is constant-time.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	if username == "" || password == "" {
		return nil, ledger.ErrMissingCredentials
	}

	account, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ledger.ErrInvalidPassword
	}

	return account, nil
}

// newAccountID draws random 6-character alphanumeric ids until one is free.
func (s *AccountService) newAccountID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := randomID(accountIDLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate account id: %w", err)
		}

		_, err = s.store.GetAccount(ctx, id)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to find a free account id after %d attempts", maxIDAttempts)
}

func randomID(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = accountIDCharset[int(b)%len(accountIDCharset)]
	}
	return string(buf), nil
}
