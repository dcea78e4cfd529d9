package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger core. Messages are the exact strings the API
// returns in its error envelope, so handlers only need to map each error to a
// status code.
var (
	ErrAccountNotFound   = errors.New("Account not found")
	ErrAccountExists     = errors.New("Account already exists")
	ErrInsufficientFunds = errors.New("Insufficient funds")
	ErrInvalidPassword   = errors.New("Invalid password")
	ErrInvalidAmount     = errors.New("amount must be a number greater than 0")

	ErrMissingSignupFields   = errors.New("username, password and email are required")
	ErrMissingCredentials    = errors.New("username and password are required")
	ErrMissingFundFields     = errors.New("amount and toAccount are required")
	ErrMissingWithdrawFields = errors.New("amount and fromAccount are required")
	ErrMissingTransferFields = errors.New("amount, fromAccount and toAccount are required")

	// ErrStoreUnavailable marks failures of the backing store itself
	// (connectivity, timeout), as opposed to a record being absent.
	ErrStoreUnavailable = errors.New("storage unavailable")
)

// Transfer lookups distinguish which side of the pair is missing.
var (
	ErrGiverNotFound    = fmt.Errorf("%w (Giver)", ErrAccountNotFound)
	ErrReceiverNotFound = fmt.Errorf("%w (Receiver)", ErrAccountNotFound)
)
