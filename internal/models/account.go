package models

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"
)

// Account is a ledger account owned by one registered user. Balance is the
// only mutable field; the password hash never leaves the service layer.
type Account struct {
	AccountID    string          `json:"accountId" db:"account_id"`
	Username     string          `json:"username" db:"username"`
	PasswordHash string          `json:"-" db:"password"`
	Email        string          `json:"email" db:"email"`
	Balance      decimal.Decimal `json:"accountBalance" db:"account_balance"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// AccountResponse is the public view returned on signup: the password is
// excluded and the balance is rendered with two decimal places.
type AccountResponse struct {
	AccountID      string `json:"accountId"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	AccountBalance string `json:"accountBalance"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserView carries the account's public fields inside a login response.
type UserView struct {
	AccountID      string `json:"accountId"`
	Username       string `json:"username"`
	AccountBalance string `json:"accountBalance"`
}

// SessionView is the login payload: the user plus its full transaction
// history. The slices are always present, empty when there is no history.
type SessionView struct {
	User      UserView     `json:"user"`
	Credits   []Funding    `json:"credits"`
	Debits    []Withdrawal `json:"debits"`
	Transfers []Transfer   `json:"transfers"`
}

// Amount accepts a JSON number or string; clients send both. The value is
// kept as text and validated by ParseAmount before any balance math.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		return nil
	}
	*a = Amount(b)
	return nil
}
