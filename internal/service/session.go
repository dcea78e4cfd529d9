package service

import (
	"context"

	"github.com/democredit/wallet-service/internal/models"
)

// SessionService assembles the login view: the authenticated account plus
// its complete transaction history.
type SessionService struct {
	directory *AccountService
	logs      TransactionLog
}

func NewSessionService(directory *AccountService, logs TransactionLog) *SessionService {
	return &SessionService{
		directory: directory,
		logs:      logs,
	}
}

// Login authenticates the caller and returns the account's public fields
// together with its credits, debits and outgoing transfers. The history
// slices are empty, never nil, when there is no activity.
func (s *SessionService) Login(ctx context.Context, username, password string) (*models.SessionView, error) {
	account, err := s.directory.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	credits, err := s.logs.ListFundingsFor(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	debits, err := s.logs.ListWithdrawalsFor(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	transfers, err := s.logs.ListTransfersFrom(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}

	if credits == nil {
		credits = []models.Funding{}
	}
	if debits == nil {
		debits = []models.Withdrawal{}
	}
	if transfers == nil {
		transfers = []models.Transfer{}
	}

	return &models.SessionView{
		User: models.UserView{
			AccountID:      account.AccountID,
			Username:       account.Username,
			AccountBalance: account.Balance.StringFixed(2),
		},
		Credits:   credits,
		Debits:    debits,
		Transfers: transfers,
	}, nil
}
