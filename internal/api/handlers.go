package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/democredit/wallet-service/internal/ledger"
	"github.com/democredit/wallet-service/internal/models"
	"github.com/democredit/wallet-service/internal/service"
	"github.com/gorilla/mux"
)

// Handler is for handling api requests
type Handler struct {
	accountService     *service.AccountService
	transactionService *service.TransactionService
	sessionService     *service.SessionService
}

func NewHandler(accountService *service.AccountService, transactionService *service.TransactionService, sessionService *service.SessionService) *Handler {
	return &Handler{
		accountService:     accountService,
		transactionService: transactionService,
		sessionService:     sessionService,
	}
}

// envelope wraps every response body.
type envelope struct {
	Error   bool        `json:"error"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: false, Message: message, Data: data})
}

// for error response
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: true, Message: message})
}

// statusFor maps ledger errors onto HTTP status codes. Anything outside the
// taxonomy, storage failures included, is a 500 with the message verbatim.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidPassword):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrAccountExists),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrMissingSignupFields),
		errors.Is(err, ledger.ErrMissingCredentials),
		errors.Is(err, ledger.ErrMissingFundFields),
		errors.Is(err, ledger.ErrMissingWithdrawFields),
		errors.Is(err, ledger.ErrMissingTransferFields):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondLedgerError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

// account creation
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	response := models.AccountResponse{
		AccountID:      account.AccountID,
		Username:       account.Username,
		Email:          account.Email,
		AccountBalance: account.Balance.StringFixed(2),
	}

	respondJSON(w, http.StatusCreated, "Account created successfully", response)
}

// Fund credits the caller's own account.
func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	var req models.FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.transactionService.Fund(r.Context(), callerAccount(r), string(req.Amount))
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, "Funding successful", result)
}

// Withdraw debits the caller's own account.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req models.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.transactionService.Withdraw(r.Context(), callerAccount(r), string(req.Amount))
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, "Withdrawal successful", result)
}

// Transfer moves funds from the caller's account to the target account.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.transactionService.Transfer(r.Context(), callerAccount(r), req.ToAccount, string(req.Amount))
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, "Transfer successful", result)
}

// Login authenticates and returns the account with its transaction history.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	view, err := h.sessionService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, "Login successful", view)
}

// handles health check
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, "ok", nil)
}

// sets up the API routes
func SetupRoutes(r *mux.Router, identity IdentityProvider, accountService *service.AccountService, transactionService *service.TransactionService, sessionService *service.SessionService) {
	h := NewHandler(accountService, transactionService, sessionService)

	// Health check (check if API is working)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	account := r.PathPrefix("/api/v1/user/account").Subrouter()

	// Open routes
	account.HandleFunc("/create", h.CreateAccount).Methods("POST")
	account.HandleFunc("/login", h.Login).Methods("POST")

	// Routes acting as the resolved caller identity
	account.HandleFunc("/fund", RequireIdentity(identity, h.Fund)).Methods("POST")
	account.HandleFunc("/withdraw", RequireIdentity(identity, h.Withdraw)).Methods("POST")
	account.HandleFunc("/transfer", RequireIdentity(identity, h.Transfer)).Methods("POST")
}
