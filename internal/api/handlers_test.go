package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/democredit/wallet-service/internal/db/memory"
	"github.com/democredit/wallet-service/internal/service"
	"github.com/gorilla/mux"
)

const basePath = "/api/v1/user/account"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	logs := memory.NewLog()
	accounts := service.NewAccountService(store)
	engine := service.NewTransactionService(store, logs, memory.NewPublisher())
	sessions := service.NewSessionService(accounts, logs)

	router := mux.NewRouter()
	SetupRoutes(router, BearerIdentity{}, accounts, engine, sessions)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

type apiResponse struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doJSON posts a body (with optional bearer token), checks the status code
// and returns the decoded envelope.
func doJSON(t *testing.T, method, url, token string, body interface{}, wantCode int) apiResponse {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.StatusCode != wantCode {
		t.Fatalf("%s %s: code=%d want=%d (message=%q)", method, url, resp.StatusCode, wantCode, out.Message)
	}
	return out
}

func createAccount(t *testing.T, server *httptest.Server, username, password, email string) string {
	t.Helper()
	resp := doJSON(t, "POST", server.URL+basePath+"/create", "",
		map[string]string{"username": username, "password": password, "email": email},
		http.StatusCreated)

	var data struct {
		AccountID      string `json:"accountId"`
		AccountBalance string `json:"accountBalance"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode create data: %v", err)
	}
	if data.AccountBalance != "0.00" {
		t.Fatalf("new account balance %q, want 0.00", data.AccountBalance)
	}
	return data.AccountID
}

func TestCreateAccountFlow(t *testing.T) {
	server := newTestServer(t)

	id := createAccount(t, server, "alice", "p", "a@x.com")
	if len(id) != 6 {
		t.Errorf("account id %q, want 6 characters", id)
	}

	// Same email again is a conflict.
	resp := doJSON(t, "POST", server.URL+basePath+"/create", "",
		map[string]string{"username": "alice2", "password": "p", "email": "a@x.com"},
		http.StatusBadRequest)
	if !resp.Error || resp.Message != "Account already exists" {
		t.Errorf("conflict response = %+v", resp)
	}

	// Missing fields.
	resp = doJSON(t, "POST", server.URL+basePath+"/create", "",
		map[string]string{"username": "bob"},
		http.StatusBadRequest)
	if resp.Message != "username, password and email are required" {
		t.Errorf("missing fields message %q", resp.Message)
	}
}

func TestFundFlow(t *testing.T) {
	server := newTestServer(t)
	alice := createAccount(t, server, "alice", "p", "a@x.com")

	resp := doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]string{"amount": "1000"}, http.StatusCreated)

	var data struct {
		FundingID      string `json:"fundingId"`
		Amount         string `json:"amount"`
		ToAccount      string `json:"toAccount"`
		AccountBalance string `json:"accountBalance"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode fund data: %v", err)
	}
	if data.AccountBalance != "1000.00" || data.ToAccount != alice {
		t.Errorf("fund data = %+v", data)
	}

	// Zero amount rejected before any lookup.
	resp = doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]string{"amount": "0"}, http.StatusBadRequest)
	if resp.Message != "amount must be a number greater than 0" {
		t.Errorf("zero amount message %q", resp.Message)
	}

	// Numeric JSON amounts work too.
	doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]float64{"amount": 500}, http.StatusCreated)
}

func TestFundRequiresIdentity(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "alice", "p", "a@x.com")

	req, _ := http.NewRequest("POST", server.URL+basePath+"/fund", bytes.NewBufferString(`{"amount":"10"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("code=%d want=401", resp.StatusCode)
	}
	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Message != "Unauthorized, use valid accountId as token" {
		t.Errorf("message %q", out.Message)
	}

	// A token of the wrong length is rejected the same way.
	doJSON(t, "POST", server.URL+basePath+"/fund", "short",
		map[string]string{"amount": "10"}, http.StatusUnauthorized)
}

func TestWithdrawFlow(t *testing.T) {
	server := newTestServer(t)
	alice := createAccount(t, server, "alice", "p", "a@x.com")

	doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]string{"amount": "1000"}, http.StatusCreated)

	// More than the balance.
	resp := doJSON(t, "POST", server.URL+basePath+"/withdraw", alice,
		map[string]string{"amount": "10000"}, http.StatusBadRequest)
	if resp.Message != "Insufficient funds" {
		t.Errorf("message %q, want Insufficient funds", resp.Message)
	}

	resp = doJSON(t, "POST", server.URL+basePath+"/withdraw", alice,
		map[string]string{"amount": "400"}, http.StatusCreated)
	var data struct {
		AccountBalance string `json:"accountBalance"`
		FromAccount    string `json:"fromAccount"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode withdraw data: %v", err)
	}
	if data.AccountBalance != "600.00" || data.FromAccount != alice {
		t.Errorf("withdraw data = %+v", data)
	}
}

func TestTransferFlow(t *testing.T) {
	server := newTestServer(t)
	alice := createAccount(t, server, "alice", "p", "a@x.com")
	bob := createAccount(t, server, "bob", "p", "b@x.com")

	doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]string{"amount": "900"}, http.StatusCreated)

	resp := doJSON(t, "POST", server.URL+basePath+"/transfer", alice,
		map[string]string{"toAccount": bob, "amount": "100"}, http.StatusCreated)
	var data struct {
		TransferID     string `json:"transferId"`
		AccountBalance string `json:"accountBalance"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode transfer data: %v", err)
	}
	if data.TransferID != alice+"-"+bob {
		t.Errorf("transfer id %q, want %q", data.TransferID, alice+"-"+bob)
	}
	if data.AccountBalance != "800.00" {
		t.Errorf("source balance %q, want 800.00", data.AccountBalance)
	}

	// Repeat transfer: same id again, 201 again.
	resp = doJSON(t, "POST", server.URL+basePath+"/transfer", alice,
		map[string]string{"toAccount": bob, "amount": "100"}, http.StatusCreated)
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode repeat transfer data: %v", err)
	}
	if data.TransferID != alice+"-"+bob {
		t.Errorf("repeat transfer id %q, want %q", data.TransferID, alice+"-"+bob)
	}

	// Unknown receiver is distinguished from unknown giver.
	resp = doJSON(t, "POST", server.URL+basePath+"/transfer", alice,
		map[string]string{"toAccount": "ghost1", "amount": "10"}, http.StatusNotFound)
	if resp.Message != "Account not found (Receiver)" {
		t.Errorf("message %q", resp.Message)
	}
}

func TestLoginFlow(t *testing.T) {
	server := newTestServer(t)
	alice := createAccount(t, server, "alice", "p", "a@x.com")
	bob := createAccount(t, server, "bob", "p", "b@x.com")

	// Wrong password.
	resp := doJSON(t, "POST", server.URL+basePath+"/login", "",
		map[string]string{"username": "alice", "password": "wrong"}, http.StatusUnauthorized)
	if resp.Message != "Invalid password" {
		t.Errorf("message %q, want Invalid password", resp.Message)
	}

	// Fresh account: history arrays present and empty.
	resp = doJSON(t, "POST", server.URL+basePath+"/login", "",
		map[string]string{"username": "alice", "password": "p"}, http.StatusOK)
	var view struct {
		User struct {
			AccountID      string `json:"accountId"`
			AccountBalance string `json:"accountBalance"`
		} `json:"user"`
		Credits   []json.RawMessage `json:"credits"`
		Debits    []json.RawMessage `json:"debits"`
		Transfers []json.RawMessage `json:"transfers"`
	}
	raw := resp.Data
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if view.User.AccountID != alice {
		t.Errorf("user account %q, want %q", view.User.AccountID, alice)
	}
	for _, key := range []string{"credits", "debits", "transfers"} {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			t.Fatalf("decode login fields: %v", err)
		}
		if string(fields[key]) != "[]" {
			t.Errorf("%s = %s, want []", key, fields[key])
		}
	}

	// After some activity the history shows up.
	doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]string{"amount": "500"}, http.StatusCreated)
	doJSON(t, "POST", server.URL+basePath+"/withdraw", alice,
		map[string]string{"amount": "50"}, http.StatusCreated)
	doJSON(t, "POST", server.URL+basePath+"/transfer", alice,
		map[string]string{"toAccount": bob, "amount": "100"}, http.StatusCreated)

	resp = doJSON(t, "POST", server.URL+basePath+"/login", "",
		map[string]string{"username": "alice", "password": "p"}, http.StatusOK)
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if len(view.Credits) != 1 || len(view.Debits) != 1 || len(view.Transfers) != 1 {
		t.Errorf("history lengths = %d/%d/%d, want 1/1/1",
			len(view.Credits), len(view.Debits), len(view.Transfers))
	}
	if view.User.AccountBalance != "350.00" {
		t.Errorf("balance %q, want 350.00", view.User.AccountBalance)
	}

	// Unknown user.
	resp = doJSON(t, "POST", server.URL+basePath+"/login", "",
		map[string]string{"username": "nobody", "password": "p"}, http.StatusNotFound)
	if resp.Message != "Account not found" {
		t.Errorf("message %q", resp.Message)
	}
}

// A store outage is a 500 with the message passed through, distinct from
// the 404 an absent account gets.
func TestStoreFailureMapsTo500(t *testing.T) {
	store := memory.NewStore()
	logs := memory.NewLog()
	accounts := service.NewAccountService(store)
	engine := service.NewTransactionService(store, logs, memory.NewPublisher())
	sessions := service.NewSessionService(accounts, logs)

	router := mux.NewRouter()
	SetupRoutes(router, BearerIdentity{}, accounts, engine, sessions)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	alice := createAccount(t, server, "alice", "p", "a@x.com")

	// Absent account: 404.
	resp := doJSON(t, "POST", server.URL+basePath+"/fund", "ghost1",
		map[string]string{"amount": "10"}, http.StatusNotFound)
	if resp.Message != "Account not found" {
		t.Errorf("not-found message %q", resp.Message)
	}

	// Store down: 500, not 404, message surfaced verbatim.
	store.FailNext(true)
	resp = doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]string{"amount": "10"}, http.StatusInternalServerError)
	if !resp.Error {
		t.Error("error flag not set on store failure")
	}
	if !strings.Contains(resp.Message, "storage unavailable") {
		t.Errorf("message %q, want it to carry the storage failure", resp.Message)
	}

	// Log failures after the mutation take the same 500 path.
	store.FailNext(false)
	logs.FailNext(true)
	resp = doJSON(t, "POST", server.URL+basePath+"/fund", alice,
		map[string]string{"amount": "10"}, http.StatusInternalServerError)
	if !strings.Contains(resp.Message, "storage unavailable") {
		t.Errorf("log failure message %q", resp.Message)
	}
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code=%d want=200", resp.StatusCode)
	}
}
