package api

import (
	"context"
	"net/http"
	"strings"
)

// IdentityProvider resolves an opaque bearer credential into the account id
// the request is authorized to act as. Handlers never see the raw credential.
type IdentityProvider interface {
	Resolve(r *http.Request) (accountID string, ok bool)
}

// BearerIdentity is the stand-in scheme of the wallet API: the bearer token
// is the 6-character account id itself. A production deployment would swap
// this for a provider that verifies signed tokens.
type BearerIdentity struct{}

func (BearerIdentity) Resolve(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if len(token) != 6 {
		return "", false
	}
	return token, true
}

type contextKey string

const callerKey contextKey = "caller"

// RequireIdentity rejects requests the provider cannot resolve and stores
// the caller's account id on the request context.
func RequireIdentity(provider IdentityProvider, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := provider.Resolve(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "Unauthorized, use valid accountId as token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), callerKey, accountID)))
	}
}

// callerAccount returns the account id resolved by RequireIdentity.
func callerAccount(r *http.Request) string {
	accountID, _ := r.Context().Value(callerKey).(string)
	return accountID
}
