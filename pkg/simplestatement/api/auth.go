package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"
)

const (
	ScopeCustomer = "customer"
	ScopeAdmin    = "admin"

	ClaimCustomerID = "customer_id"
	ClaimScope      = "scope"

	devTokenIssuer = "statement-service-dev"
)

var (
	ErrUnauthenticated   = errors.New("missing or invalid token")
	ErrMissingCustomerID = errors.New("missing claim customer_id")
)

// TokenAuth verifies and issues HS256 bearer tokens
type TokenAuth struct {
	ja *jwtauth.JWTAuth
}

// NewTokenAuth creates a TokenAuth for the given HMAC secret
func NewTokenAuth(secret []byte) (*TokenAuth, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenAuth{ja: jwtauth.New("HS256", secret, nil)}, nil
}

// Issue signs a token for customerID carrying the space-separated scope
func (a *TokenAuth) Issue(customerID, scope string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		"sub":           customerID,
		"iss":           devTokenIssuer,
		ClaimCustomerID: customerID,
		ClaimScope:      scope,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, ttl)

	_, token, err := a.ja.Encode(claims)
	return token, err
}

// Verifier extracts and verifies the bearer token. Authenticator must run after it.
func (a *TokenAuth) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(a.ja)
}

// Authenticator rejects requests without a valid token
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Principal is the authenticated caller
type Principal struct {
	CustomerID string
	Scopes     []string
}

// HasScope reports whether the principal was granted scope
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// PrincipalFromContext reads the verified token's claims
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return Principal{}, ErrUnauthenticated
	}

	p := Principal{}
	if v, ok := claims[ClaimCustomerID].(string); ok {
		p.CustomerID = v
	}
	if v, ok := claims[ClaimScope].(string); ok {
		p.Scopes = strings.Fields(v)
	}
	return p, nil
}

// CustomerIDFromContext returns the customer_id claim of the caller
func CustomerIDFromContext(ctx context.Context) (string, error) {
	p, err := PrincipalFromContext(ctx)
	if err != nil {
		return "", err
	}
	if p.CustomerID == "" {
		return "", ErrMissingCustomerID
	}
	return p.CustomerID, nil
}

// RequireScope admits callers holding at least one of scopes
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := PrincipalFromContext(r.Context())
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			for _, s := range scopes {
				if p.HasScope(s) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, http.StatusForbidden, "forbidden", "Insufficient scope")
		})
	}
}

// customerID resolves the caller's customer id or writes a 401
func customerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := CustomerIDFromContext(r.Context())
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
		return "", false
	}
	return id, true
}
