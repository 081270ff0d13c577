// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type operatorKey struct{}

// ScopeAdmin allows changing the knowledge base, canned responses and
// conversation state.
const ScopeAdmin = "hr:admin"

// Operator is the HR staff member behind an API request.
type Operator struct {
	ID     string
	Scopes []string
}

// Can reports whether the operator holds scope.
func (o Operator) Can(scope string) bool {
	for _, s := range o.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeList decodes either a JSON array or an OAuth style space-separated
// string.
type ScopeList []string

func (s *ScopeList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(b, &joined); err != nil {
		return fmt.Errorf("scope must be a string or a list: %w", err)
	}
	*s = strings.Fields(joined)
	return nil
}

// Claims are the JWT claims of an operator token.
type Claims struct {
	jwt.RegisteredClaims
	Scopes ScopeList `json:"scope,omitempty"`
}

// IssueToken signs an HS256 operator token.
func IssueToken(secret, subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "hr-assistant",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scopes: scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Auth rejects requests without a valid bearer token and stores the operator
// in the request context.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(30*time.Second),
	)
	key := func(*jwt.Token) (interface{}, error) { return []byte(jwtSecret), nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				deny(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims := &Claims{}
			if _, err := parser.ParseWithClaims(raw, claims, key); err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				deny(w, http.StatusUnauthorized, msg)
				return
			}
			if claims.Subject == "" {
				deny(w, http.StatusUnauthorized, "token has no subject")
				return
			}

			op := Operator{ID: claims.Subject, Scopes: claims.Scopes}
			noteOperator(r.Context(), op.ID)
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

// WithOperator returns a context carrying op.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// GetOperator returns the authenticated operator, if any.
func GetOperator(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	return op, ok
}

// GetUserID returns the authenticated operator id or "".
func GetUserID(ctx context.Context) string {
	op, _ := GetOperator(ctx)
	return op.ID
}

// RequireScope rejects operators without scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, ok := GetOperator(r.Context())
			if !ok || !op.Can(scope) {
				deny(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
