package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcoot/accountsvc/internal/api/apierr"
	"github.com/mcoot/accountsvc/internal/model"
)

type contextKey string

const accountContextKey contextKey = "account"

// Resolver maps a presented session token to its account
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.Account, error)
}

// Auth creates authentication middleware. Requests without a token that
// resolves are rejected before reaching the handler. Resolver failures other
// than an unknown token are logged and answered with a 500.
func Auth(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			account, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if apierr.Status(err) >= http.StatusInternalServerError {
					logger.ErrorContext(r.Context(), "session resolve failed",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				apierr.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractToken reads the session token from the Authorization header.
// Both "Bearer <token>" and a bare token are accepted.
func ExtractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return header
}

// GetAccount returns the authenticated account from the request context
func GetAccount(ctx context.Context) *model.Account {
	account, _ := ctx.Value(accountContextKey).(*model.Account)
	return account
}

// MustGetAccount returns the authenticated account or panics
func MustGetAccount(ctx context.Context) *model.Account {
	account := GetAccount(ctx)
	if account == nil {
		panic("no account in context - auth middleware not applied?")
	}
	return account
}
