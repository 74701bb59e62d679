package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nearhub/chatd/internal/domain"
	"github.com/nearhub/chatd/internal/utils"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// AuthMiddleware validates the bearer token on the REST surface. The
// realtime authenticate handshake is intentionally not covered by it.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, domain.ErrUnauthorizedError)
				return
			}

			tokenString, err := utils.ExtractToken(authHeader)
			if err != nil {
				handleError(w, err)
				return
			}

			claims, err := utils.ValidateAccessToken(tokenString, secret)
			if err != nil {
				handleError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}
