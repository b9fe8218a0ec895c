package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey  contextKey = "user_id"
	venueIDKey contextKey = "venue_id"
)

type venueClaims struct {
	VenueID string `json:"venue_id"`
	jwt.RegisteredClaims
}

// Middleware verifies the bearer token and stashes the caller's user and
// venue ids in the request context. Tokens are HMAC-signed by the main Grace
// OS backend with the shared secret.
func Middleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		panic("JWT_SECRET not set")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &venueClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
			ctx = context.WithValue(ctx, venueIDKey, claims.VenueID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireVenue rejects requests whose token venue claim does not match the
// venue in the URL. This is the tenant isolation boundary: a venue token can
// never read or write another venue's rows.
func RequireVenue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathVenue := chi.URLParam(r, "venueId")
		if pathVenue == "" || pathVenue != VenueID(r.Context()) {
			http.Error(w, "venue access denied", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserID extracts the caller's user id in handlers.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

// VenueID extracts the caller's venue id in handlers.
func VenueID(ctx context.Context) string {
	if vid, ok := ctx.Value(venueIDKey).(string); ok {
		return vid
	}
	return ""
}
