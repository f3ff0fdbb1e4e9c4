package middleware

import (
	"context"
	"net/http"
	"strconv"

	"courierconnect/internal/domain"
)

type identityKey struct{}

// Identity reads the already-authenticated actor from the trusted headers
// set by the edge proxy. Requests without them proceed anonymously;
// handlers that require an actor reject those themselves.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := r.Header.Get("X-User-ID")
		role := r.Header.Get("X-User-Role")
		if rawID == "" || role == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || userID <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, domain.Identity{
			UserID: userID,
			Role:   role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the actor attached by Identity, if any.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}
