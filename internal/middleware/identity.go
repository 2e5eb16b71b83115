package middleware

import (
	"context"
	"net/http"
	"strconv"
)

// Identity is the opaque caller identity attached to each request by the
// auth gateway upstream of this service. We only consume it; session
// issuance and verification live elsewhere.
type Identity struct {
	UserID int
	Admin  bool
}

const IdentityKey key = 1

// RequestIdentity extracts X-User-ID and X-User-Role headers into the
// request context. Requests without a user id are rejected; everything
// behind this middleware requires a caller.
func RequestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		userID, err := strconv.Atoi(raw)
		if raw == "" || err != nil || userID <= 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHENTICATED","message":"missing or invalid X-User-ID"}}`))
			return
		}

		ident := Identity{
			UserID: userID,
			Admin:  r.Header.Get("X-User-Role") == "admin",
		}

		ctx := context.WithValue(r.Context(), IdentityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity returns the caller identity, or the zero Identity when the
// request never passed through RequestIdentity.
func GetIdentity(ctx context.Context) Identity {
	ident, _ := ctx.Value(IdentityKey).(Identity)
	return ident
}
