package auth

import (
	"net/http"
	"strings"

	"github.com/craftmarket/api/internal/platform/httpx"
	"github.com/craftmarket/api/internal/platform/requestctx"
)

// ActorHeader carries the verified subject id set by the gateway.
const ActorHeader = "X-Actor-ID"

// Middleware extracts the forwarded identity and stores it on the request
// context. Requests without the header continue anonymously; handlers that
// need an identity wrap themselves in RequireIdentity.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := strings.TrimSpace(r.Header.Get(ActorHeader))
			if actorID != "" {
				ctx := WithIdentity(r.Context(), &Identity{ActorID: actorID})
				ctx = requestctx.WithActorID(ctx, actorID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects anonymous requests with the canonical error envelope.
func RequireIdentity(next http.Handler) http.Handler {
	if next == nil {
		next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.Valid() {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "missing actor identity", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}
