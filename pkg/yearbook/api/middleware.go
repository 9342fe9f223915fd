package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"

	"github.com/classfolio/yearbook/pkg/yearbook"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorFromContext returns the actor resolved for the request. Requests
// without a valid token resolve to the anonymous actor.
func ActorFromContext(ctx context.Context) yearbook.Actor {
	if actor, ok := ctx.Value(actorKey).(yearbook.Actor); ok {
		return actor
	}
	return yearbook.Anonymous()
}

// NewTokenAuth builds the JWT verifier used by the actor middleware.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// ActorMiddleware resolves the requesting actor from the verified JWT.
// Every failure mode (missing token, bad signature, expired, unknown
// role) degrades to the anonymous actor rather than rejecting the
// request: the delivery decision procedure is where access is decided.
func ActorMiddleware(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		verify := jwtauth.Verifier(ja)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := actorFromToken(r.Context())
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		}))
		return verify
	}
}

func actorFromToken(ctx context.Context) yearbook.Actor {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return yearbook.Anonymous()
	}

	sub, _ := claims["sub"].(string)
	actorID, err := uuid.Parse(sub)
	if err != nil {
		return yearbook.Anonymous()
	}

	roleClaim, _ := claims["role"].(string)
	switch role := yearbook.Role(roleClaim); role {
	case yearbook.RolePlatformAdmin, yearbook.RoleOwnerAdmin, yearbook.RolePurchasingViewer:
		return yearbook.Actor{ID: actorID, Role: role}
	default:
		return yearbook.Anonymous()
	}
}
