package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/storepos-backend/pkg/auth"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor injects the authenticated staff member into the context.
func WithActor(ctx context.Context, actor pkgAuth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the authenticated staff member, if any.
func ActorFromContext(ctx context.Context) (pkgAuth.Actor, bool) {
	if ctx == nil {
		return pkgAuth.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(pkgAuth.Actor)
	return actor, ok && actor.UserID > 0
}

func UserIDFromContext(ctx context.Context) int64 {
	actor, _ := ActorFromContext(ctx)
	return actor.UserID
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	actor, _ := ActorFromContext(ctx)
	return actor.Role
}
