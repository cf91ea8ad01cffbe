package auth

import (
	"context"

	"cityreport/internal/audit"
)

type contextKey string

const (
	contextKeyActor contextKey = "auth.actor"
	contextKeyRole  contextKey = "auth.role"
)

// WithIdentity stores the authenticated identity in context.
func WithIdentity(ctx context.Context, actor string, role Role) context.Context {
	ctx = context.WithValue(ctx, contextKeyActor, actor)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	return ctx
}

// ActorFromContext extracts the acting user id, defaulting to the
// system sentinel when the request carried no identity.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return audit.SystemActor
	}
	if actor, ok := ctx.Value(contextKeyActor).(string); ok && actor != "" {
		return actor
	}
	return audit.SystemActor
}

// RoleFromContext extracts the role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}
