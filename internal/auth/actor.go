package auth

import (
	"context"

	"github.com/Additional-Code/harvest/internal/entity"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   entity.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == entity.RoleAdmin }

// IsFarmer reports whether the actor holds the farmer role.
func (a Actor) IsFarmer() bool { return a.Role == entity.RoleFarmer }

// Is reports whether the actor is userID.
func (a Actor) Is(userID int64) bool { return a.UserID == userID }

// SelfOrAdmin reports whether the actor may act on userID's resources.
func (a Actor) SelfOrAdmin(userID int64) bool { return a.IsAdmin() || a.Is(userID) }

type actorKey struct{}

// WithActor stores actor on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor stored on ctx, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
