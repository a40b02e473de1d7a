package auth

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RoleRegular   Role = "regular"
	RoleModerator Role = "moderator"
)

func ParseRole(s string) Role {
	if Role(s) == RoleModerator {
		return RoleModerator
	}
	return RoleRegular
}

// Requester is the identity an operation is performed on behalf of. It is
// passed explicitly into every chat and moderation call.
type Requester struct {
	ID          uuid.UUID
	DisplayName string
	Role        Role
}

func (r Requester) IsModerator() bool {
	return r.Role == RoleModerator
}

func (r Requester) Valid() bool {
	return r.ID != uuid.Nil
}

type contextKey struct{}

func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

func FromContext(ctx context.Context) (Requester, bool) {
	r, ok := ctx.Value(contextKey{}).(Requester)
	return r, ok
}
