package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Access answers read-only queries over the association graph.
type Access struct {
	store Store
}

func NewAccess(store Store) (*Access, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	return &Access{store: store}, nil
}

// EffectiveGroups returns the user's direct memberships. Membership in a
// child group does not imply membership in its ancestors.
func (a *Access) EffectiveGroups(ctx context.Context, userID string) ([]Group, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return a.store.UserGroups(ctx, userID)
}

// EffectivePermissions is the union of permissions reachable through the
// user's roles.
func (a *Access) EffectivePermissions(ctx context.Context, userID string) ([]Permission, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return a.store.UserPermissions(ctx, userID)
}

// GroupAncestry returns the chain from immediate parent to root.
func (a *Access) GroupAncestry(ctx context.Context, groupID string) ([]Group, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, fmt.Errorf("%w: group id is required", ErrInvalidInput)
	}
	return a.store.GroupAncestry(ctx, groupID)
}
