package directory

import (
	"context"
	"errors"
	"testing"
)

type stubAccessStore struct {
	Store
	userGroupsFn      func(context.Context, string) ([]Group, error)
	userPermissionsFn func(context.Context, string) ([]Permission, error)
	groupAncestryFn   func(context.Context, string) ([]Group, error)
}

func (s *stubAccessStore) UserGroups(ctx context.Context, id string) ([]Group, error) {
	return s.userGroupsFn(ctx, id)
}

func (s *stubAccessStore) UserPermissions(ctx context.Context, id string) ([]Permission, error) {
	return s.userPermissionsFn(ctx, id)
}

func (s *stubAccessStore) GroupAncestry(ctx context.Context, id string) ([]Group, error) {
	return s.groupAncestryFn(ctx, id)
}

func TestEffectivePermissions(t *testing.T) {
	store := &stubAccessStore{
		userPermissionsFn: func(_ context.Context, id string) ([]Permission, error) {
			if id != "u1" {
				return nil, ErrNotFound
			}
			return []Permission{
				{ID: "p1", Name: "groups:read"},
				{ID: "p2", Name: "users:read"},
			}, nil
		},
	}
	access, err := NewAccess(store)
	if err != nil {
		t.Fatalf("NewAccess: %v", err)
	}

	perms, err := access.EffectivePermissions(context.Background(), " u1 ")
	if err != nil {
		t.Fatalf("EffectivePermissions: %v", err)
	}
	if len(perms) != 2 || perms[0].Name != "groups:read" {
		t.Fatalf("unexpected permissions: %+v", perms)
	}

	if _, err := access.EffectivePermissions(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := access.EffectivePermissions(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEffectiveGroupsAreDirectOnly(t *testing.T) {
	store := &stubAccessStore{
		userGroupsFn: func(context.Context, string) ([]Group, error) {
			// The store returns direct memberships; no ancestor expansion
			// happens on the way out.
			return []Group{{ID: "g2", Name: "backend"}}, nil
		},
	}
	access, err := NewAccess(store)
	if err != nil {
		t.Fatalf("NewAccess: %v", err)
	}

	groups, err := access.EffectiveGroups(context.Background(), "u1")
	if err != nil {
		t.Fatalf("EffectiveGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != "g2" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestGroupAncestry(t *testing.T) {
	store := &stubAccessStore{
		groupAncestryFn: func(context.Context, string) ([]Group, error) {
			return []Group{{ID: "g1", Name: "engineering"}, {ID: "g0", Name: "org"}}, nil
		},
	}
	access, err := NewAccess(store)
	if err != nil {
		t.Fatalf("NewAccess: %v", err)
	}

	chain, err := access.GroupAncestry(context.Background(), "g2")
	if err != nil {
		t.Fatalf("GroupAncestry: %v", err)
	}
	if len(chain) != 2 || chain[0].ID != "g1" || chain[1].ID != "g0" {
		t.Fatalf("unexpected ancestry: %+v", chain)
	}

	if _, err := access.GroupAncestry(context.Background(), "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
