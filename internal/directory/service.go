package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloudsync.org/internal/credential"
)

// Service orchestrates directory writes. It is the only writer of user
// records and the only caller of the credential hasher.
type Service struct {
	store  Store
	hasher *credential.Hasher
}

func NewService(store Store, hasher *credential.Hasher) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	if hasher == nil {
		return nil, errors.New("credential hasher is required")
	}
	return &Service{store: store, hasher: hasher}, nil
}

// CreateUser hashes the secret and persists the user. Uniqueness violations
// surface as ConflictError naming the colliding field; no silent retries.
func (s *Service) CreateUser(ctx context.Context, email, username, displayName, password string) (UserProjection, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return UserProjection{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return UserProjection{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	displayName = strings.TrimSpace(displayName)
	if password == "" {
		return UserProjection{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return UserProjection{}, err
	}
	user, err := s.store.CreateUser(ctx, NewUser{
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
	})
	if err != nil {
		return UserProjection{}, err
	}
	return projectUser(user), nil
}

// GetUser returns the projection with resolved group and role summaries.
func (s *Service) GetUser(ctx context.Context, id string) (UserProjection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return UserProjection{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return UserProjection{}, err
	}
	groups, err := s.store.UserGroups(ctx, id)
	if err != nil {
		return UserProjection{}, err
	}
	roles, err := s.store.UserRoles(ctx, id)
	if err != nil {
		return UserProjection{}, err
	}
	proj := projectUser(user)
	proj.Groups = groups
	proj.Roles = roles
	return proj, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]UserProjection, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	projections := make([]UserProjection, 0, len(users))
	for _, u := range users {
		projections = append(projections, projectUser(u))
	}
	return projections, nil
}

// UpdateUser applies a partial update. A supplied plaintext password is
// hashed before it reaches the store; every other field passes through.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (UserProjection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return UserProjection{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return UserProjection{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username == "" {
			return UserProjection{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
		}
		upd.Username = &username
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return UserProjection{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := s.hasher.Hash([]byte(*upd.Password))
		if err != nil {
			return UserProjection{}, err
		}
		upd.Password = &hash
	}
	user, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return UserProjection{}, err
	}
	return projectUser(user), nil
}

// DeleteUser removes the user and, within the same store transaction, the
// user's role assignments and group memberships. Returns the deleted id.
func (s *Service) DeleteUser(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// VerifyUser checks a plaintext secret against the stored credential and
// stamps last_login_at on success. No session or token is issued.
func (s *Service) VerifyUser(ctx context.Context, email, password string) (UserProjection, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return UserProjection{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return UserProjection{}, err
	}
	ok, err := credential.Verify([]byte(password), user.PasswordHash)
	if err != nil {
		return UserProjection{}, err
	}
	if !ok {
		return UserProjection{}, fmt.Errorf("%w: credential mismatch", ErrInvalidInput)
	}
	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		return UserProjection{}, err
	}
	return projectUser(user), nil
}

// CreateGroup validates the optional parent reference through the store,
// which rejects unknown parents and cycles.
func (s *Service) CreateGroup(ctx context.Context, name, description string, parentGroupID *string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	if parentGroupID != nil {
		parent := strings.TrimSpace(*parentGroupID)
		if parent == "" {
			return Group{}, fmt.Errorf("%w: parent group id must not be empty", ErrInvalidInput)
		}
		parentGroupID = &parent
	}
	return s.store.CreateGroup(ctx, name, strings.TrimSpace(description), parentGroupID)
}

// GetGroup resolves the group with members, direct children and ancestry.
func (s *Service) GetGroup(ctx context.Context, id string) (GroupDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return GroupDetail{}, fmt.Errorf("%w: group id is required", ErrInvalidInput)
	}
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return GroupDetail{}, err
	}
	members, err := s.store.ListGroupMembers(ctx, id)
	if err != nil {
		return GroupDetail{}, err
	}
	children, err := s.store.ListChildGroups(ctx, id)
	if err != nil {
		return GroupDetail{}, err
	}
	ancestry, err := s.store.GroupAncestry(ctx, id)
	if err != nil {
		return GroupDetail{}, err
	}
	return GroupDetail{Group: group, Members: members, Children: children, Ancestry: ancestry}, nil
}

func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return s.store.ListGroups(ctx)
}

func (s *Service) UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (Group, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Group{}, fmt.Errorf("%w: group id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Group{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.ParentGroupID != nil && upd.DetachParent {
		return Group{}, fmt.Errorf("%w: cannot both re-parent and detach", ErrInvalidInput)
	}
	if upd.ParentGroupID != nil {
		parent := strings.TrimSpace(*upd.ParentGroupID)
		if parent == "" {
			return Group{}, fmt.Errorf("%w: parent group id must not be empty", ErrInvalidInput)
		}
		if parent == id {
			return Group{}, fmt.Errorf("%w: group cannot be its own parent", ErrCycleDetected)
		}
		upd.ParentGroupID = &parent
	}
	return s.store.UpdateGroup(ctx, id, upd)
}

func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: group id is required", ErrInvalidInput)
	}
	return s.store.DeleteGroup(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, id)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return s.store.UpdateRole(ctx, id, upd)
}

func (s *Service) DeleteRole(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, id)
}

func (s *Service) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	return s.store.CreatePermission(ctx, name, strings.TrimSpace(description))
}

func (s *Service) GetPermission(ctx context.Context, id string) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	return s.store.GetPermission(ctx, id)
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *Service) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return s.store.UpdatePermission(ctx, id, upd)
}

func (s *Service) DeletePermission(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	return s.store.DeletePermission(ctx, id)
}

func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID string) (RolePermission, error) {
	roleID, permissionID = strings.TrimSpace(roleID), strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return RolePermission{}, fmt.Errorf("%w: role id and permission id are required", ErrInvalidInput)
	}
	return s.store.AddRolePermission(ctx, roleID, permissionID)
}

func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	roleID, permissionID = strings.TrimSpace(roleID), strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return fmt.Errorf("%w: role id and permission id are required", ErrInvalidInput)
	}
	return s.store.RemoveRolePermission(ctx, roleID, permissionID)
}

func (s *Service) AssignRole(ctx context.Context, userID, roleID string) (UserRole, error) {
	userID, roleID = strings.TrimSpace(userID), strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return UserRole{}, fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	return s.store.AddUserRole(ctx, userID, roleID)
}

func (s *Service) UnassignRole(ctx context.Context, userID, roleID string) error {
	userID, roleID = strings.TrimSpace(userID), strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	return s.store.RemoveUserRole(ctx, userID, roleID)
}

func (s *Service) AddGroupMember(ctx context.Context, userID, groupID string) (GroupMembership, error) {
	userID, groupID = strings.TrimSpace(userID), strings.TrimSpace(groupID)
	if userID == "" || groupID == "" {
		return GroupMembership{}, fmt.Errorf("%w: user id and group id are required", ErrInvalidInput)
	}
	return s.store.AddGroupMember(ctx, userID, groupID)
}

func (s *Service) RemoveGroupMember(ctx context.Context, userID, groupID string) error {
	userID, groupID = strings.TrimSpace(userID), strings.TrimSpace(groupID)
	if userID == "" || groupID == "" {
		return fmt.Errorf("%w: user id and group id are required", ErrInvalidInput)
	}
	return s.store.RemoveGroupMember(ctx, userID, groupID)
}

func projectUser(u User) UserProjection {
	return UserProjection{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}
