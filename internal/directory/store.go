package directory

import "context"

// Store is the persistence contract for the directory. Implementations own
// all stored entities exclusively and must enforce uniqueness and referential
// invariants atomically at the storage layer; callers receive copies.
type Store interface {
	CreateUser(ctx context.Context, u NewUser) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, name, description string, parentGroupID *string) (Group, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	ListChildGroups(ctx context.Context, id string) ([]Group, error)
	ListGroupMembers(ctx context.Context, id string) ([]UserSummary, error)
	UpdateGroup(ctx context.Context, id string, upd GroupUpdate) (Group, error)
	DeleteGroup(ctx context.Context, id string) error
	GroupAncestry(ctx context.Context, id string) ([]Group, error)

	CreateRole(ctx context.Context, name, description string) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error

	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	GetPermission(ctx context.Context, id string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error)
	DeletePermission(ctx context.Context, id string) error

	AddRolePermission(ctx context.Context, roleID, permissionID string) (RolePermission, error)
	RemoveRolePermission(ctx context.Context, roleID, permissionID string) error
	AddUserRole(ctx context.Context, userID, roleID string) (UserRole, error)
	RemoveUserRole(ctx context.Context, userID, roleID string) error
	AddGroupMember(ctx context.Context, userID, groupID string) (GroupMembership, error)
	RemoveGroupMember(ctx context.Context, userID, groupID string) error

	UserGroups(ctx context.Context, userID string) ([]Group, error)
	UserRoles(ctx context.Context, userID string) ([]Role, error)
	UserPermissions(ctx context.Context, userID string) ([]Permission, error)

	// HealthPing issues a trivial round trip against the backing store.
	HealthPing(ctx context.Context) error
}
