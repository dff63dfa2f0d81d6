package directory

import "time"

// User is a stored identity record. PasswordHash never leaves the store and
// service layers; callers receive UserProjection instead.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Group is an access grouping. ParentGroupID is a weak reference to another
// group; the parent graph forms a forest and is kept acyclic at write time.
type Group struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ParentGroupID *string   `json:"parent_group_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Association records are immutable once created: inserted or deleted, never
// updated.
type UserRole struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RolePermission struct {
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type GroupMembership struct {
	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProjection is the caller-visible view of a user. Groups and Roles are
// resolved on single-user reads and left nil on list reads.
type UserProjection struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	Groups      []Group    `json:"groups,omitempty"`
	Roles       []Role     `json:"roles,omitempty"`
}

// UserSummary is the trimmed member listing used in group detail views.
type UserSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// GroupDetail resolves a group's members, direct children and ancestry chain.
type GroupDetail struct {
	Group
	Members  []UserSummary `json:"members,omitempty"`
	Children []Group       `json:"children,omitempty"`
	Ancestry []Group       `json:"ancestry,omitempty"`
}

// NewUser carries the fields required to create a user. PasswordHash is the
// already-hashed credential; the service layer is the only producer.
type NewUser struct {
	Email        string
	Username     string
	DisplayName  string
	PasswordHash string
}

// UserUpdate is a partial update. At the service boundary Password is the
// plaintext secret; it is hashed before the update reaches the store.
type UserUpdate struct {
	Email       *string
	Username    *string
	DisplayName *string
	Password    *string
	IsActive    *bool
}

// GroupUpdate re-parents when ParentGroupID is set; DetachParent moves the
// group to the forest root. Setting both is invalid.
type GroupUpdate struct {
	Name          *string
	Description   *string
	ParentGroupID *string
	DetachParent  bool
}

type RoleUpdate struct {
	Name        *string
	Description *string
}

type PermissionUpdate struct {
	Name        *string
	Description *string
}
