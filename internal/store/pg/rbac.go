package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cloudsync.org/internal/directory"
	"cloudsync.org/internal/ids"
)

const roleColumns = `id, name, description, created_at, updated_at`

func scanNamed(row interface{ Scan(...any) error }, id, name, description *string, createdAt, updatedAt any) error {
	var desc sql.NullString
	if err := row.Scan(id, name, &desc, createdAt, updatedAt); err != nil {
		return err
	}
	if desc.Valid {
		*description = desc.String
	}
	return nil
}

func (s *Store) CreateRole(ctx context.Context, name, description string) (directory.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description)
		values ($1, $2, $3)
		returning `+roleColumns,
		ids.New(), name, nullIfEmpty(description))
	var role directory.Role
	if err := scanNamed(row, &role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.Role{}, conflictError(pgErr)
		}
		return directory.Role{}, err
	}
	return role, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (directory.Role, error) {
	return s.roleByQuery(ctx, `select `+roleColumns+` from roles where id = $1`, id)
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (directory.Role, error) {
	return s.roleByQuery(ctx, `select `+roleColumns+` from roles where name = $1`, name)
}

func (s *Store) roleByQuery(ctx context.Context, query string, arg any) (directory.Role, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var role directory.Role
	err := scanNamed(row, &role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Role{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]directory.Role, error) {
	rows, err := s.db.QueryContext(ctx, `select `+roleColumns+` from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []directory.Role
	for rows.Next() {
		var role directory.Role
		if err := scanNamed(rows, &role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd directory.RoleUpdate) (directory.Role, error) {
	if err := s.updateNamed(ctx, "roles", id, upd.Name, upd.Description); err != nil {
		return directory.Role{}, err
	}
	return s.GetRole(ctx, id)
}

// DeleteRole removes the role's permission grants and user assignments in
// the same transaction as the role row.
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from user_roles where role_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreatePermission(ctx context.Context, name, description string) (directory.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (id, name, description)
		values ($1, $2, $3)
		returning `+roleColumns,
		ids.New(), name, nullIfEmpty(description))
	var perm directory.Permission
	if err := scanNamed(row, &perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.Permission{}, conflictError(pgErr)
		}
		return directory.Permission{}, err
	}
	return perm, nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (directory.Permission, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from permissions where id = $1`, id)
	var perm directory.Permission
	err := scanNamed(row, &perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Permission{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Permission{}, err
	}
	return perm, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]directory.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `select `+roleColumns+` from permissions order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []directory.Permission
	for rows.Next() {
		var perm directory.Permission
		if err := scanNamed(rows, &perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) UpdatePermission(ctx context.Context, id string, upd directory.PermissionUpdate) (directory.Permission, error) {
	if err := s.updateNamed(ctx, "permissions", id, upd.Name, upd.Description); err != nil {
		return directory.Permission{}, err
	}
	return s.GetPermission(ctx, id)
}

// DeletePermission removes role grants referencing the permission first.
func (s *Store) DeletePermission(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where permission_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from permissions where id = $1`, id)
	if err != nil {
		return err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) updateNamed(ctx context.Context, table, id string, name, description *string) error {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *name)
		idx++
	}
	if description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, nullIfEmpty(*description))
		idx++
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update %s set %s where id = $%d`, table, strings.Join(sets, ", "), idx)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return conflictError(pgErr)
		}
		return err
	}
	return rowsAffectedOrNotFound(res)
}

// Association inserts map a duplicate composite key onto ErrAlreadyExists and
// a missing end onto ErrNotFound; removals of absent rows fail with
// ErrNotFound. Association rows are never updated.

func (s *Store) AddRolePermission(ctx context.Context, roleID, permissionID string) (directory.RolePermission, error) {
	var rp directory.RolePermission
	err := s.db.QueryRowContext(ctx, `
		insert into role_permissions (role_id, permission_id)
		values ($1, $2)
		returning role_id, permission_id, created_at
	`, roleID, permissionID).Scan(&rp.RoleID, &rp.PermissionID, &rp.CreatedAt)
	if err != nil {
		return directory.RolePermission{}, associationInsertError(err)
	}
	return rp, nil
}

func (s *Store) RemoveRolePermission(ctx context.Context, roleID, permissionID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from role_permissions where role_id = $1 and permission_id = $2`, roleID, permissionID)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func (s *Store) AddUserRole(ctx context.Context, userID, roleID string) (directory.UserRole, error) {
	var ur directory.UserRole
	err := s.db.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		returning user_id, role_id, created_at
	`, userID, roleID).Scan(&ur.UserID, &ur.RoleID, &ur.CreatedAt)
	if err != nil {
		return directory.UserRole{}, associationInsertError(err)
	}
	return ur, nil
}

func (s *Store) RemoveUserRole(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id = $1 and role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func (s *Store) AddGroupMember(ctx context.Context, userID, groupID string) (directory.GroupMembership, error) {
	var gm directory.GroupMembership
	err := s.db.QueryRowContext(ctx, `
		insert into group_memberships (user_id, group_id)
		values ($1, $2)
		returning user_id, group_id, created_at
	`, userID, groupID).Scan(&gm.UserID, &gm.GroupID, &gm.CreatedAt)
	if err != nil {
		return directory.GroupMembership{}, associationInsertError(err)
	}
	return gm, nil
}

func (s *Store) RemoveGroupMember(ctx context.Context, userID, groupID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from group_memberships where user_id = $1 and group_id = $2`, userID, groupID)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}

func associationInsertError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return directory.ErrAlreadyExists
		case pgErrForeignKeyViolation:
			return directory.ErrNotFound
		}
	}
	return err
}

func (s *Store) UserGroups(ctx context.Context, userID string) ([]directory.Group, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.queryGroups(ctx, `
		select g.id, g.name, g.description, g.parent_group_id, g.created_at, g.updated_at
		from group_memberships gm
		join groups g on g.id = gm.group_id
		where gm.user_id = $1
		order by g.name
	`, userID)
}

func (s *Store) UserRoles(ctx context.Context, userID string) ([]directory.Role, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.created_at, r.updated_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []directory.Role
	for rows.Next() {
		var role directory.Role
		if err := scanNamed(rows, &role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// UserPermissions unions permissions across every role the user holds.
func (s *Store) UserPermissions(ctx context.Context, userID string) ([]directory.Permission, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.id, p.name, p.description, p.created_at, p.updated_at
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
		order by p.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []directory.Permission
	for rows.Next() {
		var perm directory.Permission
		if err := scanNamed(rows, &perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *Store) requireUser(ctx context.Context, userID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `select 1 from users where id = $1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.ErrNotFound
	}
	return err
}

// HealthPing is a trivial round trip used only to confirm reachability.
func (s *Store) HealthPing(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `select 1`).Scan(&one); err != nil {
		return fmt.Errorf("%w: %v", directory.ErrStoreUnavailable, err)
	}
	return nil
}
