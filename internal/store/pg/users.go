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

const userColumns = `id, email, username, display_name, password_hash, is_active, created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }) (directory.User, error) {
	var (
		u         directory.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.PasswordHash,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return directory.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// CreateUser relies on the users_email_key and users_username_key constraints
// for atomic uniqueness: two concurrent creates with the same email cannot
// both succeed.
func (s *Store) CreateUser(ctx context.Context, nu directory.NewUser) (directory.User, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, email, username, display_name, password_hash)
		values ($1, $2, $3, $4, $5)
		returning `+userColumns,
		ids.New(), nu.Email, nu.Username, nu.DisplayName, nu.PasswordHash)
	user, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.User{}, conflictError(pgErr)
		}
		return directory.User{}, err
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (directory.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (directory.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]directory.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []directory.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd directory.UserUpdate) (directory.User, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.Username != nil {
		sets = append(sets, fmt.Sprintf("username = $%d", idx))
		args = append(args, *upd.Username)
		idx++
	}
	if upd.DisplayName != nil {
		sets = append(sets, fmt.Sprintf("display_name = $%d", idx))
		args = append(args, *upd.DisplayName)
		idx++
	}
	if upd.Password != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.Password)
		idx++
	}
	if upd.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.IsActive)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return directory.User{}, conflictError(pgErr)
			}
			return directory.User{}, err
		}
		if err := rowsAffectedOrNotFound(res); err != nil {
			return directory.User{}, err
		}
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user's role assignments and group memberships in
// the same transaction as the user row.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from group_memberships where user_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) TouchLastLogin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update users set last_login_at = now() where id = $1`, id)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}
