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

const groupColumns = `id, name, description, parent_group_id, created_at, updated_at`

// subtreeCTE selects a group and all of its descendants.
const subtreeCTE = `
	with recursive subtree as (
		select id from groups where id = $1
		union all
		select g.id from groups g join subtree s on g.parent_group_id = s.id
	)`

func scanGroup(row interface{ Scan(...any) error }) (directory.Group, error) {
	var (
		g      directory.Group
		desc   sql.NullString
		parent sql.NullString
	)
	if err := row.Scan(&g.ID, &g.Name, &desc, &parent, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return directory.Group{}, err
	}
	if desc.Valid {
		g.Description = desc.String
	}
	if parent.Valid {
		p := parent.String
		g.ParentGroupID = &p
	}
	return g, nil
}

func (s *Store) CreateGroup(ctx context.Context, name, description string, parentGroupID *string) (directory.Group, error) {
	var parent sql.NullString
	if parentGroupID != nil {
		parent = sql.NullString{String: *parentGroupID, Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		insert into groups (id, name, description, parent_group_id)
		values ($1, $2, $3, $4)
		returning `+groupColumns,
		ids.New(), name, nullIfEmpty(description), parent)
	group, err := scanGroup(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return directory.Group{}, fmt.Errorf("%w: parent group", directory.ErrNotFound)
		}
		return directory.Group{}, err
	}
	return group, nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (directory.Group, error) {
	row := s.db.QueryRowContext(ctx, `select `+groupColumns+` from groups where id = $1`, id)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Group{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Group{}, err
	}
	return group, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]directory.Group, error) {
	return s.queryGroups(ctx, `select `+groupColumns+` from groups order by name`)
}

func (s *Store) ListChildGroups(ctx context.Context, id string) ([]directory.Group, error) {
	return s.queryGroups(ctx, `select `+groupColumns+` from groups where parent_group_id = $1 order by name`, id)
}

func (s *Store) queryGroups(ctx context.Context, query string, args ...any) ([]directory.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []directory.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) ListGroupMembers(ctx context.Context, id string) ([]directory.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.email, u.username, u.display_name
		from group_memberships gm
		join users u on u.id = gm.user_id
		where gm.group_id = $1
		order by u.username
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []directory.UserSummary
	for rows.Next() {
		var m directory.UserSummary
		if err := rows.Scan(&m.ID, &m.Email, &m.Username, &m.DisplayName); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

// UpdateGroup walks the ancestor chain before re-parenting: if the group's
// own id appears among the proposed parent's ancestors the link would close
// a cycle and the graph is left unchanged.
func (s *Store) UpdateGroup(ctx context.Context, id string, upd directory.GroupUpdate) (directory.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.Group{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if upd.ParentGroupID != nil {
		chain, err := ancestorChain(ctx, tx, *upd.ParentGroupID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return directory.Group{}, fmt.Errorf("%w: parent group", directory.ErrNotFound)
			}
			return directory.Group{}, err
		}
		for _, ancestor := range chain {
			if ancestor == id {
				return directory.Group{}, directory.ErrCycleDetected
			}
		}
	}

	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", idx))
		args = append(args, nullIfEmpty(*upd.Description))
		idx++
	}
	if upd.ParentGroupID != nil {
		sets = append(sets, fmt.Sprintf("parent_group_id = $%d", idx))
		args = append(args, *upd.ParentGroupID)
		idx++
	}
	if upd.DetachParent {
		sets = append(sets, "parent_group_id = NULL")
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update groups set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return directory.Group{}, fmt.Errorf("%w: parent group", directory.ErrNotFound)
			}
			return directory.Group{}, err
		}
		if err := rowsAffectedOrNotFound(res); err != nil {
			return directory.Group{}, err
		}
	}

	row := tx.QueryRowContext(ctx, `select `+groupColumns+` from groups where id = $1`, id)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Group{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Group{}, err
	}
	if err := tx.Commit(); err != nil {
		return directory.Group{}, err
	}
	return group, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if s.policy == PolicyCascade {
		if _, err := tx.ExecContext(ctx,
			subtreeCTE+` delete from group_memberships where group_id in (select id from subtree)`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			subtreeCTE+` delete from groups where id in (select id from subtree)`, id)
		if err != nil {
			return err
		}
		if err := rowsAffectedOrNotFound(res); err != nil {
			return err
		}
		return tx.Commit()
	}

	var hasChildren bool
	err = tx.QueryRowContext(ctx,
		`select exists(select 1 from groups where parent_group_id = $1)`, id).Scan(&hasChildren)
	if err != nil {
		return err
	}
	if hasChildren {
		return directory.ErrHasChildren
	}

	if _, err := tx.ExecContext(ctx, `delete from group_memberships where group_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from groups where id = $1`, id)
	if err != nil {
		// A child created after the existence check still references the
		// group, so the delete trips the self FK.
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return directory.ErrHasChildren
		}
		return err
	}
	if err := rowsAffectedOrNotFound(res); err != nil {
		return err
	}
	return tx.Commit()
}

// GroupAncestry returns the chain from immediate parent to root. The cycle
// check is defensive: writes keep the forest acyclic, so hitting a repeated
// id here means the stored graph is corrupt.
func (s *Store) GroupAncestry(ctx context.Context, id string) ([]directory.Group, error) {
	group, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	var ancestry []directory.Group
	seen := map[string]bool{id: true}
	current := group.ParentGroupID
	for current != nil {
		if seen[*current] {
			return nil, directory.ErrCycleDetected
		}
		seen[*current] = true
		ancestor, err := s.GetGroup(ctx, *current)
		if err != nil {
			return nil, err
		}
		ancestry = append(ancestry, ancestor)
		current = ancestor.ParentGroupID
	}
	return ancestry, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ancestorChain walks parent references starting at fromID (inclusive).
func ancestorChain(ctx context.Context, q rowQuerier, fromID string) ([]string, error) {
	var chain []string
	seen := map[string]bool{}
	current := fromID
	for {
		if seen[current] {
			return nil, directory.ErrCycleDetected
		}
		seen[current] = true
		chain = append(chain, current)

		var parent sql.NullString
		err := q.QueryRowContext(ctx, `select parent_group_id from groups where id = $1`, current).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			if current == fromID {
				return nil, directory.ErrNotFound
			}
			return nil, fmt.Errorf("%w: dangling parent reference %s", directory.ErrNotFound, current)
		}
		if err != nil {
			return nil, err
		}
		if !parent.Valid {
			return chain, nil
		}
		current = parent.String
	}
}
