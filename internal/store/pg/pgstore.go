// Package pg implements the directory store on PostgreSQL. Uniqueness and
// referential invariants are enforced by database constraints inside single
// statements or transactions, never as application-level check-then-insert.
package pg

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cloudsync.org/internal/directory"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// GroupDeletePolicy is fixed at store construction, not per call.
type GroupDeletePolicy string

const (
	// PolicyStrict rejects deletion of a group that still has children.
	PolicyStrict GroupDeletePolicy = "strict"
	// PolicyCascade deletes the group's whole subtree and its memberships.
	PolicyCascade GroupDeletePolicy = "cascade"
)

var _ directory.Store = (*Store)(nil)

type Store struct {
	db     *sql.DB
	policy GroupDeletePolicy
}

// Option configures Store.
type Option func(*Store)

func WithGroupDeletePolicy(p GroupDeletePolicy) Option {
	return func(s *Store) {
		if p == PolicyStrict || p == PolicyCascade {
			s.policy = p
		}
	}
}

// Open prepares a connection pool for the given DSN. The pool dials lazily,
// so a down database does not fail Open; the liveness monitor reports it.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{db: db, policy: PolicyStrict}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewStore wraps an existing handle; used by tests and the migrate command.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, policy: PolicyStrict}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// uniqueConstraintFields maps constraint names onto the caller-visible field
// that collided.
var uniqueConstraintFields = map[string]string{
	"users_email_key":      "email",
	"users_username_key":   "username",
	"roles_name_key":       "name",
	"permissions_name_key": "name",
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func conflictError(pgErr *pgconn.PgError) error {
	if field, ok := uniqueConstraintFields[pgErr.ConstraintName]; ok {
		return &directory.ConflictError{Field: field}
	}
	return directory.ErrConflict
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func rowsAffectedOrNotFound(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}
