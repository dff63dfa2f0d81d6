package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"cloudsync.org/internal/directory"
)

var namedRowColumns = []string{"id", "name", "description", "created_at", "updated_at"}

func TestCreateRoleDuplicateName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into roles").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "roles_name_key"})

	_, err := store.CreateRole(context.Background(), "admin", "")
	var conflict *directory.ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "name" {
		t.Fatalf("expected conflict on name, got %v", err)
	}
}

func TestGetRoleByName(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select .+ from roles where name").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(namedRowColumns).
			AddRow("r1", "admin", "Full access", now, now))

	role, err := store.GetRoleByName(context.Background(), "admin")
	if err != nil {
		t.Fatalf("GetRoleByName: %v", err)
	}
	if role.ID != "r1" || role.Description != "Full access" {
		t.Fatalf("unexpected role: %+v", role)
	}
}

func TestDeleteRoleCleansAssociations(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("delete from role_permissions where role_id").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("delete from user_roles where role_id").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("delete from roles where id").
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteRole(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddUserRoleDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into user_roles").
		WithArgs("u1", "r1").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "user_roles_pkey"})

	_, err := store.AddUserRole(context.Background(), "u1", "r1")
	if !errors.Is(err, directory.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestAddUserRoleMissingEnd(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into user_roles").
		WithArgs("u1", "missing").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "user_roles_role_id_fkey"})

	_, err := store.AddUserRole(context.Background(), "u1", "missing")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveUserRoleAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from user_roles where user_id").
		WithArgs("u1", "r1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RemoveUserRole(context.Background(), "u1", "r1"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRolePermission(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("insert into role_permissions").
		WithArgs("r1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "permission_id", "created_at"}).
			AddRow("r1", "p1", now))

	rp, err := store.AddRolePermission(context.Background(), "r1", "p1")
	if err != nil {
		t.Fatalf("AddRolePermission: %v", err)
	}
	if rp.RoleID != "r1" || rp.PermissionID != "p1" {
		t.Fatalf("unexpected grant: %+v", rp)
	}
}

func TestUserPermissionsUnion(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select 1 from users where id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery("select distinct p.id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(namedRowColumns).
			AddRow("p1", "groups:read", nil, now, now).
			AddRow("p2", "users:read", nil, now, now))

	perms, err := store.UserPermissions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserPermissions: %v", err)
	}
	if len(perms) != 2 || perms[0].Name != "groups:read" || perms[1].Name != "users:read" {
		t.Fatalf("unexpected permissions: %+v", perms)
	}
}

func TestUserPermissionsUnknownUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select 1 from users where id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.UserPermissions(context.Background(), "missing"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHealthPing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select 1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	if err := store.HealthPing(context.Background()); err != nil {
		t.Fatalf("HealthPing: %v", err)
	}

	mock.ExpectQuery("select 1").
		WillReturnError(errors.New("connection refused"))
	err := store.HealthPing(context.Background())
	if !errors.Is(err, directory.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
