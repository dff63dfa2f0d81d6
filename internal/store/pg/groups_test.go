package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"cloudsync.org/internal/directory"
)

var groupRowColumns = []string{"id", "name", "description", "parent_group_id", "created_at", "updated_at"}

func TestCreateGroupMissingParent(t *testing.T) {
	store, mock := newMockStore(t)
	parent := "missing"

	mock.ExpectQuery("insert into groups").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "groups_parent_group_id_fkey"})

	_, err := store.CreateGroup(context.Background(), "backend", "", &parent)
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateGroupReparent(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	parent := "g2"

	mock.ExpectBegin()
	// Ancestor walk from the proposed parent up to the root.
	mock.ExpectQuery("select parent_group_id from groups where id").
		WithArgs("g2").
		WillReturnRows(sqlmock.NewRows([]string{"parent_group_id"}).AddRow("g0"))
	mock.ExpectQuery("select parent_group_id from groups where id").
		WithArgs("g0").
		WillReturnRows(sqlmock.NewRows([]string{"parent_group_id"}).AddRow(nil))
	mock.ExpectExec("update groups set parent_group_id = .+, updated_at = now").
		WithArgs("g2", "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select .+ from groups where id").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).
			AddRow("g1", "backend", nil, "g2", now, now))
	mock.ExpectCommit()

	group, err := store.UpdateGroup(context.Background(), "g1", directory.GroupUpdate{ParentGroupID: &parent})
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if group.ParentGroupID == nil || *group.ParentGroupID != "g2" {
		t.Fatalf("unexpected group: %+v", group)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateGroupCycleDetected(t *testing.T) {
	store, mock := newMockStore(t)
	parent := "g3"

	// g3's ancestry runs g3 -> g2 -> g1; attaching g1 under g3 would close
	// the loop.
	mock.ExpectBegin()
	mock.ExpectQuery("select parent_group_id from groups where id").
		WithArgs("g3").
		WillReturnRows(sqlmock.NewRows([]string{"parent_group_id"}).AddRow("g2"))
	mock.ExpectQuery("select parent_group_id from groups where id").
		WithArgs("g2").
		WillReturnRows(sqlmock.NewRows([]string{"parent_group_id"}).AddRow("g1"))
	mock.ExpectQuery("select parent_group_id from groups where id").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"parent_group_id"}).AddRow(nil))
	mock.ExpectRollback()

	_, err := store.UpdateGroup(context.Background(), "g1", directory.GroupUpdate{ParentGroupID: &parent})
	if !errors.Is(err, directory.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteGroupStrictRejectsChildren(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select exists").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	if err := store.DeleteGroup(context.Background(), "g1"); !errors.Is(err, directory.ErrHasChildren) {
		t.Fatalf("expected ErrHasChildren, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteGroupStrict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select exists").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("delete from group_memberships where group_id").
		WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("delete from groups where id").
		WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteGroup(context.Background(), "g1"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteGroupStrictChildAddedAfterCheck(t *testing.T) {
	store, mock := newMockStore(t)

	// A concurrent re-parent lands between the existence check and the
	// delete; the self FK rejects it and the caller still sees
	// ErrHasChildren.
	mock.ExpectBegin()
	mock.ExpectQuery("select exists").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("delete from group_memberships where group_id").
		WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from groups where id").
		WithArgs("g1").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "groups_parent_group_id_fkey"})
	mock.ExpectRollback()

	if err := store.DeleteGroup(context.Background(), "g1"); !errors.Is(err, directory.ErrHasChildren) {
		t.Fatalf("expected ErrHasChildren, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteGroupCascade(t *testing.T) {
	store, mock := newMockStore(t, WithGroupDeletePolicy(PolicyCascade))

	mock.ExpectBegin()
	mock.ExpectExec("delete from group_memberships where group_id in").
		WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("delete from groups where id in").
		WithArgs("g1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	if err := store.DeleteGroup(context.Background(), "g1"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGroupAncestry(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select .+ from groups where id").
		WithArgs("g3").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g3", "backend", nil, "g2", now, now))
	mock.ExpectQuery("select .+ from groups where id").
		WithArgs("g2").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g2", "engineering", nil, "g1", now, now))
	mock.ExpectQuery("select .+ from groups where id").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g1", "org", nil, nil, now, now))

	chain, err := store.GroupAncestry(context.Background(), "g3")
	if err != nil {
		t.Fatalf("GroupAncestry: %v", err)
	}
	if len(chain) != 2 || chain[0].ID != "g2" || chain[1].ID != "g1" {
		t.Fatalf("unexpected ancestry: %+v", chain)
	}
}

func TestGroupAncestryCorruptGraph(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select .+ from groups where id").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g1", "a", nil, "g2", now, now))
	mock.ExpectQuery("select .+ from groups where id").
		WithArgs("g2").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g2", "b", nil, "g1", now, now))

	if _, err := store.GroupAncestry(context.Background(), "g1"); !errors.Is(err, directory.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}
