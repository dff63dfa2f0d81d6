// Command migrate applies the directory schema, seed data and bootstrap
// accounts. Seed SQL covers the fixed permission catalog and roles; the
// bootstrap command creates one user per role through the identity service
// so stored credentials use the real hasher.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cloudsync.org/internal/credential"
	"cloudsync.org/internal/directory"
	"cloudsync.org/internal/migrate"
	"cloudsync.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("DIRECTORY_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "migrations", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or DIRECTORY_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|bootstrap|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, *migrationsPath, *seedsPath)

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "bootstrap":
		err = bootstrap(ctx, db)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

type bootstrapUser struct {
	email       string
	username    string
	displayName string
	password    string
	role        string
}

var bootstrapUsers = []bootstrapUser{
	{"admin@cloudsync.com", "admin", "System Administrator", "admin123", "admin"},
	{"user@cloudsync.com", "user", "Regular User", "user123", "user"},
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	hasher, err := credential.NewHasher(credential.SchemeSHA256)
	if err != nil {
		return err
	}
	store := pg.NewStore(db)
	svc, err := directory.NewService(store, hasher)
	if err != nil {
		return err
	}

	for _, bu := range bootstrapUsers {
		user, err := svc.CreateUser(ctx, bu.email, bu.username, bu.displayName, bu.password)
		if errors.Is(err, directory.ErrConflict) {
			log.Printf("user %s already exists, skipping", bu.username)
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", bu.username, err)
		}
		role, err := store.GetRoleByName(ctx, bu.role)
		if err != nil {
			return fmt.Errorf("resolve role %s (run seed first): %w", bu.role, err)
		}
		if _, err := svc.AssignRole(ctx, user.ID, role.ID); err != nil && !errors.Is(err, directory.ErrAlreadyExists) {
			return fmt.Errorf("assign %s to %s: %w", bu.role, bu.username, err)
		}
		log.Printf("created %s with role %s", bu.username, bu.role)
	}
	return nil
}
