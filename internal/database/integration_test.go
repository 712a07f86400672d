package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "academy.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"users", "migrations"} {
		var name string
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		if err := db.QueryRowContext(ctx, query, table).Scan(&name); err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// A second run must be a no-op
	if err := db.RunMigrations(ctx, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Re-running migrations failed: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 recorded migration, got %d", count)
	}
}

// TestUniqueEmailPerTeacher checks the (email, teacher_id) index treats a
// missing teacher as its own scope.
func TestUniqueEmailPerTeacher(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	insert := "INSERT INTO users (name, email, teacher_id, password_hash, role) VALUES (?, ?, ?, ?, ?)"

	teacherID, err := db.ExecReturningID(ctx, insert, "Teacher", "dup@example.com", nil, "hash", "teacher")
	if err != nil {
		t.Fatalf("Failed to insert teacher: %v", err)
	}

	_, err = db.ExecContext(ctx, insert, "Again", "dup@example.com", nil, "hash", "teacher")
	if !db.Dialect.IsUniqueViolation(err) {
		t.Fatalf("Expected unique violation for duplicate unscoped email, got %v", err)
	}

	if _, err := db.ExecContext(ctx, insert, "Student", "dup@example.com", teacherID, "hash", "student"); err != nil {
		t.Fatalf("Same email under a teacher scope should be allowed: %v", err)
	}

	_, err = db.ExecContext(ctx, insert, "Student 2", "dup@example.com", teacherID, "hash", "student")
	if !db.Dialect.IsUniqueViolation(err) {
		t.Fatalf("Expected unique violation within a teacher scope, got %v", err)
	}
}

// TestDatabaseTransactions tests transaction support
func TestDatabaseTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	insert := "INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)"

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecReturningID(ctx, insert, "Committed", "commit@example.com", "hash", "student")
		return err
	})
	if err != nil {
		t.Fatalf("Committed transaction failed: %v", err)
	}

	errRollback := errors.New("rollback please")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, insert, "Rolled back", "rollback@example.com", "hash", "student"); err != nil {
			return err
		}
		return errRollback
	})
	if !errors.Is(err, errRollback) {
		t.Fatalf("Expected rollback error, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 user after commit and rollback, got %d", count)
	}
}

// TestConcurrentAccess tests concurrent database access
func TestConcurrentAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)",
		"concurrentuser", "concurrent@example.com", "hash", "student")
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var name string
			err := db.QueryRowContext(ctx, "SELECT name FROM users WHERE email = ?", "concurrent@example.com").Scan(&name)
			if err != nil {
				t.Errorf("Concurrent read failed: %v", err)
			}
			if name != "concurrentuser" {
				t.Errorf("Expected name 'concurrentuser', got '%s'", name)
			}
		}()
	}
	wg.Wait()
}
