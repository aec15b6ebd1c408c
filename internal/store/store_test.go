package store

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenCreatesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{
		"users", "profiles", "profile_switch_log", "consent_log",
		"assigned_tasks", "task_history", "profile_streaks",
		"redemption_history", "task_reset_state",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing: %v", table, err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO users (user_id, tokens, has_started) VALUES ('bella', 7, 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var tokens int
	if err := db.QueryRow(
		`SELECT tokens FROM users WHERE user_id = 'bella'`).Scan(&tokens); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if tokens != 7 {
		t.Fatalf("expected 7 tokens after reopen, got %d", tokens)
	}
}

func TestDeleteUserCascadesToProfiles(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(
		`INSERT INTO users (user_id, tokens, has_started) VALUES ('bella', 0, 0)`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO profiles (user_id, name, age_context, is_active)
		VALUES ('bella', 'Cloudy', 'cloudy', 1)`); err != nil {
		t.Fatalf("insert profile: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM users WHERE user_id = 'bella'`); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected profiles to cascade, %d remain", count)
	}
}

func TestProfileTierConstraint(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(
		`INSERT INTO users (user_id, tokens, has_started) VALUES ('bella', 0, 0)`); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO profiles (user_id, name, age_context, is_active)
		VALUES ('bella', 'Bad', 'teen', 0)`); err == nil {
		t.Fatal("expected CHECK violation for unknown age_context")
	}
}

func TestDay(t *testing.T) {
	ts := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)
	if got := Day(ts); got != "2025-03-14" {
		t.Fatalf("expected 2025-03-14, got %q", got)
	}
}
