package scheduler

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"tinyregg/internal/catalog"
	"tinyregg/internal/presence"
	"tinyregg/internal/shop"
	"tinyregg/internal/store"
	"tinyregg/internal/tasks"
)

func testNow() time.Time {
	// past the default 06:00 reset time
	return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
}

func testRunner(t *testing.T) (*Runner, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}

	manager := presence.NewManager(db)
	engine := tasks.NewEngine(db, cat, nil, testNow)
	sh := shop.NewShop(db, cat, testNow)

	runner, err := NewRunner(db, manager, engine, sh, "bella", "0 6 * * *", time.Minute, time.UTC)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	runner.now = testNow
	return runner, db
}

func TestNewRunnerRejectsBadSchedule(t *testing.T) {
	if _, err := NewRunner(nil, nil, nil, nil, "bella", "not a schedule", time.Minute, time.UTC); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestCheckResetOnboardsAndGenerates(t *testing.T) {
	runner, db := testRunner(t)

	var fired bool
	var assignedCount int
	runner.OnReset(func(userID string, profileID int64, assigned []tasks.Assigned) {
		fired = true
		assignedCount = len(assigned)
	})

	runner.checkReset()

	if !fired {
		t.Fatal("reset hook did not fire")
	}
	if assignedCount == 0 {
		t.Fatal("reset generated no tasks")
	}

	// cloudy fallback profile created and activated for the fresh owner
	var tier string
	if err := db.QueryRow(`
		SELECT age_context FROM profiles WHERE user_id = 'bella' AND is_active = 1`).Scan(&tier); err != nil {
		t.Fatalf("read active profile: %v", err)
	}
	if tier != "cloudy" {
		t.Fatalf("expected cloudy fallback, got %q", tier)
	}

	last, err := runner.lastResetDay()
	if err != nil {
		t.Fatalf("last reset day: %v", err)
	}
	if last != store.Day(testNow()) {
		t.Fatalf("reset day not marked, got %q", last)
	}
}

func TestCheckResetOncePerDay(t *testing.T) {
	runner, _ := testRunner(t)

	resets := 0
	runner.OnReset(func(string, int64, []tasks.Assigned) { resets++ })

	runner.checkReset()
	runner.checkReset()
	runner.checkReset()

	if resets != 1 {
		t.Fatalf("expected 1 reset, got %d", resets)
	}
}

func TestCheckResetBeforeFireTime(t *testing.T) {
	runner, _ := testRunner(t)
	runner.now = func() time.Time {
		return time.Date(2025, 3, 14, 5, 0, 0, 0, time.UTC)
	}

	fired := false
	runner.OnReset(func(string, int64, []tasks.Assigned) { fired = true })

	runner.checkReset()
	if fired {
		t.Fatal("reset fired before the scheduled time")
	}
}

func TestMarkResetRoundTrip(t *testing.T) {
	runner, _ := testRunner(t)

	last, err := runner.lastResetDay()
	if err != nil {
		t.Fatalf("last reset day: %v", err)
	}
	if last != "" {
		t.Fatalf("expected empty initial state, got %q", last)
	}

	if err := runner.markReset("2025-03-14"); err != nil {
		t.Fatalf("mark reset: %v", err)
	}
	if err := runner.markReset("2025-03-15"); err != nil {
		t.Fatalf("mark reset again: %v", err)
	}

	last, err = runner.lastResetDay()
	if err != nil {
		t.Fatalf("last reset day: %v", err)
	}
	if last != "2025-03-15" {
		t.Fatalf("expected upserted day, got %q", last)
	}
}

func TestFlushDeliveries(t *testing.T) {
	runner, db := testRunner(t)

	m := presence.NewManager(db)
	p, err := m.Create("bella", "Test", "", presence.TierAdult)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if _, err := db.Exec(`UPDATE users SET tokens = 100 WHERE user_id = 'bella'`); err != nil {
		t.Fatalf("fund user: %v", err)
	}
	receipt, err := runner.shop.Redeem("bella", p.ID, "story")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	var delivered []string
	runner.OnDeliver(func(pending shop.Pending) error {
		delivered = append(delivered, pending.ID)
		return nil
	})

	runner.flushDeliveries()

	if len(delivered) != 1 || delivered[0] != receipt.ID {
		t.Fatalf("unexpected deliveries: %v", delivered)
	}

	// the queue drains after a successful handoff
	runner.flushDeliveries()
	if len(delivered) != 1 {
		t.Fatalf("redemption delivered twice: %v", delivered)
	}
}
