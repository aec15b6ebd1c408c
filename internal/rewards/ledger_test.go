package rewards

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"tinyregg/internal/catalog"
	"tinyregg/internal/presence"
	"tinyregg/internal/store"
)

func testNow() time.Time {
	return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
}

func testLedger(t *testing.T) (*Ledger, *sql.DB, int64) {
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

	m := presence.NewManager(db)
	p, err := m.Create("bella", "Test", "", presence.TierAdult)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	return NewLedger(db, testNow), db, p.ID
}

func assign(t *testing.T, db *sql.DB, profileID int64, key string, category catalog.Category, required bool) {
	t.Helper()
	if _, err := db.Exec(`
		INSERT INTO assigned_tasks (profile_id, date, task_key, category, is_required, hidden_until_complete)
		VALUES (?, ?, ?, ?, ?, 1)`,
		profileID, store.Day(testNow()), key, string(category), required); err != nil {
		t.Fatalf("assign %s: %v", key, err)
	}
}

func TestCompleteRequiredPaysBonus(t *testing.T) {
	ledger, db, profileID := testLedger(t)
	assign(t, db, profileID, "eat_meal", catalog.CategoryRequired, true)

	result, err := ledger.Complete(profileID, "eat_meal")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Status != StatusPaid {
		t.Fatalf("expected StatusPaid, got %v", result.Status)
	}
	if result.Tokens != 2 {
		t.Fatalf("expected payout of 2 for required task, got %d", result.Tokens)
	}
	if !result.Required || result.Category != catalog.CategoryRequired {
		t.Fatalf("unexpected result metadata: %+v", result)
	}

	balance, err := ledger.Balance("bella")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 2 {
		t.Fatalf("expected balance 2, got %d", balance)
	}
}

func TestCompleteRegularPaysBase(t *testing.T) {
	ledger, db, profileID := testLedger(t)
	assign(t, db, profileID, "music_vibe", catalog.CategoryFun, false)

	result, err := ledger.Complete(profileID, "music_vibe")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Status != StatusPaid || result.Tokens != 1 {
		t.Fatalf("expected payout of 1, got %+v", result)
	}

	balance, _ := ledger.Balance("bella")
	if balance != 1 {
		t.Fatalf("expected balance 1, got %d", balance)
	}
}

func TestCompletePaysExactlyOnce(t *testing.T) {
	ledger, db, profileID := testLedger(t)
	assign(t, db, profileID, "eat_meal", catalog.CategoryRequired, true)

	if _, err := ledger.Complete(profileID, "eat_meal"); err != nil {
		t.Fatalf("first complete: %v", err)
	}

	result, err := ledger.Complete(profileID, "eat_meal")
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if result.Status != StatusAlreadyDone {
		t.Fatalf("expected StatusAlreadyDone, got %v", result.Status)
	}
	if result.Tokens != 0 {
		t.Fatalf("repeat completion paid %d tokens", result.Tokens)
	}

	balance, _ := ledger.Balance("bella")
	if balance != 2 {
		t.Fatalf("expected balance still 2, got %d", balance)
	}

	var history int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM task_history WHERE profile_id = ? AND task_key = 'eat_meal'`,
		profileID).Scan(&history); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if history != 1 {
		t.Fatalf("expected 1 history row, got %d", history)
	}
}

func TestCompleteUnknownTask(t *testing.T) {
	ledger, _, profileID := testLedger(t)

	result, err := ledger.Complete(profileID, "made_up")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Status != StatusNotFound {
		t.Fatalf("expected StatusNotFound, got %v", result.Status)
	}

	balance, _ := ledger.Balance("bella")
	if balance != 0 {
		t.Fatalf("unknown task paid out, balance %d", balance)
	}
}

func TestCompleteStampsStreaks(t *testing.T) {
	ledger, db, profileID := testLedger(t)
	day := store.Day(testNow())

	assign(t, db, profileID, "eat_meal", catalog.CategoryRequired, true)
	assign(t, db, profileID, "drink_water", catalog.CategoryRequired, true)
	assign(t, db, profileID, "soft_selfie", catalog.CategoryIntimacy, false)
	assign(t, db, profileID, "waiting_posture", catalog.CategoryKink, false)
	assign(t, db, profileID, "music_vibe", catalog.CategoryFun, false)

	for _, key := range []string{"eat_meal", "drink_water", "soft_selfie", "waiting_posture", "music_vibe"} {
		if _, err := ledger.Complete(profileID, key); err != nil {
			t.Fatalf("complete %s: %v", key, err)
		}
	}

	s, err := ledger.StreaksFor(profileID)
	if err != nil {
		t.Fatalf("streaks: %v", err)
	}
	if s.Required != 2 {
		t.Fatalf("expected required streak 2, got %d", s.Required)
	}
	if s.Intimacy != 1 || s.Kink != 1 || s.Explicit != 0 {
		t.Fatalf("unexpected category streaks: %+v", s)
	}
	if s.LastRequiredDay != day || s.LastIntimacyDay != day || s.LastKinkDay != day {
		t.Fatalf("last-day stamps not set: %+v", s)
	}
	if s.LastExplicitDay != "" {
		t.Fatalf("explicit last-day stamped without completion: %q", s.LastExplicitDay)
	}
}

func TestStreaksForUnknownProfile(t *testing.T) {
	ledger, _, _ := testLedger(t)

	s, err := ledger.StreaksFor(9999)
	if err != nil {
		t.Fatalf("streaks: %v", err)
	}
	if s.Required != 0 || s.Intimacy != 0 || s.LastRequiredDay != "" {
		t.Fatalf("expected zeroed streaks, got %+v", s)
	}
}

func TestCompletedToday(t *testing.T) {
	ledger, db, profileID := testLedger(t)
	assign(t, db, profileID, "eat_meal", catalog.CategoryRequired, true)
	assign(t, db, profileID, "music_vibe", catalog.CategoryFun, false)

	if _, err := ledger.Complete(profileID, "eat_meal"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	done, err := ledger.CompletedToday(profileID)
	if err != nil {
		t.Fatalf("completed today: %v", err)
	}
	if !done["eat_meal"] || done["music_vibe"] {
		t.Fatalf("unexpected completion set: %v", done)
	}
}

func TestBalanceUnknownUser(t *testing.T) {
	ledger, _, _ := testLedger(t)

	balance, err := ledger.Balance("stranger")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0 for unknown user, got %d", balance)
	}
}
