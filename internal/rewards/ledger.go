// Package rewards is the completion ledger: the single writer of task
// history, token balances and streak counters. A task pays out exactly once;
// the history row is the idempotency guard.
package rewards

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tinyregg/internal/catalog"
	"tinyregg/internal/store"
)

const (
	baseTokenReward   = 1
	requiredTaskBonus = 1
)

type Status int

const (
	StatusPaid Status = iota
	StatusAlreadyDone
	StatusNotFound
)

// Result describes a completion attempt. Category and Required let the
// caller pick a tone-appropriate message; Tokens is the payout (zero unless
// StatusPaid).
type Result struct {
	Status   Status
	Tokens   int
	Category catalog.Category
	Required bool
}

// Streaks mirrors one profile_streaks row. Counters are monotonic
// increment-with-last-day-stamp; day-to-day continuity is a reporting
// concern derived from the last-day columns, never enforced on write.
type Streaks struct {
	ProfileID       int64
	Required        int
	Intimacy        int
	Kink            int
	Explicit        int
	Regressive      int
	LastRequiredDay string
	LastIntimacyDay string
	LastKinkDay     string
	LastExplicitDay string
}

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedger(db *sql.DB, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{db: db, now: now}
}

func (l *Ledger) today() string {
	return store.Day(l.now())
}

// Complete marks today's task done and pays out, all in one transaction.
// The history check happens inside the same transaction as the insert, so
// two concurrent completions of the same task cannot both pay.
func (l *Ledger) Complete(profileID int64, taskKey string) (*Result, error) {
	day := l.today()

	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	defer tx.Rollback()

	var category string
	var required bool
	err = tx.QueryRow(`
		SELECT category, is_required FROM assigned_tasks
		WHERE profile_id = ? AND date = ? AND task_key = ?`,
		profileID, day, taskKey).Scan(&category, &required)
	if errors.Is(err, sql.ErrNoRows) {
		return &Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	var completed bool
	err = tx.QueryRow(`
		SELECT completed FROM task_history
		WHERE profile_id = ? AND date = ? AND task_key = ?`,
		profileID, day, taskKey).Scan(&completed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if completed {
		return &Result{
			Status:   StatusAlreadyDone,
			Category: catalog.Category(category),
			Required: required,
		}, nil
	}

	payout := baseTokenReward
	if required {
		payout += requiredTaskBonus
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO task_history (profile_id, date, task_key, completed, tokens_awarded)
		VALUES (?, ?, ?, 1, ?)`,
		profileID, day, taskKey, payout); err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}

	var userID string
	if err := tx.QueryRow(
		`SELECT user_id FROM profiles WHERE profile_id = ?`, profileID).Scan(&userID); err != nil {
		return nil, fmt.Errorf("resolve owner: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE users SET tokens = tokens + ? WHERE user_id = ?`, payout, userID); err != nil {
		return nil, fmt.Errorf("credit tokens: %w", err)
	}

	if err := updateStreaks(tx, profileID, day, catalog.Category(category), required); err != nil {
		return nil, fmt.Errorf("update streaks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	return &Result{
		Status:   StatusPaid,
		Tokens:   payout,
		Category: catalog.Category(category),
		Required: required,
	}, nil
}

func updateStreaks(tx *sql.Tx, profileID int64, day string, category catalog.Category, required bool) error {
	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO profile_streaks (profile_id) VALUES (?)`, profileID); err != nil {
		return err
	}

	if required {
		if _, err := tx.Exec(`
			UPDATE profile_streaks
			SET required_streak = required_streak + 1, last_required_day = ?
			WHERE profile_id = ?`,
			day, profileID); err != nil {
			return err
		}
	}

	var column, lastColumn string
	switch category {
	case catalog.CategoryIntimacy:
		column, lastColumn = "intimacy_streak", "last_intimacy_day"
	case catalog.CategoryKink:
		column, lastColumn = "kink_streak", "last_kink_day"
	case catalog.CategoryExplicit:
		column, lastColumn = "explicit_streak", "last_explicit_day"
	default:
		return nil
	}

	_, err := tx.Exec(`
		UPDATE profile_streaks
		SET `+column+` = `+column+` + 1, `+lastColumn+` = ?
		WHERE profile_id = ?`,
		day, profileID)
	return err
}

// Balance reads the owner's token count. Zero for unknown users.
func (l *Ledger) Balance(userID string) (int, error) {
	var tokens int
	err := l.db.QueryRow(
		`SELECT tokens FROM users WHERE user_id = ?`, userID).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return tokens, nil
}

// CompletedToday returns today's completed task keys for a profile.
func (l *Ledger) CompletedToday(profileID int64) (map[string]bool, error) {
	rows, err := l.db.Query(`
		SELECT task_key FROM task_history
		WHERE profile_id = ? AND date = ? AND completed = 1`,
		profileID, l.today())
	if err != nil {
		return nil, fmt.Errorf("completed today: %w", err)
	}
	defer rows.Close()

	done := map[string]bool{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("completed today: %w", err)
		}
		done[key] = true
	}
	return done, rows.Err()
}

// StreaksFor returns the streak counters for a profile, zeroed if none.
func (l *Ledger) StreaksFor(profileID int64) (*Streaks, error) {
	s := &Streaks{ProfileID: profileID}
	err := l.db.QueryRow(`
		SELECT required_streak, intimacy_streak, kink_streak, explicit_streak, regressive_streak,
		       COALESCE(last_required_day, ''), COALESCE(last_intimacy_day, ''),
		       COALESCE(last_kink_day, ''), COALESCE(last_explicit_day, '')
		FROM profile_streaks WHERE profile_id = ?`,
		profileID).Scan(&s.Required, &s.Intimacy, &s.Kink, &s.Explicit, &s.Regressive,
		&s.LastRequiredDay, &s.LastIntimacyDay, &s.LastKinkDay, &s.LastExplicitDay)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("streaks: %w", err)
	}
	return s, nil
}
