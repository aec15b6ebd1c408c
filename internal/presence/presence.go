// Package presence owns the "exactly one active profile per user" invariant.
// All activation goes through SwitchActive; there is no other writer of the
// is_active flag.
package presence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tinyregg/internal/logger"
)

// Tier is the safety classification of a profile. Cloudy is the safe default.
type Tier string

const (
	TierAdult      Tier = "adult"
	TierRegressive Tier = "regressive"
	TierCloudy     Tier = "cloudy"
)

func (t Tier) Valid() bool {
	switch t {
	case TierAdult, TierRegressive, TierCloudy:
		return true
	}
	return false
}

// OptIn names a per-profile consent flag.
type OptIn string

const (
	OptInIntimacy OptIn = "intimacy"
	OptInKink     OptIn = "kink"
	OptInExplicit OptIn = "explicit"
)

func (o OptIn) column() (string, bool) {
	switch o {
	case OptInIntimacy:
		return "intimacy_opt_in", true
	case OptInKink:
		return "kink_opt_in", true
	case OptInExplicit:
		return "explicit_opt_in", true
	}
	return "", false
}

type Profile struct {
	ID            int64
	UserID        string
	Name          string
	Nickname      string
	Tier          Tier
	IntimacyOptIn bool
	KinkOptIn     bool
	ExplicitOptIn bool
	Active        bool
	CreatedAt     time.Time
}

var (
	// ErrNotOwned covers both "does not exist" and "belongs to another user".
	ErrNotOwned = errors.New("profile does not belong to user or does not exist")
	ErrBadTier  = errors.New("invalid age context")
	ErrBadOptIn = errors.New("unknown opt-in category")
)

// SwitchFunc receives presence-changed notifications after a successful
// switch commits. Failures inside the hook must not affect the switch.
type SwitchFunc func(userID string, profileID int64)

type Manager struct {
	db       *sql.DB
	onSwitch SwitchFunc
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// OnSwitch registers the presence-changed hook. Called once at wiring time.
func (m *Manager) OnSwitch(fn SwitchFunc) {
	m.onSwitch = fn
}

// EnsureUser creates the account-level row if it does not exist yet.
// Account state only: tokens and the onboarding flag live here, identity
// lives on profiles.
func (m *Manager) EnsureUser(userID string) error {
	_, err := m.db.Exec(
		`INSERT OR IGNORE INTO users (user_id, tokens, has_started) VALUES (?, 0, 0)`,
		userID)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (m *Manager) MarkStarted(userID string) error {
	_, err := m.db.Exec(`UPDATE users SET has_started = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	return nil
}

func (m *Manager) HasStarted(userID string) (bool, error) {
	var started bool
	err := m.db.QueryRow(
		`SELECT has_started FROM users WHERE user_id = ?`, userID).Scan(&started)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has started: %w", err)
	}
	return started, nil
}

// Create adds a new, inactive profile for the user. Activation is a
// separate, explicit SwitchActive call.
func (m *Manager) Create(userID, name, nickname string, tier Tier) (*Profile, error) {
	if !tier.Valid() {
		return nil, ErrBadTier
	}

	if err := m.EnsureUser(userID); err != nil {
		return nil, err
	}

	result, err := m.db.Exec(`
		INSERT INTO profiles (user_id, name, nickname, age_context, is_active)
		VALUES (?, ?, ?, ?, 0)`,
		userID, name, nickname, string(tier))
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	return m.Get(id)
}

// Get loads one profile by id, regardless of owner.
func (m *Manager) Get(profileID int64) (*Profile, error) {
	row := m.db.QueryRow(selectProfile+` WHERE profile_id = ?`, profileID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// List returns all of a user's profiles, oldest first.
func (m *Manager) List(userID string) ([]Profile, error) {
	rows, err := m.db.Query(selectProfile+` WHERE user_id = ? ORDER BY created_at ASC, profile_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// SwitchActive is the canonical presence switch. One transaction: deactivate
// everything the user owns, activate the target scoped by owner, verify the
// activation landed, append the switch log. A reader can never observe zero
// or two active profiles for the same user.
func (m *Manager) SwitchActive(userID string, profileID int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("switch active: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE profiles SET is_active = 0 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deactivate profiles: %w", err)
	}

	result, err := tx.Exec(
		`UPDATE profiles SET is_active = 1 WHERE profile_id = ? AND user_id = ?`,
		profileID, userID)
	if err != nil {
		return fmt.Errorf("activate profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("activate profile: %w", err)
	}
	if affected == 0 {
		return ErrNotOwned
	}

	if _, err := tx.Exec(
		`INSERT INTO profile_switch_log (user_id, profile_id) VALUES (?, ?)`,
		userID, profileID); err != nil {
		return fmt.Errorf("log switch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("switch active: %w", err)
	}

	if m.onSwitch != nil {
		m.onSwitch(userID, profileID)
	}

	return nil
}

// Active returns the user's active profile, or nil before onboarding.
// More than one active row is a consistency fault: it is logged and the
// first row is surfaced so callers keep working.
func (m *Manager) Active(userID string) (*Profile, error) {
	rows, err := m.db.Query(
		selectProfile+` WHERE user_id = ? AND is_active = 1 ORDER BY profile_id ASC LIMIT 2`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("active profile: %w", err)
	}
	defer rows.Close()

	var active []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("active profile: %w", err)
		}
		active = append(active, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active profile: %w", err)
	}

	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return &active[0], nil
	default:
		logger.Error("consistency fault: multiple active profiles", "user", userID)
		return &active[0], nil
	}
}

// EnsureCloudy guarantees the safe fallback: find or create the user's
// cloudy profile, then activate it. Idempotent.
func (m *Manager) EnsureCloudy(userID string) (int64, error) {
	if err := m.EnsureUser(userID); err != nil {
		return 0, err
	}

	var profileID int64
	err := m.db.QueryRow(`
		SELECT profile_id FROM profiles
		WHERE user_id = ? AND age_context = 'cloudy'
		ORDER BY profile_id ASC LIMIT 1`,
		userID).Scan(&profileID)

	if errors.Is(err, sql.ErrNoRows) {
		result, err := m.db.Exec(`
			INSERT INTO profiles (user_id, name, age_context, is_active)
			VALUES (?, 'Cloudy', 'cloudy', 0)`,
			userID)
		if err != nil {
			return 0, fmt.Errorf("create cloudy profile: %w", err)
		}
		profileID, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("create cloudy profile: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("find cloudy profile: %w", err)
	}

	if err := m.SwitchActive(userID, profileID); err != nil {
		return 0, err
	}

	return profileID, nil
}

// SetOptIn flips a consent flag on a profile the user owns and appends to
// the consent log in the same transaction.
func (m *Manager) SetOptIn(userID string, profileID int64, category OptIn, value bool) error {
	column, ok := category.column()
	if !ok {
		return ErrBadOptIn
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("set opt-in: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE profiles SET `+column+` = ? WHERE profile_id = ? AND user_id = ?`,
		value, profileID, userID)
	if err != nil {
		return fmt.Errorf("set opt-in: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set opt-in: %w", err)
	}
	if affected == 0 {
		return ErrNotOwned
	}

	if _, err := tx.Exec(
		`INSERT INTO consent_log (user_id, category, new_value) VALUES (?, ?, ?)`,
		userID, string(category), value); err != nil {
		return fmt.Errorf("log consent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set opt-in: %w", err)
	}
	return nil
}

const selectProfile = `
	SELECT profile_id, user_id, name, COALESCE(nickname, ''), age_context,
	       intimacy_opt_in, kink_opt_in, explicit_opt_in, is_active, created_at
	FROM profiles`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var tier string
	var createdAt string
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Nickname, &tier,
		&p.IntimacyOptIn, &p.KinkOptIn, &p.ExplicitOptIn, &p.Active, &createdAt); err != nil {
		return nil, err
	}
	p.Tier = Tier(tier)
	p.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	return &p, nil
}
