// Package shop spends the balance the ledger earns: safety-gated, atomic
// debit-and-log redemption, plus the undelivered feed the fulfillment side
// polls.
package shop

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tinyregg/internal/catalog"
	"tinyregg/internal/logger"
	"tinyregg/internal/presence"
)

// Denial reasons. All are terminal; none is retried or upgraded.
var (
	ErrUnknownItem       = errors.New("unknown shop item")
	ErrInsufficientFunds = errors.New("not enough tokens")
	ErrNotAllowed        = errors.New("item not allowed for this profile")
)

const (
	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeRetries  = 5
)

// Receipt is the successful outcome of a redemption.
type Receipt struct {
	ID      string
	ItemKey string
	Name    string
	Cost    int
	Code    string
}

// Pending is an undelivered redemption joined with its profile, consumed by
// the delivery collaborator.
type Pending struct {
	ID          string
	UserID      string
	ProfileName string
	ItemKey     string
	Code        string
}

type Shop struct {
	db      *sql.DB
	catalog *catalog.Catalog
	now     func() time.Time
}

func NewShop(db *sql.DB, cat *catalog.Catalog, now func() time.Time) *Shop {
	if now == nil {
		now = time.Now
	}
	return &Shop{db: db, catalog: cat, now: now}
}

// Redeem attempts to buy an item for the profile's owner. The gate chain
// short-circuits on the first failure; balance read, safety checks and the
// debit share one transaction so a concurrent redeem cannot double-spend.
func (s *Shop) Redeem(userID string, profileID int64, itemKey string) (*Receipt, error) {
	item, ok := s.catalog.Reward(itemKey)
	if !ok {
		logger.Warn("unknown reward key", "item", itemKey)
		return nil, ErrUnknownItem
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	defer tx.Rollback()

	var tokens int
	err = tx.QueryRow(`SELECT tokens FROM users WHERE user_id = ?`, userID).Scan(&tokens)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Warn("redeem attempt for missing user", "user", userID)
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}
	if tokens < item.Cost {
		return nil, ErrInsufficientFunds
	}

	var tier string
	var intimacy, kink, explicit bool
	err = tx.QueryRow(`
		SELECT age_context, intimacy_opt_in, kink_opt_in, explicit_opt_in
		FROM profiles WHERE profile_id = ?`,
		profileID).Scan(&tier, &intimacy, &kink, &explicit)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Warn("redeem attempt with missing profile", "profile", profileID, "user", userID)
		return nil, ErrNotAllowed
	}
	if err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}

	if !allowed(item, presence.Tier(tier), intimacy, kink, explicit) {
		return nil, ErrNotAllowed
	}

	// tokens >= cost re-checked in the debit predicate; balance never goes negative
	result, err := tx.Exec(
		`UPDATE users SET tokens = tokens - ? WHERE user_id = ? AND tokens >= ?`,
		item.Cost, userID, item.Cost)
	if err != nil {
		return nil, fmt.Errorf("debit tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("debit tokens: %w", err)
	}
	if affected == 0 {
		return nil, ErrInsufficientFunds
	}

	receipt, err := insertRedemption(tx, profileID, item, s.now())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("redeem: %w", err)
	}

	return receipt, nil
}

// allowed applies the safety gates in their fixed order: cloudy safety,
// regressive restrictions, then the three opt-in requirements.
func allowed(item catalog.Reward, tier presence.Tier, intimacy, kink, explicit bool) bool {
	if tier == presence.TierCloudy && !item.CloudySafe {
		return false
	}
	if tier == presence.TierRegressive && (item.RequiresKink || item.RequiresExplicit) {
		return false
	}
	if item.RequiresIntimacy && !intimacy {
		return false
	}
	if item.RequiresKink && !kink {
		return false
	}
	if item.RequiresExplicit && !explicit {
		return false
	}
	return true
}

func insertRedemption(tx *sql.Tx, profileID int64, item catalog.Reward, now time.Time) (*Receipt, error) {
	for attempt := 0; attempt < codeRetries; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		id := uuid.NewString()
		_, err = tx.Exec(`
			INSERT INTO redemption_history (id, profile_id, item_key, reward_code, delivered, created_at)
			VALUES (?, ?, ?, ?, 0, ?)`,
			id, profileID, item.Key, code, now.UTC().Format("2006-01-02 15:04:05"))
		if err == nil {
			return &Receipt{
				ID:      id,
				ItemKey: item.Key,
				Name:    item.Name,
				Cost:    item.Cost,
				Code:    code,
			}, nil
		}
		if !strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("insert redemption: %w", err)
		}
		// code collision, retry with a fresh one
	}
	return nil, fmt.Errorf("insert redemption: code collisions exhausted %d retries", codeRetries)
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// VisibleItems filters the catalog down to what a profile may currently
// redeem, for shop display.
func (s *Shop) VisibleItems(p *presence.Profile) []catalog.Reward {
	var items []catalog.Reward
	for _, item := range s.catalog.Rewards() {
		if allowed(item, p.Tier, p.IntimacyOptIn, p.KinkOptIn, p.ExplicitOptIn) {
			items = append(items, item)
		}
	}
	return items
}

// PendingDeliveries returns undelivered redemptions, oldest first.
func (s *Shop) PendingDeliveries() ([]Pending, error) {
	rows, err := s.db.Query(`
		SELECT rh.id, p.user_id, p.name, rh.item_key, rh.reward_code
		FROM redemption_history rh
		JOIN profiles p ON p.profile_id = rh.profile_id
		WHERE rh.delivered = 0
		ORDER BY rh.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("pending deliveries: %w", err)
	}
	defer rows.Close()

	var pending []Pending
	for rows.Next() {
		var p Pending
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProfileName, &p.ItemKey, &p.Code); err != nil {
			return nil, fmt.Errorf("pending deliveries: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkDelivered flags one redemption as handed over.
func (s *Shop) MarkDelivered(id string) error {
	_, err := s.db.Exec(`
		UPDATE redemption_history
		SET delivered = 1, delivered_at = ?
		WHERE id = ?`,
		s.now().UTC().Format("2006-01-02 15:04:05"), id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}
