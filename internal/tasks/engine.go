// Package tasks fills each profile's bounded daily task set and re-gates it
// when presence changes. Generation is idempotent within a day: repeated
// calls never duplicate keys and never assign a second explicit task.
package tasks

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"tinyregg/internal/catalog"
	"tinyregg/internal/presence"
	"tinyregg/internal/store"
)

const (
	// DailyCap bounds the assigned set per (profile, day), anchors included.
	DailyCap = 10

	// explicitChance is rolled once per slot draw, after the category draw.
	explicitChance = 0.18

	// maxMisses ends the fill loop when small pools keep colliding with
	// already-assigned keys. A short list is a valid outcome.
	maxMisses = 25
)

var ErrPoolNotAllowed = errors.New("pool not allowed for this profile")

// Assigned is one task instance in a profile's daily set.
type Assigned struct {
	ProfileID int64
	Day       string
	Key       string
	Category  catalog.Category
	Required  bool
	Hidden    bool
}

type Engine struct {
	db      *sql.DB
	catalog *catalog.Catalog
	rng     *rand.Rand
	now     func() time.Time
}

// NewEngine builds the generation engine. rng and now are injectable for
// deterministic tests; nil selects real randomness and the wall clock.
func NewEngine(db *sql.DB, cat *catalog.Catalog, rng *rand.Rand, now func() time.Time) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{db: db, catalog: cat, rng: rng, now: now}
}

func (e *Engine) today() string {
	return store.Day(e.now())
}

type profileGates struct {
	tier     presence.Tier
	intimacy bool
	kink     bool
	explicit bool
}

func loadGates(tx *sql.Tx, profileID int64) (*profileGates, error) {
	var g profileGates
	var tier string
	err := tx.QueryRow(`
		SELECT age_context, intimacy_opt_in, kink_opt_in, explicit_opt_in
		FROM profiles WHERE profile_id = ?`,
		profileID).Scan(&tier, &g.intimacy, &g.kink, &g.explicit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.tier = presence.Tier(tier)
	return &g, nil
}

// weightTable returns the draw table for the profile's tier and opt-ins.
// Explicit never appears here; it only enters through the override roll.
func weightTable(g *profileGates) []weightedPool {
	if g.tier == presence.TierCloudy || g.tier == presence.TierRegressive {
		return []weightedPool{
			{PoolBasic, 35},
			{PoolFun, 30},
			{PoolRegressive, 25},
			{PoolSmallClean, 10},
		}
	}

	table := []weightedPool{
		{PoolBasic, 25},
		{PoolFun, 20},
		{PoolSmallClean, 20},
		{PoolMediumClean, 15},
		{PoolHeavyClean, 5},
	}
	if g.intimacy {
		table = append(table, weightedPool{PoolIntimacy, 10})
	}
	if g.kink {
		table = append(table, weightedPool{PoolKink, 7})
	}
	return table
}

// allowedCategories returns the stored-category values a profile may hold,
// used by Reassess to delete what no longer fits.
func allowedCategories(g *profileGates) map[catalog.Category]bool {
	allowed := map[catalog.Category]bool{
		catalog.CategoryRequired:   true,
		catalog.CategoryCore:       true,
		catalog.CategoryFun:        true,
		catalog.CategorySmallClean: true,
	}

	switch g.tier {
	case presence.TierCloudy, presence.TierRegressive:
		allowed[catalog.CategoryRegressive] = true
	case presence.TierAdult:
		allowed[catalog.CategoryMediumClean] = true
		allowed[catalog.CategoryHeavyClean] = true
		if g.intimacy {
			allowed[catalog.CategoryIntimacy] = true
		}
		if g.kink {
			allowed[catalog.CategoryKink] = true
		}
		if g.explicit {
			allowed[catalog.CategoryExplicit] = true
		}
	}

	return allowed
}

// pickWeighted draws one pool by cumulative-weight roulette: total = Σw,
// roll uniform in [0,total), first bucket whose cumulative sum reaches the
// roll wins. The tie-break is load-bearing for seeded reproducibility.
func pickWeighted(rng *rand.Rand, table []weightedPool) Pool {
	total := 0
	for _, w := range table {
		total += w.weight
	}

	roll := rng.Float64() * float64(total)
	upto := 0.0
	for _, w := range table {
		if upto+float64(w.weight) >= roll {
			return w.pool
		}
		upto += float64(w.weight)
	}
	return table[len(table)-1].pool
}

// GenerateDaily fills today's task set for a profile up to DailyCap.
// A stale profile id is a no-op success. The whole attempt is one
// transaction: either every new row commits or none do.
func (e *Engine) GenerateDaily(profileID int64) ([]Assigned, error) {
	day := e.today()

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("generate daily: %w", err)
	}
	defer tx.Rollback()

	gates, err := loadGates(tx, profileID)
	if err != nil {
		return nil, fmt.Errorf("generate daily: %w", err)
	}
	if gates == nil {
		return nil, nil
	}

	existing, explicitAssigned, err := existingToday(tx, profileID, day)
	if err != nil {
		return nil, fmt.Errorf("generate daily: %w", err)
	}

	var chosen []Assigned
	add := func(t catalog.Task, cat catalog.Category, required bool) {
		existing[t.Key] = true
		chosen = append(chosen, Assigned{
			ProfileID: profileID,
			Day:       day,
			Key:       t.Key,
			Category:  cat,
			Required:  required,
			Hidden:    true,
		})
	}

	// required anchors first; they occupy slots but are never drawn
	existingCount := len(existing)
	for _, t := range e.catalog.Required() {
		if !existing[t.Key] {
			add(t, catalog.CategoryRequired, true)
		}
	}

	remaining := DailyCap - existingCount - len(chosen)
	if remaining > 0 {
		table := weightTable(gates)
		misses := 0

		for remaining > 0 {
			pool := pickWeighted(e.rng, table)

			if gates.tier == presence.TierAdult && gates.explicit && !explicitAssigned &&
				e.rng.Float64() <= explicitChance {
				pool = PoolExplicit
				explicitAssigned = true
			}

			tasks := pool.tasks(e.catalog)
			if len(tasks) == 0 {
				misses++
				if misses >= maxMisses {
					break
				}
				continue
			}

			pick := tasks[e.rng.Intn(len(tasks))]
			if existing[pick.Key] {
				misses++
				if misses >= maxMisses {
					break
				}
				continue
			}

			add(pick, pool.Category(), false)
			remaining--
			misses = 0
		}
	}

	if err := insertAssigned(tx, chosen); err != nil {
		return nil, fmt.Errorf("generate daily: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("generate daily: %w", err)
	}

	return chosen, nil
}

// Reassess re-gates today's set after a presence switch: uncompleted tasks
// whose category the new tier/opt-ins no longer allow are removed, completed
// ones are untouched. If a required anchor was removed, the set is
// backfilled through GenerateDaily.
func (e *Engine) Reassess(profileID int64) error {
	day := e.today()

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("reassess: %w", err)
	}
	defer tx.Rollback()

	gates, err := loadGates(tx, profileID)
	if err != nil {
		return fmt.Errorf("reassess: %w", err)
	}
	if gates == nil {
		return nil
	}

	allowed := allowedCategories(gates)
	placeholders := make([]string, 0, len(allowed))
	args := []any{profileID, day, profileID, day}
	for cat := range allowed {
		placeholders = append(placeholders, "?")
		args = append(args, string(cat))
	}

	// completed tasks are immutable history; only uncompleted rows may go
	predicate := `
		profile_id = ? AND date = ?
		AND task_key NOT IN (
			SELECT task_key FROM task_history
			WHERE profile_id = ? AND date = ? AND completed = 1
		)
		AND category NOT IN (` + strings.Join(placeholders, ",") + `)`

	var requiredRemoved bool
	rows, err := tx.Query(`SELECT is_required FROM assigned_tasks WHERE`+predicate, args...)
	if err != nil {
		return fmt.Errorf("reassess: %w", err)
	}
	removing := 0
	for rows.Next() {
		var required bool
		if err := rows.Scan(&required); err != nil {
			rows.Close()
			return fmt.Errorf("reassess: %w", err)
		}
		removing++
		if required {
			requiredRemoved = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reassess: %w", err)
	}

	if removing > 0 {
		if _, err := tx.Exec(`DELETE FROM assigned_tasks WHERE`+predicate, args...); err != nil {
			return fmt.Errorf("reassess: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reassess: %w", err)
	}

	if requiredRemoved {
		if _, err := e.GenerateDaily(profileID); err != nil {
			return err
		}
	}

	return nil
}

// RequestFromPool assigns count extra picks from one named pool, outside the
// daily cap. The pool must be allowed for the profile's tier and opt-ins.
func (e *Engine) RequestFromPool(profileID int64, pool Pool, count int) ([]Assigned, error) {
	if count <= 0 {
		count = 1
	}
	day := e.today()

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("request tasks: %w", err)
	}
	defer tx.Rollback()

	gates, err := loadGates(tx, profileID)
	if err != nil {
		return nil, fmt.Errorf("request tasks: %w", err)
	}
	if gates == nil {
		return nil, nil
	}

	if !pool.allowedFor(gates) {
		return nil, ErrPoolNotAllowed
	}

	existing, _, err := existingToday(tx, profileID, day)
	if err != nil {
		return nil, fmt.Errorf("request tasks: %w", err)
	}

	tasks := pool.tasks(e.catalog)
	var chosen []Assigned
	misses := 0
	for len(chosen) < count && misses < maxMisses {
		if len(tasks) == 0 {
			break
		}
		pick := tasks[e.rng.Intn(len(tasks))]
		if existing[pick.Key] {
			misses++
			continue
		}
		existing[pick.Key] = true
		chosen = append(chosen, Assigned{
			ProfileID: profileID,
			Day:       day,
			Key:       pick.Key,
			Category:  pool.Category(),
			Hidden:    true,
		})
		misses = 0
	}

	if err := insertAssigned(tx, chosen); err != nil {
		return nil, fmt.Errorf("request tasks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("request tasks: %w", err)
	}

	return chosen, nil
}

// ResetDaily prunes rows from past days and generates today's set. Called
// once per day by the scheduler; safe to repeat.
func (e *Engine) ResetDaily(profileID int64) ([]Assigned, error) {
	day := e.today()

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("reset daily: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM assigned_tasks WHERE profile_id = ? AND date < ?`,
		profileID, day); err != nil {
		return nil, fmt.Errorf("prune assigned tasks: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM task_history WHERE profile_id = ? AND date < ?`,
		profileID, day); err != nil {
		return nil, fmt.Errorf("prune task history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("reset daily: %w", err)
	}

	return e.GenerateDaily(profileID)
}

// TasksForToday returns today's assigned set, anchors first.
func (e *Engine) TasksForToday(profileID int64) ([]Assigned, error) {
	rows, err := e.db.Query(`
		SELECT profile_id, date, task_key, category, is_required, hidden_until_complete
		FROM assigned_tasks
		WHERE profile_id = ? AND date = ?
		ORDER BY is_required DESC, category ASC, task_key ASC`,
		profileID, e.today())
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Assigned
	for rows.Next() {
		var t Assigned
		var cat string
		if err := rows.Scan(&t.ProfileID, &t.Day, &t.Key, &cat, &t.Required, &t.Hidden); err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		t.Category = catalog.Category(cat)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func existingToday(tx *sql.Tx, profileID int64, day string) (map[string]bool, bool, error) {
	rows, err := tx.Query(
		`SELECT task_key, category FROM assigned_tasks WHERE profile_id = ? AND date = ?`,
		profileID, day)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	existing := map[string]bool{}
	explicitAssigned := false
	for rows.Next() {
		var key, cat string
		if err := rows.Scan(&key, &cat); err != nil {
			return nil, false, err
		}
		existing[key] = true
		if catalog.Category(cat) == catalog.CategoryExplicit {
			explicitAssigned = true
		}
	}
	return existing, explicitAssigned, rows.Err()
}

func insertAssigned(tx *sql.Tx, tasks []Assigned) error {
	for _, t := range tasks {
		// concurrent double-generation resolves here, not in memory
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO assigned_tasks
			(profile_id, date, task_key, category, is_required, hidden_until_complete)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.ProfileID, t.Day, t.Key, string(t.Category), t.Required, t.Hidden); err != nil {
			return err
		}
	}
	return nil
}
