// Package scheduler owns the wall-clock triggers: the once-a-day task reset
// and the undelivered-redemption flush. The core engine stays trigger-free;
// everything here is a plain call into it.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tinyregg/internal/logger"
	"tinyregg/internal/presence"
	"tinyregg/internal/shop"
	"tinyregg/internal/store"
	"tinyregg/internal/tasks"
)

// cronParser accepts standard 5-field cron expressions
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ResetFunc is told about a completed daily reset so the transport can
// announce the new day. Failures are logged, never retried.
type ResetFunc func(userID string, profileID int64, assigned []tasks.Assigned)

// DeliverFunc hands one redemption to the user. A nil error marks the
// record delivered; an error leaves it pending for the next pass.
type DeliverFunc func(p shop.Pending) error

type Runner struct {
	db       *sql.DB
	manager  *presence.Manager
	engine   *tasks.Engine
	shop     *shop.Shop
	ownerID  string
	schedule cron.Schedule
	interval time.Duration
	timezone *time.Location
	now      func() time.Time

	onReset ResetFunc
	deliver DeliverFunc
}

func NewRunner(db *sql.DB, manager *presence.Manager, engine *tasks.Engine, sh *shop.Shop,
	ownerID, resetSchedule string, deliveryInterval time.Duration, tz *time.Location) (*Runner, error) {

	sched, err := cronParser.Parse(resetSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid reset schedule: %w", err)
	}

	if tz == nil {
		tz = time.UTC
	}
	if deliveryInterval <= 0 {
		deliveryInterval = time.Minute
	}

	return &Runner{
		db:       db,
		manager:  manager,
		engine:   engine,
		shop:     sh,
		ownerID:  ownerID,
		schedule: sched,
		interval: deliveryInterval,
		timezone: tz,
		now:      time.Now,
	}, nil
}

func (r *Runner) OnReset(fn ResetFunc) {
	r.onReset = fn
}

func (r *Runner) OnDeliver(fn DeliverFunc) {
	r.deliver = fn
}

// Run ticks until the context ends. Each tick checks whether today's reset
// time has passed without a reset, then flushes pending deliveries.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	deliveryTicker := time.NewTicker(r.interval)
	defer deliveryTicker.Stop()

	r.checkReset()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("scheduler stopping")
			return
		case <-ticker.C:
			r.checkReset()
		case <-deliveryTicker.C:
			r.flushDeliveries()
		}
	}
}

func (r *Runner) checkReset() {
	now := r.now().In(r.timezone)
	today := store.Day(now)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.timezone)
	fireAt := r.schedule.Next(startOfDay.Add(-time.Second))
	if now.Before(fireAt) {
		return
	}

	last, err := r.lastResetDay()
	if err != nil {
		logger.Error("failed to read reset state", "error", err)
		return
	}
	if last == today {
		return
	}

	if err := r.runReset(today); err != nil {
		logger.Error("daily reset failed", "error", err)
	}
}

func (r *Runner) runReset(today string) error {
	active, err := r.manager.Active(r.ownerID)
	if err != nil {
		return err
	}
	if active == nil {
		// not onboarded or nothing active: fall back to cloudy
		if _, err := r.manager.EnsureCloudy(r.ownerID); err != nil {
			return err
		}
		active, err = r.manager.Active(r.ownerID)
		if err != nil {
			return err
		}
		if active == nil {
			return errors.New("no active profile after cloudy fallback")
		}
	}

	assigned, err := r.engine.ResetDaily(active.ID)
	if err != nil {
		return err
	}

	if err := r.markReset(today); err != nil {
		return err
	}

	logger.Info("daily reset complete", "profile", active.ID, "assigned", len(assigned))

	if r.onReset != nil {
		r.onReset(r.ownerID, active.ID, assigned)
	}
	return nil
}

func (r *Runner) flushDeliveries() {
	if r.deliver == nil {
		return
	}

	pending, err := r.shop.PendingDeliveries()
	if err != nil {
		logger.Error("failed to list pending deliveries", "error", err)
		return
	}

	for _, p := range pending {
		if err := r.deliver(p); err != nil {
			logger.Error("delivery failed", "redemption", p.ID, "error", err)
			continue
		}
		if err := r.shop.MarkDelivered(p.ID); err != nil {
			logger.Error("failed to mark delivered", "redemption", p.ID, "error", err)
		}
	}
}

func (r *Runner) lastResetDay() (string, error) {
	var day string
	err := r.db.QueryRow(
		`SELECT COALESCE(last_reset_date, '') FROM task_reset_state WHERE id = 1`).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return day, err
}

func (r *Runner) markReset(day string) error {
	_, err := r.db.Exec(`
		INSERT INTO task_reset_state (id, last_reset_date) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_reset_date = excluded.last_reset_date`,
		day)
	return err
}
