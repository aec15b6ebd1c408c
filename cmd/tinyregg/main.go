package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tinyregg/internal/bot"
	"tinyregg/internal/catalog"
	"tinyregg/internal/config"
	"tinyregg/internal/logger"
	"tinyregg/internal/presence"
	"tinyregg/internal/rewards"
	"tinyregg/internal/scheduler"
	"tinyregg/internal/shop"
	"tinyregg/internal/store"
	"tinyregg/internal/tasks"
)

func init() {
	godotenv.Load()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("invalid timezone", "tz", cfg.Timezone, "error", err)
	}
	now := func() time.Time { return time.Now().In(tz) }

	cat, err := catalog.Load()
	if err != nil {
		logger.Fatal("failed to load catalog", "error", err)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to open database", "path", cfg.DatabasePath, "error", err)
	}
	defer db.Close()

	manager := presence.NewManager(db)
	engine := tasks.NewEngine(db, cat, nil, now)
	ledger := rewards.NewLedger(db, now)
	sh := shop.NewShop(db, cat, now)

	// presence changes re-gate today's task set; a failed reassessment is
	// logged and picked up by the next trigger, never rolled back into the switch
	manager.OnSwitch(func(userID string, profileID int64) {
		if err := engine.Reassess(profileID); err != nil {
			logger.Error("task reassessment failed", "user", userID, "profile", profileID, "error", err)
		}
	})

	service := bot.NewService(manager, engine, ledger, sh, cat, cfg.Bot.OwnerID, nil)

	b, err := bot.New(bot.Config{
		Provider: cfg.Bot.Provider,
		Token:    cfg.Bot.Token,
		OwnerID:  cfg.Bot.OwnerID,
	}, service)
	if err != nil {
		logger.Fatal("failed to create bot", "error", err)
	}

	runner, err := scheduler.NewRunner(db, manager, engine, sh,
		cfg.Bot.OwnerID, cfg.Scheduler.ResetSchedule,
		time.Duration(cfg.Scheduler.DeliveryInterval)*time.Second, tz)
	if err != nil {
		logger.Fatal("failed to create scheduler", "error", err)
	}

	runner.OnReset(func(userID string, profileID int64, assigned []tasks.Assigned) {
		msg := fmt.Sprintf("🌅 Good morning. %d tasks are waiting — try `tasks`.", len(assigned))
		if err := b.Send(userID, msg); err != nil {
			logger.Error("morning announcement failed", "user", userID, "error", err)
		}
	})

	runner.OnDeliver(func(p shop.Pending) error {
		item, ok := cat.Reward(p.ItemKey)
		if !ok {
			// stale catalog key; drop it from the queue
			logger.Warn("pending redemption for unknown item", "item", p.ItemKey)
			return nil
		}
		msg := fmt.Sprintf("%s %s is ready for %s. Your code: %s", item.Emoji, item.Name, p.ProfileName, p.Code)
		return b.Send(p.UserID, msg)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runner.Run(ctx)

	logger.Info("tinyregg starting", "provider", cfg.Bot.Provider, "db", cfg.DatabasePath)
	if err := b.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("bot stopped", "error", err)
	}

	logger.Info("tinyregg stopped")
}
