package config

import (
	"fmt"
	"os"
	"strconv"
)

func Load() (*Config, error) {
	dbPath := os.Getenv("TINYREGG_DB")
	if dbPath == "" {
		dbPath = "tinyregg.db"
	}

	timezone := os.Getenv("TZ")
	if timezone == "" {
		timezone = "UTC"
	}

	botConfig, err := loadBotConfig()
	if err != nil {
		return nil, err
	}

	schedulerConfig := loadSchedulerConfig()

	return &Config{
		DatabasePath: dbPath,
		Timezone:     timezone,
		Bot:          botConfig,
		Scheduler:    schedulerConfig,
	}, nil
}

func loadBotConfig() (BotConfig, error) {
	provider := os.Getenv("BOT_PROVIDER")
	if provider == "" {
		provider = "discord"
	}

	var token string
	switch provider {
	case "discord":
		token = os.Getenv("DISCORD_TOKEN")
		if token == "" {
			return BotConfig{}, fmt.Errorf("DISCORD_TOKEN not set")
		}
	case "telegram":
		token = os.Getenv("TELEGRAM_TOKEN")
		if token == "" {
			return BotConfig{}, fmt.Errorf("TELEGRAM_TOKEN not set")
		}
	default:
		return BotConfig{}, fmt.Errorf("unknown bot provider: %s", provider)
	}

	ownerID := os.Getenv("BOT_OWNER_ID")
	if ownerID == "" {
		return BotConfig{}, fmt.Errorf("BOT_OWNER_ID not set")
	}

	return BotConfig{
		Provider: provider,
		Token:    token,
		OwnerID:  ownerID,
	}, nil
}

func loadSchedulerConfig() SchedulerConfig {
	schedule := os.Getenv("RESET_SCHEDULE")
	if schedule == "" {
		// 6:00 every morning, bot timezone
		schedule = "0 6 * * *"
	}

	interval := 60
	if raw := os.Getenv("DELIVERY_INTERVAL"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	return SchedulerConfig{
		ResetSchedule:    schedule,
		DeliveryInterval: interval,
	}
}
