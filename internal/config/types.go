package config

type Config struct {
	DatabasePath string
	Timezone     string
	Bot          BotConfig
	Scheduler    SchedulerConfig
}

type BotConfig struct {
	Provider string
	Token    string
	// OwnerID is the platform user id of the single account this bot serves.
	OwnerID string
}

type SchedulerConfig struct {
	// ResetSchedule is a 5-field cron expression for the daily task reset.
	ResetSchedule string
	// DeliveryInterval is how often undelivered redemptions are flushed, in seconds.
	DeliveryInterval int
}
