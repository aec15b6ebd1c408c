package bot

import (
	"fmt"
)

func New(cfg Config, service *Service) (Bot, error) {
	switch cfg.Provider {
	case "discord":
		return newDiscord(cfg.Token, cfg.OwnerID, service)
	case "telegram":
		return newTelegram(cfg.Token, cfg.OwnerID, service)
	default:
		return nil, fmt.Errorf("unknown bot provider: %s", cfg.Provider)
	}
}
