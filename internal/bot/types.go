package bot

import (
	"context"
)

type Bot interface {
	Start(ctx context.Context) error
	// Send delivers a direct message to a platform user id.
	Send(userID string, message string) error
}

type Config struct {
	Provider string
	Token    string
	// OwnerID is the only platform user this bot answers to.
	OwnerID string
}
