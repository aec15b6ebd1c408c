package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tinyregg/internal/logger"
)

type telegram struct {
	api     *tgbotapi.BotAPI
	service *Service
	ownerID string
}

func newTelegram(token, ownerID string, service *Service) (Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &telegram{api: api, service: service, ownerID: ownerID}, nil
}

func (t *telegram) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			t.handleMessage(update.Message)
		}
	}
}

func (t *telegram) Send(userID string, message string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return err
	}

	_, err = t.api.Send(tgbotapi.NewMessage(chatID, message))
	if err != nil {
		logger.Error("telegram send failed", "error", err, "user", userID)
	}
	return err
}

func (t *telegram) handleMessage(msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	logger.Info("message received", "from", msg.From.UserName, "text", truncate(msg.Text, 50))

	response := t.service.Handle(userID, msg.Text)
	if response == "" {
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	if _, err := t.api.Send(reply); err != nil {
		logger.Error("telegram reply failed", "error", err)
	}
}
