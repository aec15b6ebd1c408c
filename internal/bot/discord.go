package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"tinyregg/internal/logger"
)

type discord struct {
	session *discordgo.Session
	service *Service
	ownerID string
}

func newDiscord(token, ownerID string, service *Service) (Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	d := &discord{
		session: session,
		service: service,
		ownerID: ownerID,
	}

	session.AddHandler(d.handleMessage)

	return d, nil
}

func (d *discord) Start(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return err
	}

	<-ctx.Done()
	return d.session.Close()
}

func (d *discord) Send(userID string, message string) error {
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		logger.Error("discord dm channel failed", "error", err, "user", userID)
		return err
	}

	_, err = d.session.ChannelMessageSend(channel.ID, message)
	if err != nil {
		logger.Error("discord send failed", "error", err, "user", userID)
	}
	return err
}

func (d *discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	logger.Info("message received", "from", m.Author.Username, "text", truncate(m.Content, 50))

	response := d.service.Handle(m.Author.ID, m.Content)
	if response == "" {
		return
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, response); err != nil {
		logger.Error("discord reply failed", "error", err)
	}
}
