package gateway

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/rahul/switchboard/internal/agent"
)

const discordMessageLimit = 2000

// DiscordGateway answers direct messages and channel messages that mention the bot.
type DiscordGateway struct {
	Session *discordgo.Session
	Brain   agent.Brain

	ctx context.Context
}

var _ Messenger = (*DiscordGateway)(nil)

func NewDiscordGateway(token string, brain agent.Brain) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent

	return &DiscordGateway{Session: s, Brain: brain, ctx: context.Background()}, nil
}

// Start opens the websocket and blocks until ctx is done.
func (dg *DiscordGateway) Start(ctx context.Context) error {
	dg.ctx = ctx
	dg.Session.AddHandler(dg.onMessage)
	if err := dg.Session.Open(); err != nil {
		return err
	}
	slog.Info("discord connected", "account", dg.Session.State.User.Username)

	<-ctx.Done()
	return dg.Stop()
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	text, ok := addressedText(m.Message, s.State.User.ID)
	if !ok {
		return
	}

	slog.Info("discord message", "from", m.Author.Username, "text", text)
	response := answer(dg.ctx, dg.Brain, m.ChannelID, text)
	if err := dg.Send(m.ChannelID, response); err != nil {
		slog.Warn("discord send failed", "channel", m.ChannelID, "error", err)
	}
}

// addressedText returns the message text without the bot mention. Guild messages
// must mention the bot; direct messages need not.
func addressedText(m *discordgo.Message, botID string) (string, bool) {
	text := m.Content
	if m.GuildID != "" {
		mentioned := false
		for _, u := range m.Mentions {
			if u.ID == botID {
				mentioned = true
				break
			}
		}
		if !mentioned {
			return "", false
		}
		text = strings.NewReplacer("<@"+botID+">", "", "<@!"+botID+">", "").Replace(text)
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	for _, part := range chunk(text, discordMessageLimit) {
		if _, err := dg.Session.ChannelMessageSend(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
