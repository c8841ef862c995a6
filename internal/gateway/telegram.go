package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rahul/switchboard/internal/agent"
)

const telegramMessageLimit = 4096

type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Brain agent.Brain

	wg sync.WaitGroup
}

var _ Messenger = (*TelegramGateway)(nil)

func NewTelegramGateway(token string, brain agent.Brain) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	slog.Info("telegram authorized", "account", bot.Self.UserName)

	return &TelegramGateway{
		Bot:   bot,
		Brain: brain,
	}, nil
}

// Start handles each incoming message in its own goroutine so a long plan in one
// chat does not hold up the others.
func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)
	defer tg.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			tg.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			from := ""
			if update.Message.From != nil {
				from = update.Message.From.UserName
			}
			slog.Info("telegram message", "from", from, "text", update.Message.Text)

			chatID := update.Message.Chat.ID
			text := update.Message.Text
			tg.wg.Add(1)
			go func() {
				defer tg.wg.Done()
				response := answer(ctx, tg.Brain, strconv.FormatInt(chatID, 10), text)
				for _, part := range chunk(response, telegramMessageLimit) {
					if _, err := tg.Bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
						slog.Warn("telegram send failed", "chat_id", chatID, "error", err)
					}
				}
			}()
		}
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	for _, part := range chunk(text, telegramMessageLimit) {
		msg := tgbotapi.NewMessage(id, part)
		msg.ParseMode = "Markdown"
		if _, err := tg.Bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
