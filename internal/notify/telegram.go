// README: Telegram delivery via the bot API.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"housecall/internal/modules/directory"
)

// Telegram sends plain-text pushes to a medic's linked chat. Medics without
// a linked chat are skipped silently.
type Telegram struct {
	api *tgbotapi.BotAPI
}

func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{api: api}, nil
}

func (t *Telegram) Notify(ctx context.Context, recipient *directory.Medic, text string) error {
	if recipient.TelegramChatID == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(*recipient.TelegramChatID, text)
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, err := t.api.Send(msg)
		done <- result{err}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		return r.err
	}
}
