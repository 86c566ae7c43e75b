// Package telegram adapts the Telegram Bot API to the transport
// interfaces used by the wallet core.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/transport"
)

const pollTimeoutSeconds = 30

type Bot struct {
	api *tgbotapi.BotAPI
	log logging.Logger
}

func New(token string, log logging.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}

	return &Bot{api: api, log: log.With("component", "telegram")}, nil
}

func (b *Bot) SendText(ctx context.Context, identity string, text string) error {
	chatID, err := chatID(identity)
	if err != nil {
		return err
	}

	_, err = b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) SendPhoto(ctx context.Context, identity string, photo []byte, caption string) error {
	chatID, err := chatID(identity)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "enrollment.png", Bytes: photo})
	msg.Caption = caption

	_, err = b.api.Send(msg)
	return err
}

// Poll consumes updates via long polling until the context is canceled.
// Each update is handled on its own goroutine so one identity's slow
// transition (QR rendering, swap execution) never blocks another's.
// Per-identity ordering is enforced inside the state machines.
func (b *Bot) Poll(ctx context.Context, handle transport.Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds

	updates := b.api.GetUpdatesChan(cfg)
	b.log.Info(ctx, "telegram bot polling", "bot", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || upd.Message.From == nil {
				continue
			}

			u := transport.Update{
				Identity:    strconv.FormatInt(upd.Message.From.ID, 10),
				DisplayName: upd.Message.From.UserName,
				Command:     upd.Message.Command(),
				Text:        strings.TrimSpace(upd.Message.Text),
			}

			go handle(ctx, u)
		}
	}
}

func chatID(identity string) (int64, error) {
	id, err := strconv.ParseInt(identity, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad chat identity %q: %w", identity, err)
	}
	return id, nil
}
