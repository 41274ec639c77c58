package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"
)

// Inbound is one text message received from the chat.
type Inbound struct {
	ChatID int64
	Text   string
}

// Poller streams inbound messages until ctx is done, then closes the channel.
type Poller interface {
	Poll(ctx context.Context) (<-chan Inbound, error)
}

// TelegramPoller receives messages through Bot API long polling.
type TelegramPoller struct {
	bot     *telego.Bot
	timeout int
}

// NewTelegramPoller creates a long-polling client. apiBase may be empty.
func NewTelegramPoller(token, apiBase string, pollTimeoutSeconds int) (*TelegramPoller, error) {
	opts := []telego.BotOption{telego.WithDiscardLogger()}
	if apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/"); apiBase != "" {
		opts = append(opts, telego.WithAPIServer(apiBase))
	}
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if pollTimeoutSeconds <= 0 {
		pollTimeoutSeconds = 30
	}
	return &TelegramPoller{bot: bot, timeout: pollTimeoutSeconds}, nil
}

func (p *TelegramPoller) Poll(ctx context.Context) (<-chan Inbound, error) {
	updates, err := p.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        p.timeout,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("start long polling: %w", err)
	}

	out := make(chan Inbound)
	go func() {
		defer close(out)
		for update := range updates {
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			select {
			case out <- Inbound{ChatID: update.Message.Chat.ID, Text: update.Message.Text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Bot feeds messages from the authorised chat into a Handler. Each message is handled on
// its own goroutine so a slow trade never delays the next command.
type Bot struct {
	poller  Poller
	handler *Handler
	chatID  int64
	logger  zerolog.Logger
}

// NewBot accepts commands only from chatID, given as the decimal Telegram chat id.
func NewBot(poller Poller, handler *Handler, chatID string, logger zerolog.Logger) (*Bot, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	return &Bot{
		poller:  poller,
		handler: handler,
		chatID:  id,
		logger:  logger.With().Str("component", "chat_bot").Logger(),
	}, nil
}

// Run blocks until ctx is cancelled and every in-flight command has returned.
func (b *Bot) Run(ctx context.Context) error {
	inbound, err := b.poller.Poll(ctx)
	if err != nil {
		return err
	}
	b.logger.Info().Int64("chat_id", b.chatID).Msg("listening for commands")

	var wg sync.WaitGroup
	defer wg.Wait()

	for msg := range inbound {
		if msg.ChatID != b.chatID {
			b.logger.Warn().Int64("chat_id", msg.ChatID).Msg("ignoring message from unauthorised chat")
			continue
		}
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().Interface("panic", r).Str("text", text).Msg("command handler panicked")
				}
			}()
			_ = b.handler.Handle(ctx, text)
		}(msg.Text)
	}
	return nil
}
