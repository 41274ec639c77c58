package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies a message for logging and delivery priority.
type Kind string

const (
	KindInfo        Kind = "info"
	KindOpportunity Kind = "opportunity"
	KindTrade       Kind = "trade"
	KindWarning     Kind = "warning"
	// KindCritical marks messages that must not be lost silently, such as an executed
	// trade that could not be written to the ledger.
	KindCritical Kind = "critical"
)

// Message is one outbound chat message. Text uses Telegram's legacy Markdown.
type Message struct {
	Kind Kind
	Text string
}

// Notifier delivers a message synchronously.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Sender hands a message off for delivery without waiting for it. Implementations never
// block the caller on the network and never report delivery errors back.
type Sender interface {
	Send(msg Message)
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken  string
	chatID    string
	baseURL   string
	parseMode string
	client    *http.Client
	logger    zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier bound to one chat.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken:  botToken,
		chatID:    chatID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		parseMode: "Markdown",
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	payload := map[string]string{
		"chat_id":    n.chatID,
		"text":       msg.Text,
		"parse_mode": n.parseMode,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false: %s", result.Description)
		}
	}

	n.logger.Debug().Str("kind", string(msg.Kind)).Msg("message delivered (Telegram)")
	return nil
}

// LogNotifier writes messages to the log instead of a chat. It is used when no chat
// channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	level := zerolog.InfoLevel
	if msg.Kind == KindCritical {
		level = zerolog.ErrorLevel
	}
	n.logger.WithLevel(level).Str("kind", string(msg.Kind)).Msg(msg.Text)
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
