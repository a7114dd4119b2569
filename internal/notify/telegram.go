// internal/notify/telegram.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/events"
)

const (
	DefaultAPIBase = "https://api.telegram.org"
	sendTimeout    = 10 * time.Second
)

// Telegram sends HTML messages to one chat through the Bot API.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	http    *http.Client
	logger  *zap.Logger
}

func NewTelegram(apiBase, token, chatID string, logger *zap.Logger) (*Telegram, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram: bot token and chat id are required")
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Telegram{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  chatID,
		http:    &http.Client{Timeout: sendTimeout},
		logger:  logger.Named("telegram"),
	}, nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send posts one HTML message.
func (t *Telegram) Send(ctx context.Context, html string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  html,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		// url содержит токен бота, в ошибку он попасть не должен
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()

	var out apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

// Register subscribes the notifier to pool and attempt events. Delivery runs on the bus
// goroutines, so a slow or failing Telegram never blocks the pipeline.
func (t *Telegram) Register(bus *events.Bus) []events.Subscription {
	handle := func(ctx context.Context, ev events.Event) error {
		var msg string
		switch e := ev.(type) {
		case events.PoolDetectedEvent:
			msg = FormatPoolDetected(e.Token, e.Timestamp())
		case events.AttemptFinishedEvent:
			msg = FormatAttempt(&e.Attempt)
		default:
			return nil
		}
		if err := t.Send(ctx, msg); err != nil {
			t.logger.Warn("Failed to send notification", zap.String("event", string(ev.Type())), zap.Error(err))
			return err
		}
		return nil
	}
	return []events.Subscription{
		bus.SubscribeFunc(events.PoolDetected, handle),
		bus.SubscribeFunc(events.AttemptFinished, handle),
	}
}
