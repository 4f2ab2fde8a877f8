package notifier

import (
	"AgentOffice/backend/go/internal/config"
	"AgentOffice/backend/go/internal/models"
	pkghttp "AgentOffice/backend/go/pkg/http"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// MaxMessageRunes is the Telegram message size limit.
const MaxMessageRunes = 4096

// Telegram sends HTML messages to one chat through the Bot API.
type Telegram struct {
	client *pkghttp.Client
	base   string
	token  string
	chatID string
}

func NewTelegram(cfg config.TelegramConfig, client *pkghttp.Client) *Telegram {
	base := cfg.APIBase
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Telegram{
		client: client,
		base:   strings.TrimRight(base, "/"),
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
	}
}

// Configured reports whether a bot token and a chat id are set.
func (t *Telegram) Configured() bool {
	return t != nil && t.client != nil && t.token != "" && t.chatID != ""
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Configured() {
		return nil
	}
	body := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     models.Truncate(text, MaxMessageRunes),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	if err := t.client.DoJSON(ctx, http.MethodPost, url, nil, body, &out); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("telegram sendMessage rejected: %s", out.Description)
	}
	return nil
}
