package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"swingtrader/internal/model"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends alerts to one chat through the Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegramNotifier takes the token issued by @BotFather and the target
// chat, group or channel ID.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

// WithBaseURL points the notifier at another Bot API host.
func (t *TelegramNotifier) WithBaseURL(u string) *TelegramNotifier {
	t.baseURL = u
	return t
}

func (t *TelegramNotifier) Name() string { return "telegram" }

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{ChatID: t.chatID, Text: telegramText(alert), ParseMode: "MarkdownV2"}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	if err := postJSON(ctx, t.client, url, msg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	slog.DebugContext(ctx, "telegram alert sent", "title", alert.Title)
	return nil
}

func marker(alert Alert) string {
	switch {
	case alert.Level == AlertCritical:
		return "🚨"
	case alert.Level == AlertWarning:
		return "⚠️"
	case alert.Action == model.ActionBuy:
		return "🟢"
	case alert.Action == model.ActionSell:
		return "🔴"
	}
	return "ℹ️"
}

// telegramText renders the alert as MarkdownV2: a bold title line, the
// message, and for signal alerts a price line.
func telegramText(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n%s", marker(alert), escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))
	if alert.Action == model.ActionBuy || alert.Action == model.ActionSell {
		b.WriteString("\n\n")
		b.WriteString(escapeMarkdown(fmt.Sprintf("%s @ %.2f", alert.Symbol, alert.Price)))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeMarkdown escapes the MarkdownV2 reserved characters.
func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
