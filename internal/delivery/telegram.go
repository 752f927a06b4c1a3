// Package delivery pushes completed runs to subscribers: Telegram for
// alert notifications, websocket for the live feed.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier sends alert and report messages to a chat
// ⭐ SSOT: 텔레그램 발송은 여기서만
type TelegramNotifier struct {
	http     *httputil.Client
	baseURL  string
	botToken string
	chatID   string
	logger   *logger.Logger
}

// NewTelegram creates a notifier. With an empty token the notifier is
// disabled and every send is a silent no-op.
func NewTelegram(httpClient *httputil.Client, botToken, chatID string, log *logger.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		http:     httpClient,
		baseURL:  telegramAPIBase,
		botToken: botToken,
		chatID:   chatID,
		logger:   log.WithField("component", "telegram"),
	}
}

// Enabled reports whether credentials are configured
func (n *TelegramNotifier) Enabled() bool {
	return n.botToken != "" && n.chatID != ""
}

// SendAlerts sends one combined message for a run's alerts. No alerts,
// no message.
func (n *TelegramNotifier) SendAlerts(ctx context.Context, alerts []contracts.Alert) error {
	if !n.Enabled() || len(alerts) == 0 {
		return nil
	}
	return n.send(ctx, formatAlerts(alerts))
}

// SendReport sends the report summary
func (n *TelegramNotifier) SendReport(ctx context.Context, rep contracts.Report) error {
	if !n.Enabled() {
		return nil
	}
	return n.send(ctx, formatReport(rep))
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	body := map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}

	var resp telegramResponse
	status, err := n.http.PostJSON(ctx, url, nil, body, &resp)
	if err != nil {
		return fmt.Errorf("telegram send failed (status %d): %w", status, err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram rejected message: %s", resp.Description)
	}

	n.logger.WithField("chars", len(text)).Debug("Telegram message sent")
	return nil
}

// severityEmoji maps alert severity onto the message prefix
func severityEmoji(s contracts.Severity) string {
	switch s {
	case contracts.SeverityCritical:
		return "🔥"
	case contracts.SeverityHigh:
		return "🚨"
	case contracts.SeverityMedium:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// formatAlerts renders a run's alerts as one Markdown message, most severe
// first
func formatAlerts(alerts []contracts.Alert) string {
	ordered := append([]contracts.Alert(nil), alerts...)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Severity.Rank() > ordered[j-1].Severity.Rank(); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Market Alerts* (%d)\n", len(ordered))
	for _, a := range ordered {
		fmt.Fprintf(&b, "\n%s *%s*\n%s\n", severityEmoji(a.Severity), a.Title, a.Message)
	}
	return b.String()
}

// formatReport renders the report summary message
func formatReport(rep contracts.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n%s\n", rep.Title, rep.Summary)

	if len(rep.SignalsSummary.KeySignals) > 0 {
		b.WriteString("\n*Key signals*\n")
		for _, s := range rep.SignalsSummary.KeySignals {
			fmt.Fprintf(&b, "• %s: %s (%.2f)\n", s.Name, s.Direction, s.Score)
		}
	}
	return b.String()
}
