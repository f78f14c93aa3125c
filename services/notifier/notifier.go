package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"now-playing-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultNtfyServer      = "https://ntfy.sh"
	DefaultTelegramAPIBase = "https://api.telegram.org"
)

// Notifier delivers an operator alert over one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, subject, message string) error
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// =============================================================================
// EMAIL NOTIFIER
// =============================================================================

type EmailNotifier struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	ToEmail      string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (e *EmailNotifier) Name() string { return "email" }

// Send ignores ctx cancellation; net/smtp has no context support.
func (e *EmailNotifier) Send(ctx context.Context, subject, message string) error {
	var auth smtp.Auth
	if e.SMTPUsername != "" {
		auth = smtp.PlainAuth("", e.SMTPUsername, e.SMTPPassword, e.SMTPHost)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.FromEmail, e.ToEmail, subject, message))

	send := e.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(e.SMTPHost+":"+e.SMTPPort, auth, e.FromEmail, []string{e.ToEmail}, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	log.Infof("%s Email notification sent to %s", logcolors.LogNotifier, e.ToEmail)
	return nil
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

type TelegramNotifier struct {
	BotToken   string
	ChatID     string
	APIBase    string
	HTTPClient *http.Client
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Send(ctx context.Context, subject, message string) error {
	base := t.APIBase
	if base == "" {
		base = DefaultTelegramAPIBase
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), t.BotToken)

	payload, err := json.Marshal(map[string]interface{}{
		"chat_id":    t.ChatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", subject, message),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClientOrDefault(t.HTTPClient).Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		return errors.New("sending telegram message: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	log.Infof("%s Telegram notification sent to chat %s", logcolors.LogNotifier, t.ChatID)
	return nil
}

// =============================================================================
// NTFY.SH NOTIFIER
// =============================================================================

type NtfyNotifier struct {
	Topic      string
	Server     string
	HTTPClient *http.Client
}

func (n *NtfyNotifier) Name() string { return "ntfy" }

func (n *NtfyNotifier) Send(ctx context.Context, subject, message string) error {
	server := n.Server
	if server == "" {
		server = DefaultNtfyServer
	}
	url := fmt.Sprintf("%s/%s", strings.TrimRight(server, "/"), n.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}
	req.Header.Set("Title", subject)
	req.Header.Set("Priority", "high")
	req.Header.Set("Tags", "warning")

	resp, err := httpClientOrDefault(n.HTTPClient).Do(req)
	if err != nil {
		return fmt.Errorf("sending ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	log.Infof("%s Ntfy notification sent to topic %s", logcolors.LogNotifier, n.Topic)
	return nil
}
