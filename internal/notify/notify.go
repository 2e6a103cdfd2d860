// Package notify avisa a equipe da Defesa Civil sobre alertas prioritários.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier envia avisos para canais externos.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Message é o aviso enviado ao canal.
type Message struct {
	Title    string
	Text     string
	Severity string
}

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SeverityForPriority converte a prioridade do alerta (1-4) em severidade.
func SeverityForPriority(priority int) string {
	switch {
	case priority >= 4:
		return SeverityCritical
	case priority >= 3:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// NoopNotifier descarta os avisos.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Message) error { return nil }

type SlackNotifier struct {
	webhookURL string
	client     *resty.Client
}

// NewSlackNotifier devolve nil quando o webhook não está configurado.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(5 * time.Second),
	}
}

func (s *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if s == nil || s.webhookURL == "" {
		return errors.New("notify: slack não configurado")
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"text": formatSlackMessage(msg)}).
		Post(s.webhookURL)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("notify: slack respondeu %d", resp.StatusCode())
	}
	return nil
}

func formatSlackMessage(msg Message) string {
	emoji := ":information_source:"
	switch msg.Severity {
	case SeverityWarning:
		emoji = ":warning:"
	case SeverityCritical:
		emoji = ":rotating_light:"
	}
	if msg.Title != "" {
		return emoji + " *" + msg.Title + "*\n" + msg.Text
	}
	return emoji + " " + msg.Text
}
