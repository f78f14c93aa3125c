package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"now-playing-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// Default cooldown between alerts of the same type
const DefaultAlertCooldown = 15 * time.Minute

type EventType string

const (
	EventCircuitBreakerOpen      EventType = "circuit_breaker_open"
	EventCircuitBreakerRecovered EventType = "circuit_breaker_recovered"
	EventServerStarted           EventType = "server_started"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// Event is something an operator may want to hear about.
type Event struct {
	Type     EventType
	Severity Severity
	Name     string // breaker name
	Failures int
	Cooldown time.Duration
	Port     string
}

// AlertHandler formats events and fans them out to every notifier,
// suppressing repeats of the same event type inside the cooldown.
type AlertHandler struct {
	notifiers        []Notifier
	cooldowns        map[EventType]time.Time
	cooldownDuration time.Duration
	now              func() time.Time
	mu               sync.Mutex
}

// AlertConfig holds configuration for the alert handler
type AlertConfig struct {
	Notifiers        []Notifier
	CooldownDuration time.Duration
}

func NewAlertHandler(config AlertConfig) *AlertHandler {
	cooldown := config.CooldownDuration
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}

	return &AlertHandler{
		notifiers:        config.Notifiers,
		cooldowns:        make(map[EventType]time.Time),
		cooldownDuration: cooldown,
		now:              time.Now,
	}
}

// Notifiers returns the names of the configured channels.
func (h *AlertHandler) Notifiers() []string {
	names := make([]string, 0, len(h.notifiers))
	for _, n := range h.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Handle sends the alert for event and reports how many notifiers accepted it.
func (h *AlertHandler) Handle(ctx context.Context, event Event) int {
	subject, message := formatAlert(event)
	if subject == "" {
		return 0
	}

	if len(h.notifiers) == 0 {
		log.Debugf("%s No notifiers configured, skipping alert: %s", logcolors.LogNotifier, subject)
		return 0
	}

	if !h.shouldAlert(event.Type) {
		log.Debugf("%s Skipping alert for %s (cooldown active)", logcolors.LogNotifier, event.Type)
		return 0
	}

	log.Infof("%s Sending alert: %s", logcolors.LogNotifier, subject)

	sent := 0
	for _, n := range h.notifiers {
		if err := n.Send(ctx, subject, message); err != nil {
			log.Errorf("%s Failed to send alert via %s: %v", logcolors.LogNotifier, n.Name(), err)
			continue
		}
		sent++
	}

	if sent > 0 {
		log.Infof("%s Alert sent via %d/%d notifiers", logcolors.LogNotifier, sent, len(h.notifiers))
	}
	return sent
}

func (h *AlertHandler) shouldAlert(eventType EventType) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	lastAlert, exists := h.cooldowns[eventType]
	if !exists || now.Sub(lastAlert) >= h.cooldownDuration {
		h.cooldowns[eventType] = now
		return true
	}
	return false
}

// ResetCooldown forgets when eventType was last sent.
func (h *AlertHandler) ResetCooldown(eventType EventType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cooldowns, eventType)
}

func formatAlert(event Event) (subject, message string) {
	switch event.Type {
	case EventCircuitBreakerOpen:
		subject = "Circuit Breaker OPEN"
		message = fmt.Sprintf(
			"The %s circuit breaker has tripped after %d consecutive failures.\n\n"+
				"Token refreshes will be skipped for %s.\n\n"+
				"Action: Check the Spotify app credentials and re-run setup if the refresh token was revoked.",
			event.Name, event.Failures, event.Cooldown)

	case EventCircuitBreakerRecovered:
		subject = "Circuit Breaker Recovered"
		message = fmt.Sprintf("The %s circuit breaker has recovered and is now operational.", event.Name)

	case EventServerStarted:
		subject = "Server Started"
		message = fmt.Sprintf("Now playing relay started on port %s.", event.Port)

	default:
		return "", ""
	}

	switch event.Severity {
	case SeverityCritical:
		subject = "🚨 " + subject
	case SeverityWarning:
		subject = "⚠️ " + subject
	case SeverityInfo:
		subject = "ℹ️ " + subject
	}
	return subject, message
}
