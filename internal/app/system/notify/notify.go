// Package notify delivers verification messages. The queue notifier hands
// rendered emails to a RabbitMQ queue drained by the mail relay; the log
// notifier writes the link to the log for local development.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/mailer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultQueue is the queue the mail relay consumes.
const DefaultQueue = "notifications.email"

// TypeVerifyEmail tags verification messages on the queue.
const TypeVerifyEmail = "verify_email"

// Publisher sends a message body to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte, messageID string) error
}

// Config describes how links and messages are built.
type Config struct {
	Queue     string
	BaseURL   string
	SiteName  string
	VerifyTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.SiteName == "" {
		c.SiteName = "Team Registration"
	}
	if c.VerifyTTL <= 0 {
		c.VerifyTTL = 24 * time.Hour
	}
	return c
}

// Message is the JSON document placed on the queue.
type Message struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Email     mailer.Email `json:"email"`
	CreatedAt time.Time    `json:"created_at"`
}

// QueueNotifier publishes rendered verification emails.
type QueueNotifier struct {
	pub Publisher
	cfg Config
	log *zap.Logger
}

// NewQueueNotifier creates a notifier publishing through pub.
func NewQueueNotifier(pub Publisher, cfg Config, log *zap.Logger) *QueueNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueNotifier{pub: pub, cfg: cfg.withDefaults(), log: log}
}

// SendVerificationEmail renders the message and publishes it.
func (n *QueueNotifier) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	email, err := render(n.cfg, to, name, token)
	if err != nil {
		return err
	}
	msg := Message{
		ID:        uuid.NewString(),
		Type:      TypeVerifyEmail,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := n.pub.Publish(ctx, n.cfg.Queue, body, msg.ID); err != nil {
		return fmt.Errorf("publish verification email: %w", err)
	}
	n.log.Debug("verification email queued",
		zap.String("message_id", msg.ID),
		zap.String("queue", n.cfg.Queue))
	return nil
}

// LogNotifier writes the verification link to the log instead of sending it.
type LogNotifier struct {
	cfg Config
	log *zap.Logger
}

// NewLogNotifier creates a development notifier.
func NewLogNotifier(cfg Config, log *zap.Logger) *LogNotifier {
	return &LogNotifier{cfg: cfg.withDefaults(), log: log}
}

// SendVerificationEmail logs the link.
func (n *LogNotifier) SendVerificationEmail(_ context.Context, to, name, token string) error {
	n.log.Info("verification email (not sent)",
		zap.String("to", to),
		zap.String("name", name),
		zap.String("link", mailer.VerifyLink(n.cfg.BaseURL, token)))
	return nil
}

func render(cfg Config, to, name, token string) (mailer.Email, error) {
	return mailer.BuildVerificationEmail(to, mailer.VerificationEmailData{
		SiteName:   cfg.SiteName,
		Name:       name,
		VerifyLink: mailer.VerifyLink(cfg.BaseURL, token),
		ExpiresIn:  humanize(cfg.VerifyTTL),
	})
}

func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
