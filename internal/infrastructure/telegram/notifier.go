package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"WerchterMonitor/internal/ports"
)

const (
	// DefaultSessionTTL is how long a bot session is reused before it is rebuilt.
	DefaultSessionTTL = time.Hour
	// DefaultTimeout bounds every Bot API request.
	DefaultTimeout = 30 * time.Second
)

// Config wires the bot credentials and transport settings.
type Config struct {
	BotToken   string
	ChatID     string
	APIURL     string
	Timeout    time.Duration
	SessionTTL time.Duration
}

// Notifier sends messages to a Telegram chat. The bot session is created on
// first use, rebuilt once it is older than the TTL, and torn down on Reset.
type Notifier struct {
	cfg    Config
	to     tele.Recipient
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	bot       *tele.Bot
	client    *http.Client
	createdAt time.Time
}

var _ ports.Messenger = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. No network traffic
// happens until the first send.
func NewNotifier(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.BotToken) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram notifier misconfigured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		to:     recipient(strings.TrimSpace(cfg.ChatID)),
		logger: logger,
		now:    time.Now,
	}, nil
}

// SendText posts a Markdown message.
func (n *Notifier) SendText(ctx context.Context, text string) error {
	return n.send(ctx, text)
}

// SendPhoto posts an image by URL with a Markdown caption.
func (n *Notifier) SendPhoto(ctx context.Context, photoURL, caption string) error {
	return n.send(ctx, &tele.Photo{File: tele.FromURL(photoURL), Caption: caption})
}

func (n *Notifier) send(ctx context.Context, what any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bot, err := n.acquire()
	if err != nil {
		return err
	}

	if _, err := bot.Send(n.to, what, &tele.SendOptions{ParseMode: tele.ModeMarkdown}); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// acquire returns the live session, creating or refreshing it as needed.
func (n *Notifier) acquire() (*tele.Bot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bot != nil && n.now().Sub(n.createdAt) <= n.cfg.SessionTTL {
		return n.bot, nil
	}
	if n.bot != nil {
		n.logger.Info("telegram session expired, reconnecting")
		n.teardownLocked()
	}

	client := &http.Client{Timeout: n.cfg.Timeout}
	bot, err := tele.NewBot(tele.Settings{
		URL:    n.cfg.APIURL,
		Token:  n.cfg.BotToken,
		Client: client,
		OnError: func(err error, _ tele.Context) {
			n.logger.Error("telebot error", "error", err)
		},
	})
	if err != nil {
		client.CloseIdleConnections()
		return nil, fmt.Errorf("telegram connect: %w", err)
	}

	n.bot = bot
	n.client = client
	n.createdAt = n.now()
	n.logger.Info("telegram session initialized", "bot", bot.Me.Username)
	return bot, nil
}

// Reset drops the current session. Safe to call at any time.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.teardownLocked()
}

// Close releases the session; the notifier can still be reused afterwards.
func (n *Notifier) Close() error {
	n.Reset()
	return nil
}

func (n *Notifier) teardownLocked() {
	if n.bot == nil {
		return
	}
	if n.client != nil {
		n.client.CloseIdleConnections()
	}
	n.bot = nil
	n.client = nil
	n.createdAt = time.Time{}
	n.logger.Info("telegram session released")
}

// recipient addresses a chat by numeric id or @channel username.
type recipient string

func (r recipient) Recipient() string { return string(r) }
