// Package telegram posts workflow status snapshots to a Telegram chat.
// It is a pure presentation collaborator: it renders what the engine
// reports and never drives the workflow itself.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/format"
	"github.com/waymark-dev/waymark/internal/store"
)

// StatusSource answers inbound /status queries. The instance manager
// implements it.
type StatusSource interface {
	List() ([]*store.Document, error)
	Status(id string) (string, engine.Snapshot, error)
}

// Notifier sends one message per workflow transition to a fixed chat.
type Notifier struct {
	bot    *bot.Bot
	chatID int64
	source StatusSource
}

// NewNotifier creates the bot client. The token is validated lazily on
// the first send.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create tg bot: %w", err)
	}
	return &Notifier{bot: b, chatID: chatID}, nil
}

// Notify renders the snapshot and posts it.
func (n *Notifier) Notify(workflowName string, snap engine.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	text := format.ToTelegramHTML(format.RenderStatus(workflowName, snap))
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	return err
}

// EnableStatusQueries registers the /status command: it replies with the
// position of the most recently updated instance.
func (n *Notifier) EnableStatusQueries(src StatusSource) {
	n.source = src
	n.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, n.handleStatus)
}

// Start begins long polling for inbound commands. It blocks until the
// context is cancelled; callers that only push notifications never call it.
func (n *Notifier) Start(ctx context.Context) {
	n.bot.Start(ctx)
}

func (n *Notifier) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.ID != n.chatID {
		return
	}

	text := "No workflow instances yet."
	if docs, err := n.source.List(); err == nil && len(docs) > 0 {
		if name, snap, err := n.source.Status(docs[0].ID); err == nil {
			text = format.ToTelegramHTML(format.RenderStatus(name, snap))
		}
	}

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
}
