// Package discord mirrors workflow status snapshots into a Discord
// channel, as a presentation collaborator alongside the Telegram one.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/format"
)

// Notifier posts transition messages to a fixed channel.
type Notifier struct {
	session   *discordgo.Session
	channelID string
}

// NewNotifier opens a Discord session for the given bot token.
func NewNotifier(token, channelID string) (*Notifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}
	return &Notifier{session: session, channelID: channelID}, nil
}

// Notify renders the snapshot as plain Markdown and posts it.
func (n *Notifier) Notify(workflowName string, snap engine.Snapshot) error {
	text := format.ToDiscordMarkdown(format.RenderStatus(workflowName, snap))
	_, err := n.session.ChannelMessageSend(n.channelID, text)
	return err
}

// Close shuts the Discord session down.
func (n *Notifier) Close() error {
	return n.session.Close()
}
