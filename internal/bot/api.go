package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// API is the slice of the Discord REST surface the handlers need.
type API interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	// MessageAuthor returns the author id of a message and whether the
	// author is a bot.
	MessageAuthor(ctx context.Context, channelID, messageID string) (string, bool, error)
	SendMessage(ctx context.Context, channelID, content string) error
}

// SessionAPI implements API over a discordgo session.
type SessionAPI struct {
	session *discordgo.Session
}

func NewSessionAPI(session *discordgo.Session) *SessionAPI {
	return &SessionAPI{session: session}
}

func (a *SessionAPI) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

func (a *SessionAPI) Timeout(ctx context.Context, guildID, userID string, until time.Time) error {
	if err := a.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("timeout %s: %w", userID, err)
	}
	return nil
}

func (a *SessionAPI) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := a.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

func (a *SessionAPI) MessageAuthor(ctx context.Context, channelID, messageID string) (string, bool, error) {
	msg, err := a.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return "", false, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	if msg.Author == nil {
		return "", false, fmt.Errorf("message %s has no author", messageID)
	}
	return msg.Author.ID, msg.Author.Bot, nil
}

func (a *SessionAPI) SendMessage(ctx context.Context, channelID, content string) error {
	if _, err := a.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
