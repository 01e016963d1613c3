// Package bot connects the Discord gateway to the moderation and community
// services.
package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/activity"
	"github.com/ishyv/tx-discord-bot-sub008/internal/audit"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod"
	"github.com/ishyv/tx-discord-bot-sub008/internal/autorole"
	"github.com/ishyv/tx-discord-bot-sub008/internal/ratelimit"
	"github.com/ishyv/tx-discord-bot-sub008/internal/reputation"
	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
)

// Intents are the gateway intents the handlers rely on.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

const handlerTimeout = 30 * time.Second

// Services are the domain services the handlers drive. A nil service
// disables its feature. JoinBurst counts joins per guild and flags raids
// above its limit; Reports feeds the periodic audit digest.
type Services struct {
	Automod    *automod.Pipeline
	Enforcer   *automod.Enforcer
	JoinBurst  *ratelimit.Limiter
	Activity   *activity.Tracker
	Reputation *reputation.Service
	Autoroles  *autorole.Engine
	Audit      *audit.Logger
	Reports    audit.Lister
}

type Options struct {
	// ReputationEmoji is the reaction that gives reputation, either a
	// unicode emoji or name:id for custom emoji.
	ReputationEmoji string
	// AuditChannelID mirrors WARN and CRIT audit entries when set.
	AuditChannelID string
}

type Bot struct {
	session *discordgo.Session
	api     API
	svc     Services
	opts    Options
	logger  *zap.Logger
}

// NewSession creates a gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = Intents
	return session, nil
}

func New(session *discordgo.Session, api API, svc Services, opts Options, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{session: session, api: api, svc: svc, opts: opts, logger: logger}
	if svc.Audit != nil && opts.AuditChannelID != "" {
		svc.Audit.SetNotifier(b.notifyAudit)
	}
	return b
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onMessageReactionAdd)
	return b.session.Open()
}

func (b *Bot) Close() {
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.handleMessage(ctx, messageFromEvent(msg.Message))
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.GuildID == "" || event.User == nil || event.User.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.handleJoin(ctx, event.GuildID, event.User.ID)
}

func (b *Bot) onMessageReactionAdd(_ *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event.MessageReaction == nil || event.GuildID == "" {
		return
	}
	if event.Member != nil && event.Member.User != nil && event.Member.User.Bot {
		return
	}
	if !b.isReputationEmoji(event.Emoji) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.handleReputationReaction(ctx, event.GuildID, event.ChannelID, event.MessageID, event.UserID)
}

func (b *Bot) isReputationEmoji(emoji discordgo.Emoji) bool {
	want := b.opts.ReputationEmoji
	return want != "" && (emoji.Name == want || emoji.APIName() == want)
}

func messageFromEvent(m *discordgo.Message) automod.Message {
	msg := automod.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Content:   m.Content,
		Mentions:  len(m.Mentions) + len(m.MentionRoles),
		At:        m.Timestamp,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, automod.Attachment{
			URL:         att.URL,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        int64(att.Size),
		})
	}
	return msg
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	if entry.Level == audit.LevelInfo {
		return
	}
	content := "[" + entry.Level + "] " + entry.Event
	if entry.UserID != "" {
		content += " <@" + entry.UserID + ">"
	}
	if entry.Details != "" {
		content += ": " + entry.Details
	}
	if err := b.api.SendMessage(ctx, b.opts.AuditChannelID, content); err != nil {
		b.logger.Warn("audit notify failed", zap.Error(err))
	}
}
