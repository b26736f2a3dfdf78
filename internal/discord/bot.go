package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Bot implements Session on top of a discordgo gateway session.
type Bot struct {
	sess *discordgo.Session
	log  zerolog.Logger

	// Optional restriction: when non-empty, only these guilds are updated.
	allowed map[string]bool

	readyCh chan struct{}
}

func NewBot(token string, guildIDs []string, log zerolog.Logger) (*Bot, error) {
	sess, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	// GuildMembers is needed to resolve our own member for nickname edits.
	sess.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	b := &Bot{
		sess:    sess,
		log:     log.With().Str("component", "discord").Logger(),
		readyCh: make(chan struct{}),
	}
	if len(guildIDs) > 0 {
		b.allowed = make(map[string]bool, len(guildIDs))
		for _, id := range guildIDs {
			b.allowed[id] = true
		}
	}
	sess.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("gateway ready")
		close(b.readyCh)
	})
	return b, nil
}

// Open connects the gateway and blocks until the ready event or ctx expiry.
func (b *Bot) Open(ctx context.Context) error {
	if err := b.sess.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	select {
	case <-b.readyCh:
		return nil
	case <-ctx.Done():
		_ = b.sess.Close()
		return fmt.Errorf("waiting for discord ready: %w", ctx.Err())
	}
}

func (b *Bot) Close() error { return b.sess.Close() }

func (b *Bot) Destinations() []Destination {
	var out []Destination
	for _, g := range b.sess.State.Guilds {
		if b.allowed != nil && !b.allowed[g.ID] {
			continue
		}
		out = append(out, Destination{ID: g.ID, Name: g.Name})
	}
	return out
}

func (b *Bot) Destination(id string) (Destination, bool) {
	if b.allowed != nil && !b.allowed[id] {
		return Destination{}, false
	}
	g, err := b.sess.State.Guild(id)
	if err != nil {
		return Destination{}, false
	}
	return Destination{ID: g.ID, Name: g.Name}, true
}

// Capabilities reads the live permission state for the bot's own member in
// the guild. Nickname edits need ChangeNickname or ManageNicknames.
func (b *Bot) Capabilities(d Destination) Capabilities {
	perms, err := b.selfPermissions(d.ID)
	if err != nil {
		b.log.Debug().Str("guild", d.ID).Err(err).Msg("could not resolve self permissions")
		return Capabilities{}
	}
	can := perms&(discordgo.PermissionChangeNickname|discordgo.PermissionManageNicknames) != 0
	return Capabilities{CanEditLabel: can}
}

func (b *Bot) selfPermissions(guildID string) (int64, error) {
	if b.sess.State.User == nil {
		return 0, errors.New("no self user yet")
	}
	selfID := b.sess.State.User.ID

	guild, err := b.sess.State.Guild(guildID)
	if err != nil {
		return 0, err
	}
	member, err := b.sess.State.Member(guildID, selfID)
	if err != nil {
		// State miss; go to the API once.
		member, err = b.sess.GuildMember(guildID, selfID)
		if err != nil {
			return 0, err
		}
	}

	if guild.OwnerID == selfID {
		return discordgo.PermissionAll, nil
	}
	var perms int64
	for _, role := range guild.Roles {
		if role.ID == guild.ID { // @everyone
			perms |= role.Permissions
		}
		for _, id := range member.Roles {
			if role.ID == id {
				perms |= role.Permissions
			}
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll, nil
	}
	return perms, nil
}

// SetLabel updates the bot's nickname in one guild.
func (b *Bot) SetLabel(ctx context.Context, d Destination, text, reason string) error {
	err := b.sess.GuildMemberNickname(d.ID, "@me", text,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("set nickname in %s: %w", d.ID, ErrPermissionDenied)
	}
	return fmt.Errorf("set nickname in %s: %w", d.ID, err)
}

// SetStatus updates the bot's presence, visible across all guilds.
func (b *Bot) SetStatus(text string) error {
	return b.sess.UpdateGameStatus(0, text)
}

// interface check
var _ Session = (*Bot)(nil)

// ReadyTimeout bounds how long Open callers should wait for the gateway
// ready event.
const ReadyTimeout = 60 * time.Second
