// Package permissions resolves and caches capability profiles for bots and
// users per chat. Population is the only mutation path; eviction is driven by
// the join/leave and membership-update handlers, never by expiry.
package permissions

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gateway/internal/models"
)

const adminWarning = "Bot must be set as Administrator to work properly"

// Client is the slice of the platform client the cache needs.
type Client interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Cache holds resolved permission profiles keyed by (chat, user), with the
// bot's own profiles kept apart. Concurrent resolutions of the same key may
// issue duplicate platform queries; that is wasteful but idempotent.
type Cache struct {
	client Client
	logger *zap.Logger
	botID  int64

	store *profileStore
}

func NewCache(client Client, botID int64, logger *zap.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
		botID:  botID,
		store:  newProfileStore(),
	}
}

// Resolve returns the permission profile for userID in chatID, consulting the
// cache layers in order: exact entry, chat default entry, platform query.
// A zero userID means no principal context and yields an all-false profile.
func (c *Cache) Resolve(chatID, userID int64) models.PermissionProfile {
	if userID == 0 {
		return models.PermissionProfile{}
	}

	if p, ok := c.store.user(chatID, userID); ok {
		return p
	}
	if p, ok := c.store.user(chatID, 0); ok {
		return p
	}

	member, err := c.client.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		c.logger.Warn("Failed to fetch chat member",
			zap.Int64("chat_id", chatID), zap.Int64("user_id", userID), zap.Error(err))
		return models.PermissionProfile{}
	}

	if p, ok := BuildProfile(member); ok {
		p.ChatID = chatID
		p.UserID = userID
		c.store.setUser(chatID, userID, p)
		return p
	}

	// Plain members, the creator and former members all share the chat-wide
	// default, queried once per chat and cached under user id 0.
	chat, err := c.client.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		c.logger.Warn("Failed to fetch chat for default permissions",
			zap.Int64("chat_id", chatID), zap.Error(err))
		return models.PermissionProfile{}
	}
	p := DefaultProfile(chat)
	p.ChatID = chatID
	c.store.setUser(chatID, 0, p)
	return p
}

// ResolveBot queries the bot's own membership in chatID. If the bot is an
// administrator its profile is cached and true is returned. Otherwise a
// one-time warning is posted into the chat and false is returned; the warning
// re-arms once the bot is seen as administrator again.
func (c *Cache) ResolveBot(chatID int64) bool {
	member, err := c.client.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: c.botID},
	})
	if err != nil {
		c.logger.Warn("Failed to fetch bot membership", zap.Int64("chat_id", chatID), zap.Error(err))
		return false
	}

	if p, ok := BuildProfile(member); ok && member.IsAdministrator() {
		p.ChatID = chatID
		p.UserID = c.botID
		c.store.setBot(chatID, p)
		return true
	}

	if c.store.markWarned(chatID) {
		if _, err := c.client.Send(tgbotapi.NewMessage(chatID, adminWarning)); err != nil {
			c.logger.Warn("Failed to send admin warning", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	return false
}

// BotProfile returns the cached bot profile for chatID, if any.
func (c *Cache) BotProfile(chatID int64) (models.PermissionProfile, bool) {
	return c.store.bot(chatID)
}

// SetBotProfile caches a bot profile built from a membership-update payload.
func (c *Cache) SetBotProfile(chatID int64, p models.PermissionProfile) {
	p.ChatID = chatID
	p.UserID = c.botID
	c.store.setBot(chatID, p)
}

// EvictBot drops the cached bot profile for chatID.
func (c *Cache) EvictBot(chatID int64) {
	c.store.evictBot(chatID)
}

// SetUserProfile caches a user profile built from a membership-update payload.
func (c *Cache) SetUserProfile(chatID, userID int64, p models.PermissionProfile) {
	p.ChatID = chatID
	p.UserID = userID
	c.store.setUser(chatID, userID, p)
}

// EvictUser drops the cached profile for (chatID, userID) so the next
// resolution falls through to the chat default.
func (c *Cache) EvictUser(chatID, userID int64) {
	c.store.evictUser(chatID, userID)
}

// BotID returns the principal id the cache treats as the bot itself.
func (c *Cache) BotID() int64 {
	return c.botID
}
