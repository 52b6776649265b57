package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gateway/internal/models"
	"gateway/internal/permissions"
)

// handleMessage is the entry point for new and edited messages. It resolves
// the registration state of the chat before any classification: unknown group
// chats enter the registration flow, chats mid-registration only buffer.
func (d *Dispatcher) handleMessage(msg *tgbotapi.Message) {
	isGroup := msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()

	if isGroup && !d.chats.Contains(msg.Chat.ID) {
		if d.settings.LegacyMigration && d.takeLegacy(msg.Chat.ID) {
			d.spawn(func() { d.replayLegacy(msg) })
			return
		}

		d.regMu.Lock()
		_, inProgress := d.regBuffers[msg.Chat.ID]
		if !inProgress {
			d.regBuffers[msg.Chat.ID] = nil
			d.logger.Info("Received message for unknown chat, starting registration",
				zap.Int64("chat_id", msg.Chat.ID))
		}
		d.regBuffers[msg.Chat.ID] = append(d.regBuffers[msg.Chat.ID], msg)
		d.regMu.Unlock()

		if !inProgress {
			d.spawn(func() { d.registerNewChat(msg) })
		}
		return
	}

	d.regMu.Lock()
	if _, ok := d.regBuffers[msg.Chat.ID]; ok {
		d.regBuffers[msg.Chat.ID] = append(d.regBuffers[msg.Chat.ID], msg)
		d.regMu.Unlock()
		return
	}
	d.regMu.Unlock()

	if isGroup {
		chat := d.chats.Get(msg.Chat.ID)
		if chat == nil {
			return
		}
		// Membership notices still pass for inactive chats, or the bot
		// rejoining a disabled chat could never re-enable it.
		isMembership := len(msg.NewChatMembers) > 0 || msg.LeftChatMember != nil
		if chat.Status != models.ChatActive && !isMembership {
			d.logger.Debug("Dropping message for inactive chat", zap.Int64("chat_id", msg.Chat.ID))
			return
		}
	}

	switch {
	case msg.Text != "" || len(msg.Photo) > 0 || msg.Audio != nil || msg.Video != nil ||
		msg.Voice != nil || msg.Document != nil || msg.Sticker != nil:
		d.spawn(func() { d.handleBaseMessage(msg) })
	case len(msg.NewChatMembers) > 0:
		d.spawn(func() { d.handleMemberJoin(msg) })
	case msg.LeftChatMember != nil:
		d.spawn(func() { d.handleMemberLeft(msg) })
	case msg.NewChatTitle != "" || len(msg.NewChatPhoto) > 0 || msg.DeleteChatPhoto ||
		msg.MigrateToChatID != 0 || msg.MigrateFromChatID != 0:
		d.spawn(func() { d.handleChatDetailUpdate(msg) })
	case msg.GroupChatCreated || msg.SuperGroupChatCreated || msg.ChannelChatCreated:
		d.spawn(func() { d.handleChatCreation(msg) })
	case msg.Location != nil || msg.Contact != nil || msg.Venue != nil || msg.Game != nil ||
		msg.VideoNote != nil || msg.Invoice != nil || msg.SuccessfulPayment != nil ||
		msg.ConnectedWebsite != "" || msg.PinnedMessage != nil || msg.Poll != nil ||
		msg.Dice != nil || msg.MessageAutoDeleteTimerChanged != nil ||
		msg.ProximityAlertTriggered != nil || msg.VoiceChatScheduled != nil ||
		msg.VoiceChatStarted != nil || msg.VoiceChatEnded != nil ||
		msg.VoiceChatParticipantsInvited != nil:
		// Content kinds the pipeline has no use for.
		return
	default:
		d.logger.Info("Received message kind that has no handler", zap.Int64("chat_id", msg.Chat.ID))
	}
}

// handleBaseMessage republishes a content message with the resolved bot and
// sender profiles attached.
func (d *Dispatcher) handleBaseMessage(msg *tgbotapi.Message) {
	chat := d.chats.Get(msg.Chat.ID)
	if chat == nil {
		return
	}
	if msg.From == nil {
		d.logger.Warn("Received message with no sender", zap.Int64("chat_id", msg.Chat.ID))
		return
	}
	if msg.Text == "" {
		d.logger.Warn("Received message with no text", zap.Int64("chat_id", msg.Chat.ID))
		return
	}

	if msg.EditDate == 0 {
		d.logger.Debug("New message", zap.Int64("chat_id", msg.Chat.ID))
	} else {
		d.logger.Debug("Edited message", zap.Int64("chat_id", msg.Chat.ID))
	}

	botProfile, _ := d.perms.BotProfile(msg.Chat.ID)

	sender := msg.From.ID
	if msg.SenderChat != nil {
		sender = msg.SenderChat.ID
	}

	category := models.CategoryBase
	route := d.routes.Base
	if strings.HasPrefix(msg.Text, chat.CommandPrefix) {
		category = models.CategoryCommand
		route = d.routes.Command
	}

	d.publishEnvelope(chat, category, botProfile, d.perms.Resolve(msg.Chat.ID, sender), msg, route)
}

// handleMemberJoin processes the platform's members-added notice. The bot
// joining re-activates a disabled chat; everyone else is republished as a
// member-join event.
func (d *Dispatcher) handleMemberJoin(msg *tgbotapi.Message) {
	chat := d.chats.Get(msg.Chat.ID)
	if chat == nil {
		return
	}

	if chat.ConfigParam("DeleteSystemMessages", "false") == "true" {
		if _, err := d.client.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			d.logger.Warn("Failed to delete join notice", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}

	botProfile, _ := d.perms.BotProfile(msg.Chat.ID)

	for i := range msg.NewChatMembers {
		member := &msg.NewChatMembers[i]

		if member.ID == d.perms.BotID() {
			reenabled := false
			if chat.Status == models.ChatDisabled {
				updated := *chat
				updated.Status = models.ChatActive
				if err := d.chatRepo.UpdateChat(&updated); err != nil {
					d.logger.Error("Failed to enable chat", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
					d.notifyControlChat(fmt.Sprintf("Can't enable chat %d: %v", msg.Chat.ID, err))
				} else {
					chat = &updated
					d.chats.Set(chat)
					d.queues.EnsureGroupQueue(chat)
					reenabled = true
				}
			}
			// Registration already welcomed a brand-new chat; only the
			// disabled-to-active transition welcomes here.
			if d.perms.ResolveBot(msg.Chat.ID) && reenabled {
				if _, err := d.client.Send(tgbotapi.NewMessage(msg.Chat.ID, welcomeMessage)); err != nil {
					d.logger.Warn("Failed to send welcome", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
				}
			}
			continue
		}

		d.publishEnvelope(chat, models.CategoryMemberJoin, botProfile,
			d.perms.Resolve(msg.Chat.ID, member.ID), msg, d.routes.MemberJoin)
	}
}

// handleMemberLeft mirrors handleMemberJoin: the bot leaving disables the
// chat, anyone else just loses their cached profile.
func (d *Dispatcher) handleMemberLeft(msg *tgbotapi.Message) {
	chat := d.chats.Get(msg.Chat.ID)
	if chat == nil || msg.LeftChatMember == nil {
		return
	}

	if chat.ConfigParam("DeleteSystemMessages", "false") == "true" {
		if _, err := d.client.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			d.logger.Warn("Failed to delete leave notice", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}

	if msg.LeftChatMember.ID == d.perms.BotID() {
		d.perms.EvictBot(msg.Chat.ID)

		updated := *chat
		updated.Status = models.ChatDisabled
		if err := d.chatRepo.UpdateChat(&updated); err != nil {
			d.logger.Error("Failed to disable chat", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
			d.notifyControlChat(fmt.Sprintf("Can't disable chat %d: %v", msg.Chat.ID, err))
			return
		}
		d.chats.Set(&updated)
		d.queues.RemoveGroupQueue(msg.Chat.ID)
		return
	}

	d.perms.EvictUser(msg.Chat.ID, msg.LeftChatMember.ID)
}

// handleChatDetailUpdate keeps the stored title current when the chat's
// details change. Migration markers are only logged here; the migration
// itself is driven by the new chat id entering registration.
func (d *Dispatcher) handleChatDetailUpdate(msg *tgbotapi.Message) {
	chat := d.chats.Get(msg.Chat.ID)
	if chat == nil {
		return
	}

	if msg.NewChatTitle != "" && msg.NewChatTitle != chat.Title {
		updated := *chat
		updated.Title = msg.NewChatTitle
		if err := d.chatRepo.UpdateChat(&updated); err != nil {
			d.logger.Warn("Failed to persist chat title", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
			return
		}
		d.chats.Set(&updated)
	}
	d.logger.Debug("Chat detail update", zap.Int64("chat_id", msg.Chat.ID))
}

func (d *Dispatcher) handleChatCreation(msg *tgbotapi.Message) {
	d.logger.Info("Chat creation notice", zap.Int64("chat_id", msg.Chat.ID))
	if !d.chats.Contains(msg.Chat.ID) {
		d.registerNewChat(msg)
	}
}

// handleMemberUpdate recomputes the affected principal's cached profile from
// the promotion/demotion payload. Statuses that carry no role leave the
// profile absent so resolution falls through to the chat default.
func (d *Dispatcher) handleMemberUpdate(update *tgbotapi.ChatMemberUpdated) {
	if !d.chats.Contains(update.Chat.ID) {
		return
	}

	member := update.NewChatMember
	profile, ok := permissions.BuildProfile(member)

	if member.User != nil && member.User.ID == d.perms.BotID() {
		if ok && member.IsAdministrator() {
			d.perms.SetBotProfile(update.Chat.ID, profile)
		} else {
			d.perms.EvictBot(update.Chat.ID)
		}
		return
	}

	if member.User == nil {
		return
	}
	if ok {
		d.perms.SetUserProfile(update.Chat.ID, member.User.ID, profile)
	} else {
		d.perms.EvictUser(update.Chat.ID, member.User.ID)
	}
}

func (d *Dispatcher) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	d.logger.Debug("Callback query received", zap.String("data", query.Data))
}

func (d *Dispatcher) handleJoinRequest(request *tgbotapi.ChatJoinRequest) {
	if !d.chats.Contains(request.Chat.ID) {
		return
	}
	d.logger.Debug("Chat join request",
		zap.Int64("chat_id", request.Chat.ID), zap.Int64("user_id", request.From.ID))
}

// publishEnvelope serializes and publishes one QueueMessage. Marshal errors
// and publish errors end here; the handler is a terminal sink.
func (d *Dispatcher) publishEnvelope(chat *models.Chat, category models.QueueCategory,
	bot, user models.PermissionProfile, payload *tgbotapi.Message, route Route) {

	envelope := models.QueueMessage{
		Chat:            *chat,
		Platform:        "telegram",
		Category:        category,
		BotPermissions:  bot,
		UserPermissions: user,
		Payload:         payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		d.logger.Error("Failed to serialize envelope",
			zap.Int64("chat_id", chat.TelegramChatID), zap.Error(err))
		return
	}
	if err := d.publisher.Publish(d.ctx, route.Exchange, route.RoutingKey, body); err != nil {
		d.logger.Error("Failed to publish envelope",
			zap.String("exchange", route.Exchange), zap.String("routing_key", route.RoutingKey), zap.Error(err))
	}
}
