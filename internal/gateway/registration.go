package gateway

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gateway/internal/models"
)

// registerNewChat performs first contact with an unknown chat: it persists a
// new chat record owned by the chat's creator, then replays every message
// buffered while the lookup was in flight. A message carrying a
// migrated-from marker is a chat id change, not a new chat.
func (d *Dispatcher) registerNewChat(msg *tgbotapi.Message) {
	if msg.MigrateFromChatID != 0 {
		d.migrateChat(msg)
		return
	}

	d.logger.Info("Registering new chat", zap.Int64("chat_id", msg.Chat.ID))

	admins, err := d.client.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: msg.Chat.ID},
	})
	if err != nil {
		d.logger.Warn("Can't register chat: administrator lookup failed",
			zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		d.notifyControlChat(fmt.Sprintf("Can't register new chat %d: %v", msg.Chat.ID, err))
		d.discardBuffer(msg.Chat.ID)
		return
	}

	var creator *tgbotapi.ChatMember
	for i := range admins {
		if admins[i].IsCreator() {
			creator = &admins[i]
			break
		}
	}
	if creator == nil || creator.User == nil {
		d.logger.Warn("Can't register chat: no creator found", zap.Int64("chat_id", msg.Chat.ID))
		d.notifyControlChat(fmt.Sprintf("Can't register new chat %d since can't get creator", msg.Chat.ID))
		d.discardBuffer(msg.Chat.ID)
		return
	}

	locale := "en"
	if msg.From != nil && msg.From.LanguageCode != "" {
		locale = msg.From.LanguageCode
	}

	config := models.ConfigMap{}
	for k, v := range d.settings.ChatDefaults {
		config[k] = v
	}

	chat := &models.Chat{
		TelegramChatID:  msg.Chat.ID,
		Title:           msg.Chat.Title,
		Type:            msg.Chat.Type,
		ControlChatID:   d.settings.ControlChatID,
		Status:          models.ChatActive,
		CommandPrefix:   d.settings.CommandPrefix,
		OwnerID:         creator.User.ID,
		Locale:          locale,
		ProtocolVersion: ProtocolVersion,
	}
	chat.Config = config

	// A record left behind by an earlier protocol generation means this chat
	// is migrating to us rather than arriving for the first time.
	existing, err := d.chatRepo.GetChatByTelegramID(msg.Chat.ID)
	if err != nil {
		d.logger.Error("Can't register chat: lookup failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		d.notifyControlChat(fmt.Sprintf("Can't register new chat %d: %v", msg.Chat.ID, err))
		d.discardBuffer(msg.Chat.ID)
		return
	}
	rewelcome := existing != nil && existing.ProtocolVersion != ProtocolVersion
	if existing != nil {
		chat.Config = existing.Config
		chat.CommandPrefix = existing.CommandPrefix
		err = d.chatRepo.UpdateChat(chat)
	} else {
		err = d.chatRepo.CreateChat(chat)
	}
	if err != nil {
		d.logger.Error("Can't register chat: persistence failed",
			zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		d.notifyControlChat(fmt.Sprintf("Can't register new chat %d: %v", msg.Chat.ID, err))
		d.discardBuffer(msg.Chat.ID)
		return
	}

	d.chats.Set(chat)

	if d.perms.ResolveBot(msg.Chat.ID) {
		text := welcomeMessage
		if rewelcome {
			text = rewelcomeMessage
		}
		if _, err := d.client.Send(tgbotapi.NewMessage(msg.Chat.ID, text)); err != nil {
			d.logger.Warn("Failed to send welcome", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}

	d.queues.EnsureGroupQueue(chat)
	d.drainBuffer(msg.Chat.ID)
	d.logger.Info("Chat registered", zap.Int64("chat_id", msg.Chat.ID), zap.Int64("owner_id", chat.OwnerID))
}

// migrateChat rewrites the predecessor chat record to the new id issued by
// the platform, swaps the registry entries atomically and replays the new
// id's buffered messages. The welcome is sent only on first elevation: the
// bot gained manage-chat rights it did not hold under the old id.
func (d *Dispatcher) migrateChat(msg *tgbotapi.Message) {
	oldID := msg.MigrateFromChatID
	newID := msg.Chat.ID
	d.logger.Info("Migrating chat", zap.Int64("old_chat_id", oldID), zap.Int64("new_chat_id", newID))

	old := d.chats.Get(oldID)
	if old == nil {
		d.logger.Warn("Migration for unknown predecessor chat", zap.Int64("old_chat_id", oldID))
		d.discardBuffer(newID)
		return
	}

	moved := *old
	moved.TelegramChatID = newID
	if msg.Chat.Title != "" {
		moved.Title = msg.Chat.Title
	}
	moved.Type = msg.Chat.Type

	if err := d.chatRepo.UpdateChatID(oldID, newID); err != nil {
		d.logger.Error("Can't migrate chat: persistence failed",
			zap.Int64("old_chat_id", oldID), zap.Int64("new_chat_id", newID), zap.Error(err))
		d.notifyControlChat(fmt.Sprintf("Can't migrate chat %d to %d: %v", oldID, newID, err))
		d.discardBuffer(newID)
		return
	}
	if err := d.chatRepo.UpdateChat(&moved); err != nil {
		d.logger.Warn("Failed to refresh migrated chat record", zap.Int64("chat_id", newID), zap.Error(err))
	}

	hadManage := false
	if p, ok := d.perms.BotProfile(oldID); ok {
		hadManage = p.CanManageChat
	}

	d.chats.Rename(oldID, &moved)

	isAdmin := d.perms.ResolveBot(newID)
	nowManage := false
	if p, ok := d.perms.BotProfile(newID); ok {
		nowManage = p.CanManageChat
	}

	if !hadManage && isAdmin && nowManage {
		if _, err := d.client.Send(tgbotapi.NewMessage(newID, welcomeMessage)); err != nil {
			d.logger.Warn("Failed to send welcome", zap.Int64("chat_id", newID), zap.Error(err))
		}
	}
	d.perms.EvictBot(oldID)

	d.queues.RemoveGroupQueue(oldID)
	d.queues.EnsureGroupQueue(&moved)
	d.drainBuffer(newID)
	d.logger.Info("Chat migrated", zap.Int64("old_chat_id", oldID), zap.Int64("new_chat_id", newID))
}

// drainBuffer removes the registration buffer for chatID and replays its
// messages in arrival order. Take-and-delete happens inside the buffer lock
// so late appends either land before the drain or go through the normal path.
func (d *Dispatcher) drainBuffer(chatID int64) {
	d.regMu.Lock()
	pending := d.regBuffers[chatID]
	delete(d.regBuffers, chatID)
	d.regMu.Unlock()

	for _, msg := range pending {
		d.handleMessage(msg)
	}
}

// discardBuffer drops the registration buffer for chatID without replaying.
func (d *Dispatcher) discardBuffer(chatID int64) {
	d.regMu.Lock()
	n := len(d.regBuffers[chatID])
	delete(d.regBuffers, chatID)
	d.regMu.Unlock()
	if n > 0 {
		d.logger.Info("Discarded buffered messages for abandoned registration",
			zap.Int64("chat_id", chatID), zap.Int("count", n))
	}
}

// takeLegacy consumes chatID from the legacy allow-list. The first message of
// a legacy chat is redirected once; the replay then goes through the regular
// registration flow, which finds the old record and re-welcomes.
func (d *Dispatcher) takeLegacy(chatID int64) bool {
	d.legacyMu.Lock()
	defer d.legacyMu.Unlock()
	if !d.legacy[chatID] {
		return false
	}
	delete(d.legacy, chatID)
	return true
}

func (d *Dispatcher) replayLegacy(msg *tgbotapi.Message) {
	d.logger.Info("Replaying message for legacy chat", zap.Int64("chat_id", msg.Chat.ID))
	d.handleMessage(msg)
}
