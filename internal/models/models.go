package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatStatus is the lifecycle state of a registered chat.
type ChatStatus string

const (
	ChatActive              ChatStatus = "active"
	ChatDisabled            ChatStatus = "disabled"
	ChatPendingRegistration ChatStatus = "pending_registration"
)

// ConfigMap is a per-chat key/value configuration bag, stored as JSONB.
type ConfigMap map[string]string

func (m ConfigMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *ConfigMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = ConfigMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported config scan type %T", src)
	}
}

// Chat represents one destination on the platform (group, channel or private
// conversation). The Telegram chat id is the primary key; it only changes
// through a migration, which removes the old record and inserts the new one.
type Chat struct {
	TelegramChatID  int64      `db:"telegram_chat_id" json:"telegram_chat_id"`
	Title           string     `db:"title" json:"title"`
	Type            string     `db:"type" json:"type"`
	ControlChatID   int64      `db:"control_chat_id" json:"control_chat_id"`
	Status          ChatStatus `db:"status" json:"status"`
	CommandPrefix   string     `db:"command_prefix" json:"command_prefix"`
	OwnerID         int64      `db:"owner_id" json:"owner_id"`
	Locale          string     `db:"locale" json:"locale"`
	ProtocolVersion string     `db:"protocol_version" json:"protocol_version"`
	Config          ConfigMap  `db:"config" json:"config"`
}

// ConfigParam returns the chat's value for key, or def when unset.
func (c *Chat) ConfigParam(key, def string) string {
	if c.Config == nil {
		return def
	}
	if v, ok := c.Config[key]; ok {
		return v
	}
	return def
}

// PermissionProfile is the resolved capability snapshot of one principal (bot
// or user) inside one chat. UserID 0 is the chat-wide default entry used for
// unprivileged members.
type PermissionProfile struct {
	ChatID              int64 `json:"chat_id,omitempty"`
	UserID              int64 `json:"user_id,omitempty"`
	CanManageChat       bool  `json:"can_manage_chat"`
	CanPostMessages     bool  `json:"can_post_messages"`
	CanEditMessages     bool  `json:"can_edit_messages"`
	CanDeleteMessages   bool  `json:"can_delete_messages"`
	CanManageVoiceChats bool  `json:"can_manage_voice_chats"`
	CanRestrictMembers  bool  `json:"can_restrict_members"`
	CanPromoteMembers   bool  `json:"can_promote_members"`
	CanChangeInfo       bool  `json:"can_change_info"`
	CanInviteUsers      bool  `json:"can_invite_users"`
	CanPinMessages      bool  `json:"can_pin_messages"`
}

// QueueCategory classifies an inbound envelope for routing on the bus.
type QueueCategory string

const (
	CategoryBase       QueueCategory = "base"
	CategoryMemberJoin QueueCategory = "member_join"
	CategoryCommand    QueueCategory = "command"
)

// QueueMessage is the envelope published to the broker for one classified
// inbound event plus its resolved context.
type QueueMessage struct {
	Chat            Chat              `json:"chat"`
	Platform        string            `json:"platform"`
	Category        QueueCategory     `json:"category"`
	BotPermissions  PermissionProfile `json:"bot_permissions"`
	UserPermissions PermissionProfile `json:"user_permissions"`
	Payload         *tgbotapi.Message `json:"payload"`
}

// ActionKind enumerates the outbound platform operations a module may request.
type ActionKind string

const (
	ActionSendText      ActionKind = "send_text"
	ActionSendImage     ActionKind = "send_image"
	ActionSendVideo     ActionKind = "send_video"
	ActionSendAudio     ActionKind = "send_audio"
	ActionDeleteMessage ActionKind = "delete_message"
	ActionEditMessage   ActionKind = "edit_message"
	ActionPinMessage    ActionKind = "pin_message"
	ActionUnpinMessage  ActionKind = "unpin_message"
	ActionLeaveChat     ActionKind = "leave_chat"
	ActionKickUser      ActionKind = "kick_user"
	ActionBanUser       ActionKind = "ban_user"
)

// PostSendAction is an optional directive applied after a successful send.
type PostSendAction string

const (
	PostSendNone    PostSendAction = ""
	PostSendPin     PostSendAction = "pin"
	PostSendDestroy PostSendAction = "destroy"
)

// ActionRequest is one outbound instruction consumed from the results queue
// and dispatched through a per-destination queue.
type ActionRequest struct {
	Action                ActionKind     `json:"action"`
	ChatID                int64          `json:"chat_id"`
	ChatType              string         `json:"chat_type"`
	ControlChatID         int64          `json:"control_chat_id,omitempty"`
	Text                  string         `json:"text,omitempty"`
	ParseMode             string         `json:"parse_mode,omitempty"`
	ReferenceMessageID    int            `json:"reference_message_id,omitempty"`
	ReplyMarkup           *tgbotapi.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	DisableNotification   bool           `json:"disable_notification,omitempty"`
	DisableWebPagePreview bool           `json:"disable_web_page_preview,omitempty"`
	PostSend              PostSendAction `json:"post_send,omitempty"`
	AutoDestroySeconds    int            `json:"auto_destroy_seconds,omitempty"`
}

// IsGroupDestination reports whether the request targets a group destination
// (rate-limited with the lower group capacity).
func (r *ActionRequest) IsGroupDestination() bool {
	return r.ChatType == "group" || r.ChatType == "supergroup"
}

// Instance is this process' registration record.
type Instance struct {
	InstanceID string     `db:"instance_id" json:"instance_id"`
	ModuleID   string     `db:"module_id" json:"module_id"`
	Version    string     `db:"version" json:"version"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	StoppedAt  *time.Time `db:"stopped_at" json:"stopped_at,omitempty"`
	Status     string     `db:"status" json:"status"`
}

// Instance states.
const (
	InstanceStartup     = "startup"
	InstanceOperational = "operational"
	InstanceStopped     = "stopped"
)

// ModuleRoute maps one envelope category to a broker destination. Routes are
// stored ordered by priority; the first entry per category wins.
type ModuleRoute struct {
	ModuleID   string        `db:"module_id" json:"module_id"`
	Category   QueueCategory `db:"category" json:"category"`
	Exchange   string        `db:"exchange" json:"exchange"`
	RoutingKey string        `db:"routing_key" json:"routing_key"`
	Priority   int           `db:"priority" json:"priority"`
}
