package permissions

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gateway/internal/models"
)

// BuildProfile derives a capability profile from a raw chat member status.
// Administrators map to their explicit grants and restricted members to their
// restriction grants. Any other status (creator, plain member, left, kicked)
// carries no profile of its own and falls through to the chat default.
func BuildProfile(member tgbotapi.ChatMember) (models.PermissionProfile, bool) {
	switch {
	case member.IsAdministrator():
		return models.PermissionProfile{
			CanManageChat:       member.CanManageChat,
			CanPostMessages:     member.CanPostMessages,
			CanEditMessages:     member.CanEditMessages,
			CanDeleteMessages:   member.CanDeleteMessages,
			CanManageVoiceChats: member.CanManageVoiceChats,
			CanRestrictMembers:  member.CanRestrictMembers,
			CanPromoteMembers:   member.CanPromoteMembers,
			CanChangeInfo:       member.CanChangeInfo,
			CanInviteUsers:      member.CanInviteUsers,
			CanPinMessages:      member.CanPinMessages,
		}, true
	case member.Status == "restricted":
		return models.PermissionProfile{
			CanPostMessages: member.CanSendMessages,
			CanChangeInfo:   member.CanChangeInfo,
			CanInviteUsers:  member.CanInviteUsers,
			CanPinMessages:  member.CanPinMessages,
		}, true
	default:
		return models.PermissionProfile{}, false
	}
}

// DefaultProfile derives the chat-wide fallback profile from the chat's open
// permissions. It is cached under user id 0.
func DefaultProfile(chat tgbotapi.Chat) models.PermissionProfile {
	p := models.PermissionProfile{}
	if chat.Permissions != nil {
		p.CanPostMessages = chat.Permissions.CanSendMessages
		p.CanChangeInfo = chat.Permissions.CanChangeInfo
		p.CanInviteUsers = chat.Permissions.CanInviteUsers
		p.CanPinMessages = chat.Permissions.CanPinMessages
	}
	return p
}
