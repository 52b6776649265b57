package permissions

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestBuildProfileAdministrator(t *testing.T) {
	member := tgbotapi.ChatMember{
		Status:             "administrator",
		User:               &tgbotapi.User{ID: 42},
		CanManageChat:      true,
		CanDeleteMessages:  true,
		CanRestrictMembers: true,
	}
	p, ok := BuildProfile(member)
	if !ok {
		t.Fatal("administrator must yield a profile")
	}
	if !p.CanManageChat || !p.CanDeleteMessages || !p.CanRestrictMembers {
		t.Fatalf("grants lost: %+v", p)
	}
	if p.CanPromoteMembers {
		t.Fatal("ungranted capability set")
	}
}

func TestBuildProfileRestricted(t *testing.T) {
	member := tgbotapi.ChatMember{
		Status:          "restricted",
		User:            &tgbotapi.User{ID: 42},
		CanSendMessages: true,
		CanInviteUsers:  true,
	}
	p, ok := BuildProfile(member)
	if !ok {
		t.Fatal("restricted member must yield a profile")
	}
	if !p.CanPostMessages || !p.CanInviteUsers {
		t.Fatalf("restriction grants lost: %+v", p)
	}
	if p.CanDeleteMessages || p.CanManageChat {
		t.Fatal("restricted member gained admin capability")
	}
}

func TestBuildProfileStatusesWithoutProfile(t *testing.T) {
	for _, status := range []string{"creator", "member", "left", "kicked"} {
		member := tgbotapi.ChatMember{Status: status, User: &tgbotapi.User{ID: 42}}
		if _, ok := BuildProfile(member); ok {
			t.Fatalf("status %q must fall through to the chat default", status)
		}
	}
}

func TestDefaultProfile(t *testing.T) {
	chat := tgbotapi.Chat{
		ID: 1,
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages: true,
			CanPinMessages:  true,
		},
	}
	p := DefaultProfile(chat)
	if !p.CanPostMessages || !p.CanPinMessages {
		t.Fatalf("open permissions lost: %+v", p)
	}
	if p.CanManageChat {
		t.Fatal("default profile gained admin capability")
	}

	if p := DefaultProfile(tgbotapi.Chat{ID: 2}); p.CanPostMessages {
		t.Fatal("chat without permissions must yield an all-false default")
	}
}
