package gateway

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gateway/internal/models"
)

func TestMemberUpdatePromotionCachesProfile(t *testing.T) {
	f := newFixture(t, Settings{})
	f.chats.Set(registeredChat(-100))

	f.d.handleMemberUpdate(&tgbotapi.ChatMemberUpdated{
		Chat: tgbotapi.Chat{ID: -100, Type: "supergroup"},
		NewChatMember: tgbotapi.ChatMember{
			Status:            "administrator",
			User:              &tgbotapi.User{ID: 42},
			CanDeleteMessages: true,
		},
	})

	// A later resolution must come straight from the cache.
	p := f.perms.Resolve(-100, 42)
	if !p.CanDeleteMessages {
		t.Fatalf("promotion not cached: %+v", p)
	}
}

func TestMemberUpdateBotDemotionEvictsProfile(t *testing.T) {
	f := newFixture(t, Settings{})
	f.chats.Set(registeredChat(-100))
	f.perms.SetBotProfile(-100, models.PermissionProfile{CanManageChat: true})

	f.d.handleMemberUpdate(&tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -100, Type: "supergroup"},
		NewChatMember: tgbotapi.ChatMember{Status: "member", User: &tgbotapi.User{ID: testBotID}},
	})

	if _, ok := f.perms.BotProfile(-100); ok {
		t.Fatal("demoted bot kept its cached profile")
	}
}

func TestMemberUpdateForUnknownChatIsIgnored(t *testing.T) {
	f := newFixture(t, Settings{})

	f.d.handleMemberUpdate(&tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{ID: -555, Type: "supergroup"},
		NewChatMember: tgbotapi.ChatMember{Status: "administrator", User: &tgbotapi.User{ID: 42}},
	})

	if f.publisher.count() != 0 {
		t.Fatal("unknown chat update produced traffic")
	}
}
