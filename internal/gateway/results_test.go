package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"gateway/internal/models"
)

func TestHandleResultEnqueuesAction(t *testing.T) {
	f := newFixture(t, Settings{})
	chat := registeredChat(-100)
	f.chats.Set(chat)
	f.queues.EnsureGroupQueue(chat)

	body, _ := json.Marshal(models.ActionRequest{
		Action:   models.ActionSendText,
		ChatID:   -100,
		ChatType: "supergroup",
		Text:     "verdict",
	})
	f.d.HandleResult(body)

	waitFor(t, 2*time.Second, func() bool { return f.exec.count() == 1 })
	f.exec.mu.Lock()
	got := f.exec.seen[0]
	f.exec.mu.Unlock()
	if got.ChatID != -100 || got.Text != "verdict" {
		t.Fatalf("released action mangled: %+v", got)
	}
}

func TestHandleResultDiscardsMalformedPayload(t *testing.T) {
	f := newFixture(t, Settings{})

	f.d.HandleResult([]byte("{not json"))
	f.d.HandleResult([]byte(`{"chat_id": 5}`)) // no action
	time.Sleep(20 * time.Millisecond)

	if f.exec.count() != 0 {
		t.Fatal("malformed payload was dispatched")
	}
}
