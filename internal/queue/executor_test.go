package queue

import (
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gateway/internal/models"
)

type fakeClient struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (c *fakeClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return tgbotapi.Message{}, c.sendErr
	}
	c.sent = append(c.sent, msg)
	return tgbotapi.Message{MessageID: 500 + len(c.sent)}, nil
}

func (c *fakeClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, msg)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestExecutorSendText(t *testing.T) {
	client := &fakeClient{}
	exec := NewExecutor(client, zap.NewNop())

	exec.Execute(&models.ActionRequest{
		Action:             models.ActionSendText,
		ChatID:             10,
		Text:               "hello",
		ParseMode:          "Markdown",
		ReferenceMessageID: 33,
	})

	if len(client.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(client.sent))
	}
	msg, ok := client.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", client.sent[0])
	}
	if msg.ChatID != 10 || msg.Text != "hello" || msg.ParseMode != "Markdown" || msg.ReplyToMessageID != 33 {
		t.Fatalf("unexpected message config: %+v", msg)
	}
}

func TestExecutorSendFailureIsSwallowed(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("429 too many requests")}
	exec := NewExecutor(client, zap.NewNop())

	// Must not panic and must not issue a post-send call.
	exec.Execute(&models.ActionRequest{
		Action:   models.ActionSendText,
		ChatID:   10,
		Text:     "hello",
		PostSend: models.PostSendPin,
	})

	if len(client.requests) != 0 {
		t.Fatalf("post-send issued after failed send: %d requests", len(client.requests))
	}
}

func TestExecutorPinAfterSend(t *testing.T) {
	client := &fakeClient{}
	exec := NewExecutor(client, zap.NewNop())

	exec.Execute(&models.ActionRequest{
		Action:   models.ActionSendText,
		ChatID:   10,
		Text:     "pinned announcement",
		PostSend: models.PostSendPin,
	})

	if len(client.requests) != 1 {
		t.Fatalf("expected one pin request, got %d", len(client.requests))
	}
	pin, ok := client.requests[0].(tgbotapi.PinChatMessageConfig)
	if !ok {
		t.Fatalf("request is %T, want PinChatMessageConfig", client.requests[0])
	}
	if pin.ChatID != 10 || pin.MessageID != 501 {
		t.Fatalf("pinned wrong message: %+v", pin)
	}
	if !pin.DisableNotification {
		t.Fatal("post-send pin should not notify")
	}
}

func TestExecutorDeleteRequiresReference(t *testing.T) {
	client := &fakeClient{}
	exec := NewExecutor(client, zap.NewNop())

	exec.Execute(&models.ActionRequest{Action: models.ActionDeleteMessage, ChatID: 10})
	if len(client.requests) != 0 {
		t.Fatal("delete without a reference message should be a no-op")
	}

	exec.Execute(&models.ActionRequest{Action: models.ActionDeleteMessage, ChatID: 10, ReferenceMessageID: 77})
	if len(client.requests) != 1 {
		t.Fatalf("expected one delete request, got %d", len(client.requests))
	}
	del, ok := client.requests[0].(tgbotapi.DeleteMessageConfig)
	if !ok {
		t.Fatalf("request is %T, want DeleteMessageConfig", client.requests[0])
	}
	if del.ChatID != 10 || del.MessageID != 77 {
		t.Fatalf("unexpected delete config: %+v", del)
	}
}

func TestExecutorLeaveChat(t *testing.T) {
	client := &fakeClient{}
	exec := NewExecutor(client, zap.NewNop())

	exec.Execute(&models.ActionRequest{Action: models.ActionLeaveChat, ChatID: 10})
	if len(client.requests) != 1 {
		t.Fatalf("expected one leave request, got %d", len(client.requests))
	}
	if _, ok := client.requests[0].(tgbotapi.LeaveChatConfig); !ok {
		t.Fatalf("request is %T, want LeaveChatConfig", client.requests[0])
	}
}

func TestExecutorUnknownActionIsIgnored(t *testing.T) {
	client := &fakeClient{}
	exec := NewExecutor(client, zap.NewNop())

	exec.Execute(&models.ActionRequest{Action: models.ActionBanUser, ChatID: 10})
	if len(client.sent) != 0 || len(client.requests) != 0 {
		t.Fatal("unknown action reached the client")
	}
}
