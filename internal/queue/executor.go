package queue

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gateway/internal/models"
)

// Client is the slice of the platform client the executor needs.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Executor is the stateless translator from a queued action to a platform
// call. Every failure is logged and swallowed; the dispatch queue always
// advances past a failed action rather than retrying it.
type Executor struct {
	client Client
	logger *zap.Logger
}

func NewExecutor(client Client, logger *zap.Logger) *Executor {
	return &Executor{client: client, logger: logger}
}

func (e *Executor) Execute(req *models.ActionRequest) {
	switch req.Action {
	case models.ActionSendText:
		e.sendText(req)
	case models.ActionDeleteMessage:
		e.deleteMessage(req)
	case models.ActionPinMessage:
		e.pinMessage(req)
	case models.ActionLeaveChat:
		e.leaveChat(req)
	default:
		e.logger.Debug("Action kind has no handler",
			zap.String("action", string(req.Action)), zap.Int64("chat_id", req.ChatID))
	}
}

func (e *Executor) sendText(req *models.ActionRequest) {
	msg := tgbotapi.NewMessage(req.ChatID, req.Text)
	msg.ParseMode = req.ParseMode
	msg.ReplyToMessageID = req.ReferenceMessageID
	msg.DisableNotification = req.DisableNotification
	msg.DisableWebPagePreview = req.DisableWebPagePreview
	if req.ReplyMarkup != nil {
		msg.ReplyMarkup = *req.ReplyMarkup
	}

	sent, err := e.client.Send(msg)
	if err != nil {
		e.logger.Warn("Failed to send message", zap.Int64("chat_id", req.ChatID), zap.Error(err))
		return
	}

	switch req.PostSend {
	case models.PostSendPin:
		if _, err := e.client.Request(tgbotapi.PinChatMessageConfig{
			ChatID:              req.ChatID,
			MessageID:           sent.MessageID,
			DisableNotification: true,
		}); err != nil {
			e.logger.Warn("Failed to pin sent message", zap.Int64("chat_id", req.ChatID), zap.Error(err))
		}
	case models.PostSendDestroy:
		// Detached and not cancellable once scheduled.
		chatID, messageID := req.ChatID, sent.MessageID
		time.AfterFunc(time.Duration(req.AutoDestroySeconds)*time.Second, func() {
			if _, err := e.client.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
				e.logger.Warn("Failed to auto-delete message",
					zap.Int64("chat_id", chatID), zap.Int("message_id", messageID), zap.Error(err))
			}
		})
	}
}

func (e *Executor) deleteMessage(req *models.ActionRequest) {
	if req.ReferenceMessageID == 0 {
		return
	}
	if _, err := e.client.Request(tgbotapi.NewDeleteMessage(req.ChatID, req.ReferenceMessageID)); err != nil {
		e.logger.Warn("Failed to delete message",
			zap.Int64("chat_id", req.ChatID), zap.Int("message_id", req.ReferenceMessageID), zap.Error(err))
	}
}

func (e *Executor) pinMessage(req *models.ActionRequest) {
	if req.ReferenceMessageID == 0 {
		return
	}
	if _, err := e.client.Request(tgbotapi.PinChatMessageConfig{
		ChatID:              req.ChatID,
		MessageID:           req.ReferenceMessageID,
		DisableNotification: req.DisableNotification,
	}); err != nil {
		e.logger.Warn("Failed to pin message",
			zap.Int64("chat_id", req.ChatID), zap.Int("message_id", req.ReferenceMessageID), zap.Error(err))
	}
}

func (e *Executor) leaveChat(req *models.ActionRequest) {
	if _, err := e.client.Request(tgbotapi.LeaveChatConfig{ChatID: req.ChatID}); err != nil {
		e.logger.Warn("Failed to leave chat", zap.Int64("chat_id", req.ChatID), zap.Error(err))
	}
}
