package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"gateway/internal/models"
)

type ChatRepository interface {
	GetChatByTelegramID(telegramID int64) (*models.Chat, error)
	GetAllChats() ([]*models.Chat, error)
	CreateChat(chat *models.Chat) error
	UpdateChat(chat *models.Chat) error
	UpdateChatID(oldID, newID int64) error
}

type chatRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChatRepository(db *sqlx.DB, logger *zap.Logger) ChatRepository {
	return &chatRepository{db: db, logger: logger}
}

func (r *chatRepository) GetChatByTelegramID(telegramID int64) (*models.Chat, error) {
	var chat models.Chat
	query := `SELECT telegram_chat_id, title, type, control_chat_id, status, command_prefix, owner_id, locale, protocol_version, config FROM chats WHERE telegram_chat_id = $1`
	err := r.db.Get(&chat, query, telegramID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Chat not found
		}
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) GetAllChats() ([]*models.Chat, error) {
	var chats []*models.Chat
	query := `SELECT telegram_chat_id, title, type, control_chat_id, status, command_prefix, owner_id, locale, protocol_version, config FROM chats ORDER BY telegram_chat_id`
	err := r.db.Select(&chats, query)
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *chatRepository) CreateChat(chat *models.Chat) error {
	query := `INSERT INTO chats (telegram_chat_id, title, type, control_chat_id, status, command_prefix, owner_id, locale, protocol_version, config)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(query, chat.TelegramChatID, chat.Title, chat.Type, chat.ControlChatID,
		chat.Status, chat.CommandPrefix, chat.OwnerID, chat.Locale, chat.ProtocolVersion, chat.Config)
	return err
}

func (r *chatRepository) UpdateChat(chat *models.Chat) error {
	query := `UPDATE chats SET title = $2, type = $3, control_chat_id = $4, status = $5, command_prefix = $6, owner_id = $7, locale = $8, protocol_version = $9, config = $10
	          WHERE telegram_chat_id = $1`
	_, err := r.db.Exec(query, chat.TelegramChatID, chat.Title, chat.Type, chat.ControlChatID,
		chat.Status, chat.CommandPrefix, chat.OwnerID, chat.Locale, chat.ProtocolVersion, chat.Config)
	return err
}

func (r *chatRepository) UpdateChatID(oldID, newID int64) error {
	query := `UPDATE chats SET telegram_chat_id = $2 WHERE telegram_chat_id = $1`
	_, err := r.db.Exec(query, oldID, newID)
	return err
}
