// Package registry holds the in-memory mapping from Telegram chat id to its
// Chat record. It is populated from the database at startup and mutated during
// registration and migration.
package registry

import (
	"sync"

	"gateway/internal/models"
)

// Registry is a concurrency-safe chat map. There is exactly one live record
// per chat id; a migration removes the old id and inserts the new one inside
// a single lock scope so readers never see both or neither.
type Registry struct {
	mu    sync.RWMutex
	chats map[int64]*models.Chat
}

func New() *Registry {
	return &Registry{chats: make(map[int64]*models.Chat)}
}

// Get returns the chat record for id, or nil when unknown.
func (r *Registry) Get(id int64) *models.Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chats[id]
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.chats[id]
	return ok
}

// Set inserts or replaces the record for chat.TelegramChatID.
func (r *Registry) Set(chat *models.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chat.TelegramChatID] = chat
}

// Delete removes the record for id, if present.
func (r *Registry) Delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, id)
}

// Rename moves the record stored under oldID to chat's id in one step. Used
// on migration so the swap is atomic with respect to readers.
func (r *Registry) Rename(oldID int64, chat *models.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chats, oldID)
	r.chats[chat.TelegramChatID] = chat
}

// All returns a snapshot of the registered chats.
func (r *Registry) All() []*models.Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Chat, 0, len(r.chats))
	for _, c := range r.chats {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered chats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}
