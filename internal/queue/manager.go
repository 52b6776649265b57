package queue

import (
	"context"
	"time"

	"sync"

	"go.uber.org/zap"

	"gateway/internal/models"
)

// ManagerConfig carries the per-destination capacities and the drain timing.
// Group destinations get the lower capacity because platform-side group rate
// limits are stricter.
type ManagerConfig struct {
	ControlChatID   int64
	GroupCapacity   int
	PrivateCapacity int
	Tick            time.Duration
	Window          time.Duration
}

// Manager owns the per-destination dispatch queues, split between group
// destinations and private/control destinations, and coordinates the
// drain-before-exit shutdown.
type Manager struct {
	cfg    ManagerConfig
	exec   ActionExecutor
	logger *zap.Logger

	mu           sync.Mutex
	groups       map[int64]*Queue
	privates     map[int64]*Queue
	shuttingDown bool
}

func NewManager(cfg ManagerConfig, exec ActionExecutor, logger *zap.Logger) *Manager {
	if cfg.GroupCapacity <= 0 {
		cfg.GroupCapacity = 20
	}
	if cfg.PrivateCapacity <= 0 {
		cfg.PrivateCapacity = 60
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	m := &Manager{
		cfg:      cfg,
		exec:     exec,
		logger:   logger,
		groups:   make(map[int64]*Queue),
		privates: make(map[int64]*Queue),
	}
	if cfg.ControlChatID != 0 {
		m.EnsurePrivateQueue(cfg.ControlChatID)
	}
	return m
}

// EnsureGroupQueue creates the queue for a group destination if absent.
// Refused while shutting down.
func (m *Manager) EnsureGroupQueue(chat *models.Chat) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		return false
	}
	if _, ok := m.groups[chat.TelegramChatID]; ok {
		return false
	}
	m.groups[chat.TelegramChatID] = newQueue(chat.TelegramChatID, m.cfg.GroupCapacity,
		m.cfg.Tick, m.cfg.Window, m.exec, m.logger)
	return true
}

// EnsurePrivateQueue creates the queue for a private or control destination
// if absent. Refused while shutting down.
func (m *Manager) EnsurePrivateQueue(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensurePrivateLocked(chatID)
}

func (m *Manager) ensurePrivateLocked(chatID int64) bool {
	if m.shuttingDown {
		return false
	}
	if _, ok := m.privates[chatID]; ok {
		return false
	}
	m.privates[chatID] = newQueue(chatID, m.cfg.PrivateCapacity,
		m.cfg.Tick, m.cfg.Window, m.exec, m.logger)
	return true
}

// RemoveGroupQueue deletes a group queue, e.g. when a chat is disabled.
// Refused while shutting down.
func (m *Manager) RemoveGroupQueue(chatID int64) bool {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return false
	}
	q, ok := m.groups[chatID]
	if ok {
		delete(m.groups, chatID)
	}
	m.mu.Unlock()
	if ok {
		q.close()
	}
	return ok
}

// Enqueue routes req to its destination queue. Requests for unknown group
// destinations are dropped; private destinations are created lazily.
func (m *Manager) Enqueue(req *models.ActionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		return
	}

	if req.IsGroupDestination() {
		q, ok := m.groups[req.ChatID]
		if !ok {
			m.logger.Debug("Dropping action for unknown group destination",
				zap.Int64("chat_id", req.ChatID), zap.String("action", string(req.Action)))
			return
		}
		q.Enqueue(req)
		return
	}

	m.ensurePrivateLocked(req.ChatID)
	if q, ok := m.privates[req.ChatID]; ok {
		q.Enqueue(req)
	}
}

// EnqueueDiagnostic rewrites req's destination to the control chat and routes
// it through the private map. Diagnostics never fan into group queues.
func (m *Manager) EnqueueDiagnostic(req *models.ActionRequest) {
	if m.cfg.ControlChatID == 0 {
		return
	}
	req.ChatID = m.cfg.ControlChatID
	req.ChatType = "channel"
	req.DisableWebPagePreview = true
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		return
	}
	m.ensurePrivateLocked(req.ChatID)
	if q, ok := m.privates[req.ChatID]; ok {
		q.Enqueue(req)
	}
}

// Depths returns the pending counts per destination, for diagnostics.
func (m *Manager) Depths() map[int64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]int, len(m.groups)+len(m.privates))
	for id, q := range m.groups {
		out[id] = q.Len()
	}
	for id, q := range m.privates {
		out[id] = q.Len()
	}
	return out
}

// Shutdown refuses further queue creation and removal, then blocks until
// every queue has drained its buffer or ctx expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shuttingDown = true
	m.mu.Unlock()

	for {
		if m.allEmpty() {
			m.closeAll()
			return nil
		}
		select {
		case <-ctx.Done():
			m.closeAll()
			return ctx.Err()
		case <-time.After(m.cfg.Tick):
		}
	}
}

func (m *Manager) allEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.groups {
		if q.Len() > 0 {
			return false
		}
	}
	for _, q := range m.privates {
		if q.Len() > 0 {
			return false
		}
	}
	return true
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	queues := make([]*Queue, 0, len(m.groups)+len(m.privates))
	for _, q := range m.groups {
		queues = append(queues, q)
	}
	for _, q := range m.privates {
		queues = append(queues, q)
	}
	m.mu.Unlock()
	for _, q := range queues {
		q.close()
	}
}
