// Package gateway contains the inbound side of the terminal: the update
// dispatcher/classifier and the chat registration and migration state
// machine. Classified events are republished to the broker; outbound
// instructions coming back from the broker are handed to the queue manager.
package gateway

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gateway/internal/permissions"
	"gateway/internal/queue"
	"gateway/internal/registry"
	"gateway/internal/repository"
)

// ProtocolVersion marks chat records created by this generation of the
// gateway; older records trigger the re-welcome message on registration.
const ProtocolVersion = "4"

const (
	welcomeMessage   = "Welcome to IC!"
	rewelcomeMessage = "Thank you for migrating to IC!"
)

// Client is the slice of the platform client the dispatcher needs.
type Client interface {
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Publisher publishes one payload to the broker.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Settings carries the dispatcher's static configuration.
type Settings struct {
	ControlChatID   int64
	CommandPrefix   string
	LegacyMigration bool
	LegacyChats     []int64
	ChatDefaults    map[string]string
	UpdateWorkers   int
}

// Dispatcher consumes platform updates, resolves authorization context and
// republishes classified events. Handlers that perform I/O run on a bounded
// worker pool so the receive loop is never blocked.
type Dispatcher struct {
	client    Client
	publisher Publisher
	chats     *registry.Registry
	perms     *permissions.Cache
	chatRepo  repository.ChatRepository
	queues    *queue.Manager
	routes    Routes
	settings  Settings
	logger    *zap.Logger

	ctx  context.Context
	pool *errgroup.Group

	legacyMu sync.Mutex
	legacy   map[int64]bool

	// regMu guards the registration buffers; the mid-registration check and
	// the append must be observed atomically or a replayed message could be
	// lost between registration completing and a late append.
	regMu      sync.Mutex
	regBuffers map[int64][]*tgbotapi.Message
}

func NewDispatcher(
	client Client,
	publisher Publisher,
	chats *registry.Registry,
	perms *permissions.Cache,
	chatRepo repository.ChatRepository,
	queues *queue.Manager,
	routes Routes,
	settings Settings,
	logger *zap.Logger,
) *Dispatcher {
	if settings.CommandPrefix == "" {
		settings.CommandPrefix = "/"
	}
	if settings.UpdateWorkers <= 0 {
		settings.UpdateWorkers = 32
	}
	legacy := make(map[int64]bool, len(settings.LegacyChats))
	for _, id := range settings.LegacyChats {
		legacy[id] = true
	}
	pool := &errgroup.Group{}
	pool.SetLimit(settings.UpdateWorkers)
	return &Dispatcher{
		client:     client,
		publisher:  publisher,
		chats:      chats,
		perms:      perms,
		chatRepo:   chatRepo,
		queues:     queues,
		routes:     routes,
		settings:   settings,
		logger:     logger,
		ctx:        context.Background(),
		pool:       pool,
		legacy:     legacy,
		regBuffers: make(map[int64][]*tgbotapi.Message),
	}
}

// Run drains the platform update stream until ctx is cancelled, then waits
// for in-flight handlers to finish.
func (d *Dispatcher) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	d.ctx = ctx
	d.logger.Info("Update dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Update dispatcher stopping")
			_ = d.pool.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				_ = d.pool.Wait()
				return
			}
			d.Dispatch(update)
		}
	}
}

// Dispatch classifies one update. Handler work goes to the worker pool so the
// receive loop is not blocked.
func (d *Dispatcher) Dispatch(update tgbotapi.Update) {
	if update.Message != nil {
		d.handleMessage(update.Message)
	}
	if update.EditedMessage != nil {
		d.handleMessage(update.EditedMessage)
	}
	if update.MyChatMember != nil {
		member := update.MyChatMember
		d.spawn(func() { d.handleMemberUpdate(member) })
	}
	if update.ChatMember != nil {
		member := update.ChatMember
		d.spawn(func() { d.handleMemberUpdate(member) })
	}
	if update.CallbackQuery != nil {
		d.handleCallbackQuery(update.CallbackQuery)
	}
	if update.ChatJoinRequest != nil {
		d.handleJoinRequest(update.ChatJoinRequest)
	}
}

// spawn runs fn on the worker pool, inline when the pool is saturated. The
// inline fallback matters for buffered replays: a replaying worker spawning
// sub-handlers must not wait on a slot another replaying worker holds.
func (d *Dispatcher) spawn(fn func()) {
	if !d.pool.TryGo(func() error { fn(); return nil }) {
		fn()
	}
}

// notifyControlChat pushes a diagnostic line to the control chat. The control
// chat is the only user-visible error channel; failures here are only logged.
func (d *Dispatcher) notifyControlChat(text string) {
	if d.settings.ControlChatID == 0 {
		return
	}
	if _, err := d.client.Send(tgbotapi.NewMessage(d.settings.ControlChatID, text)); err != nil {
		d.logger.Warn("Failed to notify control chat", zap.Error(err))
	}
}
