package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"gateway/internal/models"
)

type recordingExecutor struct {
	mu   sync.Mutex
	seen []*models.ActionRequest
}

func (e *recordingExecutor) Execute(req *models.ActionRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, req)
}

func (e *recordingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.seen)
}

func (e *recordingExecutor) texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.seen))
	for i, req := range e.seen {
		out[i] = req.Text
	}
	return out
}

func sendAction(chatID int64, text string) *models.ActionRequest {
	return &models.ActionRequest{
		Action:   models.ActionSendText,
		ChatID:   chatID,
		ChatType: "supergroup",
		Text:     text,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestQueueReleasesInOrder(t *testing.T) {
	exec := &recordingExecutor{}
	q := newQueue(1, 100, time.Millisecond, time.Minute, exec, zap.NewNop())
	defer q.close()

	for i := 0; i < 5; i++ {
		q.Enqueue(sendAction(1, fmt.Sprintf("msg-%d", i)))
	}

	waitFor(t, time.Second, func() bool { return exec.count() == 5 })

	got := exec.texts()
	for i, text := range got {
		want := fmt.Sprintf("msg-%d", i)
		if text != want {
			t.Fatalf("release %d: got %q, want %q", i, text, want)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, %d pending", q.Len())
	}
}

func TestQueueStopsAtWindowCapacity(t *testing.T) {
	exec := &recordingExecutor{}
	q := newQueue(1, 3, time.Millisecond, time.Hour, exec, zap.NewNop())
	defer q.close()

	for i := 0; i < 5; i++ {
		q.Enqueue(sendAction(1, fmt.Sprintf("msg-%d", i)))
	}

	waitFor(t, time.Second, func() bool { return exec.count() == 3 })
	time.Sleep(20 * time.Millisecond)

	if n := exec.count(); n != 3 {
		t.Fatalf("released %d actions, window capacity is 3", n)
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 pending actions, got %d", q.Len())
	}
}

func TestQueueResumesAfterWindowExpiry(t *testing.T) {
	exec := &recordingExecutor{}
	q := newQueue(1, 2, time.Millisecond, 30*time.Millisecond, exec, zap.NewNop())
	defer q.close()

	for i := 0; i < 6; i++ {
		q.Enqueue(sendAction(1, fmt.Sprintf("msg-%d", i)))
	}

	waitFor(t, 2*time.Second, func() bool { return exec.count() == 6 })
}

func TestManagerDropsUnknownGroupDestination(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(ManagerConfig{Tick: time.Millisecond, Window: time.Minute}, exec, zap.NewNop())

	m.Enqueue(sendAction(42, "nobody home"))
	time.Sleep(20 * time.Millisecond)

	if n := exec.count(); n != 0 {
		t.Fatalf("expected drop, %d actions released", n)
	}
}

func TestManagerCreatesPrivateQueueLazily(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(ManagerConfig{Tick: time.Millisecond, Window: time.Minute}, exec, zap.NewNop())

	req := sendAction(7, "hello")
	req.ChatType = "private"
	m.Enqueue(req)

	waitFor(t, time.Second, func() bool { return exec.count() == 1 })
}

func TestManagerRoutesToGroupQueue(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(ManagerConfig{Tick: time.Millisecond, Window: time.Minute}, exec, zap.NewNop())

	chat := &models.Chat{TelegramChatID: 9, Type: "supergroup", Status: models.ChatActive}
	if !m.EnsureGroupQueue(chat) {
		t.Fatal("EnsureGroupQueue returned false for a new chat")
	}
	if m.EnsureGroupQueue(chat) {
		t.Fatal("EnsureGroupQueue created the same queue twice")
	}

	m.Enqueue(sendAction(9, "for the group"))
	waitFor(t, time.Second, func() bool { return exec.count() == 1 })
}

func TestManagerDiagnosticRewritesDestination(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(ManagerConfig{ControlChatID: 100, Tick: time.Millisecond, Window: time.Minute}, exec, zap.NewNop())

	req := sendAction(9, "something broke")
	m.EnqueueDiagnostic(req)

	waitFor(t, time.Second, func() bool { return exec.count() == 1 })
	exec.mu.Lock()
	got := exec.seen[0]
	exec.mu.Unlock()
	if got.ChatID != 100 {
		t.Fatalf("diagnostic routed to chat %d, want control chat 100", got.ChatID)
	}
	if got.ChatType != "channel" || !got.DisableWebPagePreview {
		t.Fatalf("diagnostic not rewritten: type=%q preview=%v", got.ChatType, got.DisableWebPagePreview)
	}
}

func TestManagerShutdownDrainsAndRefusesNewQueues(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(ManagerConfig{Tick: time.Millisecond, Window: time.Minute}, exec, zap.NewNop())

	chat := &models.Chat{TelegramChatID: 5, Type: "supergroup", Status: models.ChatActive}
	m.EnsureGroupQueue(chat)
	for i := 0; i < 4; i++ {
		m.Enqueue(sendAction(5, fmt.Sprintf("msg-%d", i)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := exec.count(); n != 4 {
		t.Fatalf("released %d of 4 actions before shutdown", n)
	}

	other := &models.Chat{TelegramChatID: 6, Type: "supergroup", Status: models.ChatActive}
	if m.EnsureGroupQueue(other) {
		t.Fatal("queue created during shutdown")
	}
	if m.RemoveGroupQueue(5) {
		t.Fatal("queue removed during shutdown")
	}
}

func TestManagerShutdownTimesOutOnStuckQueue(t *testing.T) {
	exec := &recordingExecutor{}
	// A queue whose window is already exhausted cannot drain.
	m := NewManager(ManagerConfig{GroupCapacity: 1, Tick: time.Millisecond, Window: time.Hour}, exec, zap.NewNop())

	chat := &models.Chat{TelegramChatID: 3, Type: "supergroup", Status: models.ChatActive}
	m.EnsureGroupQueue(chat)
	m.Enqueue(sendAction(3, "first"))
	m.Enqueue(sendAction(3, "stuck"))
	waitFor(t, time.Second, func() bool { return exec.count() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.Shutdown(ctx); err == nil {
		t.Fatal("expected deadline error from Shutdown")
	}
}
