package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/interview-tracker/internal/application"
)

// ManagerConfig bundles the shared dependencies handed to every per-viewer
// scheduler the manager spawns.
type ManagerConfig struct {
	Source ScheduleSource
	// Offsets and Interval are passed through to each scheduler.
	Offsets     []int
	Interval    time.Duration
	Now         func() time.Time
	IDGenerator func() string
	Logger      *slog.Logger
	// InboxCapacity bounds each viewer's retained notifications.
	InboxCapacity int
}

// Manager owns the per-viewer schedulers and inboxes. Viewers are started
// when they sign in and stopped when they sign out; call lifecycle events are
// fanned out to every running scheduler.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	schedulers map[string]*Scheduler
	inboxes    map[string]*Inbox
	stopped    bool
}

// NewManager constructs a manager. StopAll must be called on shutdown.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:        cfg,
		logger:     logger.With("component", "notify.Manager"),
		ctx:        ctx,
		cancel:     cancel,
		schedulers: make(map[string]*Scheduler),
		inboxes:    make(map[string]*Inbox),
	}
}

// StartViewer launches a scheduler for the viewer if one is not already
// running. The viewer's inbox survives restarts so unread notifications are
// kept across sign-ins.
func (m *Manager) StartViewer(viewerID string) {
	if m == nil || viewerID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if _, running := m.schedulers[viewerID]; running {
		return
	}

	inbox := m.inboxes[viewerID]
	if inbox == nil {
		inbox = NewInbox(m.cfg.InboxCapacity)
		m.inboxes[viewerID] = inbox
	}

	scheduler := NewScheduler(SchedulerConfig{
		ViewerID:    viewerID,
		Source:      m.cfg.Source,
		Sink:        inbox,
		Offsets:     m.cfg.Offsets,
		Interval:    m.cfg.Interval,
		Now:         m.cfg.Now,
		IDGenerator: m.cfg.IDGenerator,
		Logger:      m.logger,
	})
	m.schedulers[viewerID] = scheduler

	go scheduler.Run(m.ctx)
	m.logger.Info("viewer scheduler started", "viewer_id", viewerID)
}

// StopViewer shuts down the viewer's scheduler and waits for its loop to
// drain. The inbox is retained.
func (m *Manager) StopViewer(viewerID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	scheduler, ok := m.schedulers[viewerID]
	if ok {
		delete(m.schedulers, viewerID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	scheduler.Stop()
	m.logger.Info("viewer scheduler stopped", "viewer_id", viewerID)
}

// StopAll shuts down every running scheduler. The manager accepts no new
// viewers afterwards.
func (m *Manager) StopAll() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.stopped = true
	schedulers := make([]*Scheduler, 0, len(m.schedulers))
	for _, scheduler := range m.schedulers {
		schedulers = append(schedulers, scheduler)
	}
	m.schedulers = make(map[string]*Scheduler)
	m.mu.Unlock()

	m.cancel()
	for _, scheduler := range schedulers {
		scheduler.Stop()
	}
}

// NotifyCallEvent implements application.CallObserver by fanning the event
// out to every running scheduler. Each scheduler decides relevance from its
// own visible-call snapshot.
func (m *Manager) NotifyCallEvent(event application.CallEvent) {
	if m == nil {
		return
	}
	m.mu.Lock()
	schedulers := make([]*Scheduler, 0, len(m.schedulers))
	for _, scheduler := range m.schedulers {
		schedulers = append(schedulers, scheduler)
	}
	m.mu.Unlock()

	for _, scheduler := range schedulers {
		scheduler.HandleEvent(event)
	}
}

// Snooze requests a one-shot reminder for the viewer's call after the given
// delay. Reports whether a scheduler was running for the viewer.
func (m *Manager) Snooze(viewerID, callID string, delay time.Duration) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	scheduler, ok := m.schedulers[viewerID]
	m.mu.Unlock()
	if !ok {
		return false
	}

	now := m.cfg.Now
	if now == nil {
		now = time.Now
	}
	scheduler.Snooze(callID, now().Add(delay))
	return true
}

// DismissCall clears the viewer's displayed notifications for one call. With
// a running scheduler the request goes through its command queue so it
// serializes with ticks; otherwise the retained inbox is cleared directly.
func (m *Manager) DismissCall(viewerID, callID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	scheduler, ok := m.schedulers[viewerID]
	m.mu.Unlock()
	if ok {
		scheduler.Dismiss(callID)
		return
	}
	m.Inbox(viewerID).Withdraw(callID)
}

// Notifications returns the viewer's pending notifications, oldest first.
func (m *Manager) Notifications(viewerID string) []Notification {
	return m.Inbox(viewerID).List()
}

// DismissNotification removes one notification from the viewer's inbox and
// reports whether it existed.
func (m *Manager) DismissNotification(viewerID, notificationID string) bool {
	return m.Inbox(viewerID).Dismiss(notificationID)
}

// Inbox returns the viewer's notification inbox, creating it if needed so
// reads before the first sign-in see an empty list.
func (m *Manager) Inbox(viewerID string) *Inbox {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inbox := m.inboxes[viewerID]
	if inbox == nil {
		inbox = NewInbox(m.cfg.InboxCapacity)
		m.inboxes[viewerID] = inbox
	}
	return inbox
}
