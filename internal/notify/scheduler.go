package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/interview-tracker/internal/application"
	"github.com/example/interview-tracker/internal/lifecycle"
)

// ScheduleSource lists the calls a viewer may currently see that are still
// waiting to start, ordered ascending by scheduled time.
type ScheduleSource interface {
	VisibleScheduledCalls(ctx context.Context, viewerID string) ([]application.Call, error)
}

// DefaultReminderOffsets are the minutes-before-call marks at which reminders
// fire when no explicit offsets are configured.
var DefaultReminderOffsets = []int{15, 10, 5, 1, 0}

// SchedulerConfig bundles the dependencies of a per-viewer scheduler.
type SchedulerConfig struct {
	ViewerID string
	Source   ScheduleSource
	Sink     Sink
	// Offsets lists reminder offsets in minutes before the scheduled time.
	// Nil selects DefaultReminderOffsets.
	Offsets []int
	// Interval is the poll period between schedule scans.
	Interval    time.Duration
	Now         func() time.Time
	IDGenerator func() string
	Logger      *slog.Logger
	// CommandBuffer bounds queued events and snoozes; excess is dropped.
	CommandBuffer int
}

type commandKind int

const (
	commandEvent commandKind = iota
	commandSnooze
	commandDismiss
)

type command struct {
	kind     commandKind
	event    application.CallEvent
	callID   string
	remindAt time.Time
}

// Scheduler watches one viewer's visible calls and fires reminder
// notifications into the sink. All trigger state is owned by the single
// goroutine running the loop; external callers communicate only through the
// command queue.
type Scheduler struct {
	viewerID    string
	source      ScheduleSource
	sink        Sink
	offsets     []int
	interval    time.Duration
	now         func() time.Time
	idGenerator func() string
	logger      *slog.Logger

	commands chan command
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// fired records which offsets have been consumed per call. An offset in
	// the set never fires again for the same scheduled time.
	fired map[string]map[int]bool
	// snoozed holds one-shot reminder times requested by the viewer.
	snoozed map[string]time.Time
	// lastVisible is the snapshot of calls seen on the most recent scan.
	lastVisible map[string]application.Call
}

// NewScheduler constructs a scheduler for one viewer. Run must be started on
// its own goroutine before the scheduler does any work.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	offsets := normalizeOffsets(cfg.Offsets)
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	idGenerator := cfg.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.CommandBuffer
	if buffer <= 0 {
		buffer = 64
	}

	return &Scheduler{
		viewerID:    cfg.ViewerID,
		source:      cfg.Source,
		sink:        cfg.Sink,
		offsets:     offsets,
		interval:    interval,
		now:         now,
		idGenerator: idGenerator,
		logger:      logger.With("component", "notify.Scheduler", "viewer_id", cfg.ViewerID),
		commands:    make(chan command, buffer),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		fired:       make(map[string]map[int]bool),
		snoozed:     make(map[string]time.Time),
		lastVisible: make(map[string]application.Call),
	}
}

// Run scans immediately, then on every poll interval until the context is
// cancelled or Stop is called. It owns all trigger state.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case cmd := <-s.commands:
			s.handleCommand(cmd)
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for it to drain. Safe to call more
// than once; must only be called after Run has been started.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// HandleEvent queues a lifecycle event for the loop. Events arriving after
// Stop, or beyond the queue's capacity, are dropped.
func (s *Scheduler) HandleEvent(event application.CallEvent) {
	s.enqueue(command{kind: commandEvent, event: event})
}

// Snooze queues a one-shot reminder for the call at the given time. The
// reminder fires on the first scan at or after remindAt, and only while the
// call is still visible and waiting to start.
func (s *Scheduler) Snooze(callID string, remindAt time.Time) {
	s.enqueue(command{kind: commandSnooze, callID: callID, remindAt: remindAt})
}

// Dismiss queues removal of the call's displayed notifications and any
// pending snooze. Fired offsets stay consumed, so dismissed reminders do not
// fire again.
func (s *Scheduler) Dismiss(callID string) {
	s.enqueue(command{kind: commandDismiss, callID: callID})
}

func (s *Scheduler) enqueue(cmd command) {
	select {
	case <-s.stop:
		return
	default:
	}
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warn("command queue full, dropping command", "kind", int(cmd.kind))
	}
}

// runTick performs one scan: refresh the visible set, drop state for calls
// that left it, then fire due reminder offsets and matured snoozes.
func (s *Scheduler) runTick(ctx context.Context) {
	now := s.now()

	raw, err := s.source.VisibleScheduledCalls(ctx, s.viewerID)
	if err != nil {
		// Trigger state is kept so reminders fire on the next healthy scan.
		s.logger.Error("schedule scan failed", "error", err)
		return
	}

	visible := make(map[string]application.Call, len(raw))
	for _, call := range raw {
		if lifecycle.Notifiable(call.Status) {
			visible[call.ID] = call
		}
	}

	for callID := range s.lastVisible {
		if _, ok := visible[callID]; !ok {
			delete(s.lastVisible, callID)
			s.sink.Withdraw(callID)
		}
	}
	for callID := range s.fired {
		if _, ok := visible[callID]; !ok {
			delete(s.fired, callID)
		}
	}
	for callID := range s.snoozed {
		if _, ok := visible[callID]; !ok {
			delete(s.snoozed, callID)
		}
	}

	for id, call := range visible {
		s.lastVisible[id] = call
		s.fireOffsets(call, now)

		if remindAt, ok := s.snoozed[id]; ok && !now.Before(remindAt) {
			delete(s.snoozed, id)
			s.deliver(call, KindSnooze, 0, now)
		}
	}
}

// fireOffsets emits at most one reminder per call per scan. Every unfired
// offset at or beyond the minutes remaining is consumed, but only the
// smallest of them is delivered; the rest were missed and stay silent.
func (s *Scheduler) fireOffsets(call application.Call, now time.Time) {
	minutesUntil := int(call.ScheduledAt.Sub(now) / time.Minute)
	if minutesUntil < 0 {
		minutesUntil = 0
	}

	firedSet := s.fired[call.ID]

	var eligible []int
	for _, offset := range s.offsets {
		if offset >= minutesUntil && !firedSet[offset] {
			eligible = append(eligible, offset)
		}
	}
	if len(eligible) == 0 {
		return
	}

	if firedSet == nil {
		firedSet = make(map[int]bool)
		s.fired[call.ID] = firedSet
	}
	for _, offset := range eligible {
		firedSet[offset] = true
	}

	// offsets are sorted ascending, so the first eligible entry is the
	// reminder closest to the call.
	s.deliver(call, KindReminder, eligible[0], now)
}

func (s *Scheduler) handleCommand(cmd command) {
	switch cmd.kind {
	case commandSnooze:
		s.snoozed[cmd.callID] = cmd.remindAt
	case commandDismiss:
		delete(s.snoozed, cmd.callID)
		s.sink.Withdraw(cmd.callID)
	case commandEvent:
		s.handleEvent(cmd.event)
	}
}

func (s *Scheduler) handleEvent(event application.CallEvent) {
	callID := event.Call.ID

	switch event.Type {
	case application.CallEventStarted:
		// A started call still gets its moment-of-call reminder if that
		// offset never fired, using the last snapshot the viewer saw.
		if snapshot, ok := s.lastVisible[callID]; ok && !s.fired[callID][0] {
			s.deliver(snapshot, KindReminder, 0, event.OccurredAt)
		}
		s.clearCall(callID)
	case application.CallEventRescheduled:
		// The new time re-arms every offset and drops stale reminders.
		delete(s.fired, callID)
		delete(s.snoozed, callID)
		if _, ok := s.lastVisible[callID]; ok {
			s.lastVisible[callID] = event.Call
		}
		s.sink.Withdraw(callID)
	case application.CallEventCompleted, application.CallEventFailed,
		application.CallEventCancelled, application.CallEventDeleted:
		s.clearCall(callID)
		s.sink.Withdraw(callID)
	}
}

func (s *Scheduler) clearCall(callID string) {
	delete(s.fired, callID)
	delete(s.snoozed, callID)
	delete(s.lastVisible, callID)
}

func (s *Scheduler) deliver(call application.Call, kind NotificationKind, offset int, firedAt time.Time) {
	notification := Notification{
		ID:            s.idGenerator(),
		ViewerID:      s.viewerID,
		CallID:        call.ID,
		Call:          call,
		Kind:          kind,
		OffsetMinutes: offset,
		FiredAt:       firedAt,
	}
	s.sink.Deliver(notification)
	s.logger.Info("notification delivered",
		"call_id", call.ID,
		"kind", string(kind),
		"offset_minutes", offset,
	)
}

func normalizeOffsets(offsets []int) []int {
	if len(offsets) == 0 {
		offsets = DefaultReminderOffsets
	}
	seen := make(map[int]bool, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, offset := range offsets {
		if offset < 0 || seen[offset] {
			continue
		}
		seen[offset] = true
		out = append(out, offset)
	}
	sort.Ints(out)
	return out
}
