package engine

import (
	"sync"
	"time"
)

// Handle cancels a scheduled task. Stop is idempotent and safe to call from
// inside the task itself.
type Handle interface {
	Stop()
}

// Scheduler runs a task repeatedly until its handle is stopped.
type Scheduler interface {
	Every(interval time.Duration, task func()) Handle
}

// TickerScheduler runs tasks on a goroutine driven by time.Ticker.
type TickerScheduler struct{}

// Every starts a goroutine that calls task once per interval.
func (TickerScheduler) Every(interval time.Duration, task func()) Handle {
	h := &tickerHandle{stop: make(chan struct{})}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				select {
				case <-h.stop:
					return
				default:
				}
				task()
			}
		}
	}()
	return h
}

type tickerHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *tickerHandle) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// ManualScheduler runs tasks only when Tick or Advance is called. It stands
// in for wall-clock time in tests.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	sched    *ManualScheduler
	task     func()
	interval time.Duration
	stopped  bool
}

// NewManualScheduler returns an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Every registers task. It runs once per Tick until stopped.
func (m *ManualScheduler) Every(interval time.Duration, task func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTask{sched: m, task: task, interval: interval}
	m.tasks = append(m.tasks, t)
	return t
}

// Tick runs every live task once and returns how many ran.
func (m *ManualScheduler) Tick() int {
	m.mu.Lock()
	tasks := append([]*manualTask(nil), m.tasks...)
	m.mu.Unlock()

	ran := 0
	for _, t := range tasks {
		if !t.live() {
			continue
		}
		t.task()
		ran++
	}
	m.prune()
	return ran
}

// Advance calls Tick n times.
func (m *ManualScheduler) Advance(n int) {
	for range n {
		m.Tick()
	}
}

// Pending returns the number of live tasks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Interval returns the interval of the most recently registered live task,
// or zero when none is live.
func (m *ManualScheduler) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.tasks) - 1; i >= 0; i-- {
		if !m.tasks[i].stopped {
			return m.tasks[i].interval
		}
	}
	return 0
}

func (m *ManualScheduler) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.tasks = live
}

func (t *manualTask) live() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return !t.stopped
}

func (t *manualTask) Stop() {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	t.stopped = true
}
