package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/stay-scheduler/internal/clock"
)

// Task is a deferred callback.
type Task func(ctx context.Context)

// Handle identifies a scheduled task. The zero Handle is never issued.
type Handle uint64

// Scheduler runs tasks at or after the instant they were scheduled for.
// Due tasks are picked up on every tick of Interval.
type Scheduler struct {
	Clock    clock.Clock
	Interval time.Duration
	Logger   logrus.FieldLogger

	mu    sync.Mutex
	seq   Handle
	queue taskQueue
	byID  map[Handle]*entry
}

func New(c clock.Clock, interval time.Duration, logger logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		Clock:    c,
		Interval: interval,
		Logger:   logger,
		byID:     make(map[Handle]*entry),
	}
}

// Schedule registers fn to run at instant at. Instants in the past run on
// the next tick.
func (s *Scheduler) Schedule(at time.Time, name string, fn Task) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byID == nil {
		s.byID = make(map[Handle]*entry)
	}
	s.seq++
	e := &entry{handle: s.seq, name: name, at: at, fn: fn}
	heap.Push(&s.queue, e)
	s.byID[e.handle] = e
	return e.handle
}

// Cancel drops a task that has not started yet. It reports whether the
// task was still queued.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[h]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, e.index)
	delete(s.byID, h)
	return true
}

// Len is the number of queued tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Next returns the instant of the earliest queued task.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].at, true
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.RunDue(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue starts every task whose instant has passed, waits for all of them
// and returns how many ran.
func (s *Scheduler) RunDue(ctx context.Context) int {
	due := s.popDue(s.Clock.Now())

	var wg sync.WaitGroup
	for _, e := range due {
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.run(ctx, e)
		}()
	}
	wg.Wait()
	return len(due)
}

func (s *Scheduler) popDue(now time.Time) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*entry
	for len(s.queue) > 0 && !s.queue[0].at.After(now) {
		e := heap.Pop(&s.queue).(*entry)
		delete(s.byID, e.handle)
		due = append(due, e)
	}
	return due
}

func (s *Scheduler) run(ctx context.Context, e *entry) {
	defer func() {
		if r := recover(); r != nil && s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{"task": e.name, "panic": r}).Error("scheduler: task panicked")
		}
	}()
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"task": e.name, "due": e.at.Format(time.RFC3339)}).Debug("scheduler: running task")
	}
	e.fn(ctx)
}

type entry struct {
	handle Handle
	name   string
	at     time.Time
	fn     Task
	index  int
}

// taskQueue orders entries by instant, then by scheduling order.
type taskQueue []*entry

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].handle < q[j].handle
	}
	return q[i].at.Before(q[j].at)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
