// Package task models user actions that call out to the backend. Each task
// is idle, in flight, or settled with a success or a failure.
package task

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrInFlight = errors.New("action already in progress")

type State string

const (
	Idle      State = "idle"
	InFlight  State = "in_flight"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// Settled reports whether s is a terminal state of a run
func (s State) Settled() bool {
	return s == Succeeded || s == Failed
}

// Snapshot is the observable state of a task
type Snapshot struct {
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	SettledAt time.Time `json:"settled_at,omitempty"`
}

type Task struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

func New() *Task {
	return &Task{snap: Snapshot{State: Idle}, now: time.Now}
}

// Run executes fn unless a previous run is still in flight, in which case it
// returns ErrInFlight without calling fn. fn's error is recorded and returned.
func (t *Task) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	if t.snap.State == InFlight {
		t.mu.Unlock()
		return ErrInFlight
	}
	t.snap = Snapshot{State: InFlight, StartedAt: t.now()}
	t.mu.Unlock()

	err := fn(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.SettledAt = t.now()
	if err != nil {
		t.snap.State = Failed
		t.snap.Error = err.Error()
		return err
	}
	t.snap.State = Succeeded
	return nil
}

func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Reset returns a settled task to Idle. An in-flight task is left alone.
func (t *Task) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.State != InFlight {
		t.snap = Snapshot{State: Idle}
	}
}

// Registry holds one task per (owner, action) pair
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

func registryKey(owner, action string) string {
	return owner + "\x00" + action
}

// Get returns the task for owner and action, creating it on first use
func (r *Registry) Get(owner, action string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(owner, action)
	t, ok := r.tasks[key]
	if !ok {
		t = New()
		r.tasks[key] = t
	}
	return t
}

// Snapshot returns the state of a task without creating it
func (r *Registry) Snapshot(owner, action string) Snapshot {
	r.mu.Lock()
	t, ok := r.tasks[registryKey(owner, action)]
	r.mu.Unlock()
	if !ok {
		return Snapshot{State: Idle}
	}
	return t.Snapshot()
}

// Run runs fn in the task for owner and action
func (r *Registry) Run(ctx context.Context, owner, action string, fn func(ctx context.Context) error) error {
	return r.Get(owner, action).Run(ctx, fn)
}

// Forget drops every settled or idle task of owner
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := owner + "\x00"
	for key, t := range r.tasks {
		if strings.HasPrefix(key, prefix) && t.Snapshot().State != InFlight {
			delete(r.tasks, key)
		}
	}
}
