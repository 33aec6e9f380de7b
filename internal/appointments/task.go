package appointments

import (
	"context"
	"sync"
)

// Task tracks the delayed completion started by Confirm.
type Task struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Done is closed once the request has been scheduled or the workflow shut down.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err is nil after a normal completion and non-nil if the workflow shut down
// before the delay elapsed. Only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
