// Based on https://github.com/256dpi/gomqtt/blob/e7823dfd0958f968b8e69eb1bf235456316c54fb/client/future/future.go
// with completed/cancelled channels exported
// which allows to wait on result in custom select statement.

package helpers

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

var ErrFutureCancelled = errors.New("future cancelled")

type Future struct {
	result    interface{}
	completed chan struct{}
	cancelled chan struct{}
	done      bool
	mutex     sync.Mutex
}

func NewFuture() *Future {
	return &Future{
		completed: make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

func (f *Future) Cancelled() <-chan struct{} { return f.cancelled }
func (f *Future) Completed() <-chan struct{} { return f.completed }

// Complete stores result and wakes up waiters. Only first Complete or Cancel wins.
func (f *Future) Complete(result interface{}) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.done {
		return false
	}

	f.result = result
	close(f.completed)
	f.done = true
	return true
}

func (f *Future) Cancel(result interface{}) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.done {
		return false
	}

	f.result = result
	close(f.cancelled)
	f.done = true
	return true
}

func (f *Future) Result() interface{} {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.result
}

// Wait blocks until future is completed, cancelled or ctx is done.
// Context expiry cancels the future with nil result.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.completed:
		return f.Result(), nil

	case <-f.cancelled:
		return f.Result(), ErrFutureCancelled

	case <-ctx.Done():
		if f.Cancel(nil) {
			return nil, ctx.Err()
		}
		// lost the race to Complete/Cancel
		return f.Wait(context.Background())
	}
}
