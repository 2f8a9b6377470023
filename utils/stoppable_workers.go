package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers owns a set of goroutines sharing one cancellable context, such as a frame
// loop and the image loads it is waiting on.
type StoppableWorkers struct {
	mu         sync.Mutex
	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
}

// NewStoppableWorkers returns workers whose context derives from parent.
func NewStoppableWorkers(parent context.Context) *StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(parent)
	return &StoppableWorkers{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
}

// Add starts each function in its own goroutine. Calls after Stop start nothing.
func (sw *StoppableWorkers) Add(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancelCtx.Err() != nil {
		return
	}

	sw.workers.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.workers.Done()
			f(sw.cancelCtx)
		})
	}
}

// Stop cancels the shared context and waits for every goroutine to return.
func (sw *StoppableWorkers) Stop() {
	sw.mu.Lock()
	sw.cancelFunc()
	sw.mu.Unlock()
	sw.workers.Wait()
}

// Context is the context handed to every worker.
func (sw *StoppableWorkers) Context() context.Context {
	return sw.cancelCtx
}
