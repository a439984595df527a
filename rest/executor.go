package rest

import "sync"

// Executor runs completion callbacks off the request workers, so slow user
// code never stalls request processing.
type Executor interface {
	Submit(fn func())
}

// GoExecutor runs every callback on its own goroutine.
type GoExecutor struct{}

func (GoExecutor) Submit(fn func()) { go fn() }

// CallbackPool is a fixed-size worker pool Executor.
type CallbackPool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewCallbackPool starts workers goroutines draining a queue of queueSize.
func NewCallbackPool(workers, queueSize int) *CallbackPool {
	p := &CallbackPool{tasks: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for fn := range p.tasks {
				fn()
			}
		}()
	}
	return p
}

// Submit queues a callback, blocking when the queue is full.
func (p *CallbackPool) Submit(fn func()) {
	p.tasks <- fn
}

// Close stops accepting work and waits for queued callbacks to finish.
func (p *CallbackPool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
