package mesh

import "sync"

// loop runs posted functions one at a time. The queue is unbounded so pion callbacks and the
// signaling reader never block on a busy session.
type loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
}

func newLoop() *loop {
	return &loop{wake: make(chan struct{}, 1)}
}

func (l *loop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// drain runs queued functions, including ones they post, until the queue is empty.
func (l *loop) drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

func (l *loop) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-l.wake:
			l.drain()
		}
	}
}

func (l *loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
}
