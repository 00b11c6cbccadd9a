package pyramid

import "sync"

// mailbox is an unbounded queue of closures executed by the owner
// goroutine. Posting never blocks, so cache callbacks cannot stall I/O.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// drain runs queued closures, including ones posted while draining, and
// returns how many ran.
func (m *mailbox) drain() int {
	n := 0
	for {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		m.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
		}
		n += len(batch)
	}
}

// layoutGuard counts nested layout regions. A layout request made inside
// one is deferred until the outermost region exits.
type layoutGuard struct {
	depth    int
	deferred bool
}

func (g *layoutGuard) enter() {
	g.depth++
}

// exit reports whether a deferred request must now be flushed.
func (g *layoutGuard) exit() bool {
	g.depth--
	if g.depth == 0 && g.deferred {
		g.deferred = false
		return true
	}
	return false
}

// request reports whether layout may be scheduled right away.
func (g *layoutGuard) request() bool {
	if g.depth > 0 {
		g.deferred = true
		return false
	}
	return true
}
