package drive

import "sync"

// Publisher is a latest-value cell bridging the ingest goroutine and the
// drive loop. Each publish overwrites the whole snapshot, so a reader never
// observes a half-updated command tuple; no history is kept, since a stick
// position is meaningless once superseded.
type Publisher struct {
	mu    sync.RWMutex
	state State
}

// NewPublisher returns a publisher holding the startup state.
func NewPublisher() *Publisher {
	return &Publisher{state: NewState()}
}

// Latest returns the most recent snapshot. It never blocks on ingest and
// keeps serving the last written state after the ingestor has stopped.
func (p *Publisher) Latest() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Publish overwrites the snapshot.
func (p *Publisher) Publish(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}
