package dag

import "sync"

// Tracker counts unfinished dependencies per stage and releases stages
// as they become ready. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	g       *Graph
	pending map[string]int
	started map[string]bool
	done    int
}

// NewTracker starts tracking a fresh run of g.
func (g *Graph) NewTracker() *Tracker {
	t := &Tracker{
		g:       g,
		pending: make(map[string]int, len(g.order)),
		started: make(map[string]bool, len(g.order)),
	}
	for _, id := range g.order {
		t.pending[id] = len(g.deps[id])
	}
	return t
}

// Ready returns stages with no unfinished dependencies that have not been
// handed out yet, in declaration order, and marks them started.
func (t *Tracker) Ready() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, id := range t.g.order {
		if !t.started[id] && t.pending[id] == 0 {
			t.started[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Done marks id finished and decrements its dependents.
func (t *Tracker) Done(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	for _, dep := range t.g.dependents[id] {
		t.pending[dep]--
	}
}

// Finished reports whether every stage has been marked done.
func (t *Tracker) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done == len(t.g.order)
}
