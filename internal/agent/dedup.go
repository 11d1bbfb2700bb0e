package agent

import "sync"

// ProcessedSet tracks which ticket numbers have been fully processed in
// this process lifetime. The check-then-insert is atomic so two
// concurrent submissions of the same number cannot both pass; a failed
// pipeline releases its reservation so the ticket can be resubmitted.
type ProcessedSet struct {
	mu  sync.Mutex
	set map[int]struct{}
}

// NewProcessedSet creates an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{set: make(map[int]struct{})}
}

// Reserve atomically checks and inserts the number. It returns false when
// the number is already present.
func (p *ProcessedSet) Reserve(number int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.set[number]; ok {
		return false
	}
	p.set[number] = struct{}{}
	return true
}

// Release removes a reservation taken by a pipeline run that did not
// reach DONE.
func (p *ProcessedSet) Release(number int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.set, number)
}

// Contains reports whether the number is marked.
func (p *ProcessedSet) Contains(number int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.set[number]
	return ok
}

// Len reports the number of marked tickets.
func (p *ProcessedSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.set)
}

// Clear empties the set and returns how many entries it dropped. This is
// the explicit operator action that re-opens previously processed
// numbers.
func (p *ProcessedSet) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.set)
	p.set = make(map[int]struct{})
	return n
}
