package scraper

import (
	"sort"
	"sync"
	"time"
)

// State is the run-wide bookkeeping of the generation loop.
// processed only grows; a domain is recorded there when its generation is
// dispatched, so a domain can never be fetched twice.
type State struct {
	mu sync.Mutex

	processed      map[string]struct{}
	processedOrder []string
	blacklist      map[string]struct{}

	pending []string
	next    []string

	discovered      map[string]struct{}
	discoveredOrder []string

	results    map[time.Time]map[string]struct{}
	generation int
}

// NewState seeds the first generation with initial, dropping duplicates
func NewState(initial []string, blacklist []string) *State {
	s := &State{
		processed:  make(map[string]struct{}),
		blacklist:  make(map[string]struct{}, len(blacklist)),
		discovered: make(map[string]struct{}),
		results:    make(map[time.Time]map[string]struct{}),
	}
	for _, host := range blacklist {
		s.blacklist[host] = struct{}{}
	}

	seen := make(map[string]struct{}, len(initial))
	for _, d := range initial {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		s.pending = append(s.pending, d)
	}
	return s
}

// Done reports whether no domains remain to be processed
func (s *State) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}

// Generation returns the number of generations started so far
func (s *State) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// StartGeneration marks every pending domain as processed and returns them
// in order. Domains already processed are skipped.
func (s *State) StartGeneration() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	batch := make([]string, 0, len(s.pending))
	for _, d := range s.pending {
		if _, ok := s.processed[d]; ok {
			continue
		}
		s.processed[d] = struct{}{}
		s.processedOrder = append(s.processedOrder, d)
		batch = append(batch, d)
	}
	s.pending = nil
	return batch
}

// Offer proposes a host discovered through a cross-domain redirect.
// It is accepted for the next generation unless blacklisted, already
// processed, or already discovered.
func (s *State) Offer(host string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blacklist[host]; ok {
		return false
	}
	if _, ok := s.processed[host]; ok {
		return false
	}
	if _, ok := s.discovered[host]; ok {
		return false
	}
	s.discovered[host] = struct{}{}
	s.discoveredOrder = append(s.discoveredOrder, host)
	s.next = append(s.next, host)
	return true
}

// EndGeneration promotes the hosts accepted by Offer to the pending set
func (s *State) EndGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.next
	s.next = nil
}

// AddResult records a final URL for a target date
func (s *State) AddResult(date time.Time, finalURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date = date.UTC()
	set, ok := s.results[date]
	if !ok {
		set = make(map[string]struct{})
		s.results[date] = set
	}
	set[finalURL] = struct{}{}
}

// Results returns the deduplicated, sorted URLs per date
func (s *State) Results() map[time.Time][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[time.Time][]string, len(s.results))
	for date, set := range s.results {
		urls := make([]string, 0, len(set))
		for u := range set {
			urls = append(urls, u)
		}
		sort.Strings(urls)
		out[date] = urls
	}
	return out
}

// Processed returns every dispatched domain in dispatch order
func (s *State) Processed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.processedOrder...)
}

// Discovered returns the accepted discovered hosts in discovery order
func (s *State) Discovered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.discoveredOrder...)
}

// Pending returns the domains queued for the next generation
func (s *State) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pending...)
}
