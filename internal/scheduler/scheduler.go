// Package scheduler implements the Scheduler (C5): a concurrency-safe state
// machine that dispenses recipes from an ordered sequence of build groups
// to a pool of workers and tracks their progress to completion.
//
// Grounded on internal/batch/batch.go's scheduler type, which likewise
// packages mutable build state behind a single mutex (statusMu there;
// here the mutex protects the full dispatch state, since this scheduler is
// a passive API polled by workers rather than a channel-driven run loop).
package scheduler

import (
	"sort"
	"sync"

	"github.com/starlingx/dscbuild"
)

type memberState int

const (
	stateWaiting memberState = iota
	stateReady
	stateBuilding
	stateAccomplished
)

func (s memberState) String() string {
	switch s {
	case stateWaiting:
		return "waiting"
	case stateReady:
		return "ready"
	case stateBuilding:
		return "building"
	case stateAccomplished:
		return "accomplished"
	default:
		return "unknown"
	}
}

type simpleMember struct {
	state     memberState
	waitingOn map[dscbuild.RecipeID]bool
	priority  int64
}

// Scheduler dispenses recipes from a fixed sequence of build groups. All
// exported methods are safe for concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	g      *dscbuild.DependencyGraph
	groups []*dscbuild.BuildGroup
	cur    int // index into groups; len(groups) once done

	// Active state for groups[cur]. Exactly one of the two blocks below is
	// populated, matching groups[cur].Kind.
	simple map[dscbuild.RecipeID]*simpleMember

	circOrder    []dscbuild.RecipeID
	circIdx      int
	circBuilding bool
}

// New constructs a Scheduler over groups, built by internal/group.Group and
// internal/priority.Assign, dispatching against the dependency graph g.
func New(g *dscbuild.DependencyGraph, groups []*dscbuild.BuildGroup) *Scheduler {
	s := &Scheduler{g: g, groups: groups}
	s.activateCurrent()
	return s
}

// activateCurrent initializes the live dispatch state for groups[s.cur].
// Callers must hold s.mu.
func (s *Scheduler) activateCurrent() {
	s.simple = nil
	s.circOrder = nil
	if s.cur >= len(s.groups) {
		return
	}
	grp := s.groups[s.cur]
	if grp.Kind == dscbuild.CircularGroup {
		s.circOrder = grp.Order
		s.circIdx = 0
		s.circBuilding = false
		return
	}

	members := make(map[dscbuild.RecipeID]bool, len(grp.Members))
	for _, id := range grp.Members {
		members[id] = true
	}
	s.simple = make(map[dscbuild.RecipeID]*simpleMember, len(grp.Members))
	for _, id := range grp.Members {
		waitingOn := make(map[dscbuild.RecipeID]bool)
		for dep := range s.g.On[id] {
			if members[dep] {
				waitingOn[dep] = true
			}
		}
		m := &simpleMember{waitingOn: waitingOn, priority: grp.Priorities[id]}
		if len(waitingOn) == 0 {
			m.state = stateReady
		} else {
			m.state = stateWaiting
		}
		s.simple[id] = m
	}
}

// Done reports whether every group has been accomplished.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur >= len(s.groups)
}

// NextBatch returns up to n recipes currently ready to dispatch, marking
// them building. n must satisfy 1 <= n <= 99. A Circular group yields at
// most one recipe at a time. Returns an empty slice once the schedule is
// done or nothing is currently dispatchable.
func (s *Scheduler) NextBatch(n int) ([]dscbuild.RecipeID, error) {
	if n < 1 || n > 99 {
		return nil, &dscbuild.InvalidBatchSizeError{N: n}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur >= len(s.groups) {
		return nil, nil
	}

	if s.groups[s.cur].Kind == dscbuild.CircularGroup {
		if s.circBuilding || s.circIdx >= len(s.circOrder) {
			return nil, nil
		}
		s.circBuilding = true
		return []dscbuild.RecipeID{s.circOrder[s.circIdx]}, nil
	}

	ready := make([]dscbuild.RecipeID, 0, len(s.simple))
	for id, m := range s.simple {
		if m.state == stateReady {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		pi, pj := s.simple[ready[i]].priority, s.simple[ready[j]].priority
		if pi != pj {
			return pi > pj
		}
		return s.g.Recipes[ready[i]].Name < s.g.Recipes[ready[j]].Name
	})
	if len(ready) > n {
		ready = ready[:n]
	}
	for _, id := range ready {
		s.simple[id].state = stateBuilding
	}
	return ready, nil
}

// ReportSuccess transitions id to accomplished, cascading any newly-ready
// dependents and advancing the group pointer if id completed its group.
func (s *Scheduler) ReportSuccess(id dscbuild.RecipeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur >= len(s.groups) {
		return &dscbuild.NotDispatchedError{ID: id, Current: "done"}
	}

	if s.groups[s.cur].Kind == dscbuild.CircularGroup {
		if !s.circBuilding || s.circIdx >= len(s.circOrder) || s.circOrder[s.circIdx] != id {
			return &dscbuild.NotDispatchedError{ID: id, Current: s.circularCurrentState(id)}
		}
		s.circBuilding = false
		s.circIdx++
		if s.circIdx >= len(s.circOrder) {
			s.cur++
			s.activateCurrent()
		}
		return nil
	}

	m, ok := s.simple[id]
	if !ok || m.state != stateBuilding {
		return &dscbuild.NotDispatchedError{ID: id, Current: s.simpleCurrentState(m, ok)}
	}
	m.state = stateAccomplished

	for dependent := range s.g.By[id] {
		other, ok := s.simple[dependent]
		if !ok || !other.waitingOn[id] {
			continue
		}
		delete(other.waitingOn, id)
		if len(other.waitingOn) == 0 && other.state == stateWaiting {
			other.state = stateReady
		}
	}

	if s.allAccomplished() {
		s.cur++
		s.activateCurrent()
	}
	return nil
}

// ReportFailure returns id to ready (Simple groups) or re-heads it for
// immediate redispatch (Circular groups). It does not implement retry
// policy; callers may call it arbitrarily many times for the same id.
func (s *Scheduler) ReportFailure(id dscbuild.RecipeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur >= len(s.groups) {
		return &dscbuild.NotDispatchedError{ID: id, Current: "done"}
	}

	if s.groups[s.cur].Kind == dscbuild.CircularGroup {
		if !s.circBuilding || s.circIdx >= len(s.circOrder) || s.circOrder[s.circIdx] != id {
			return &dscbuild.NotDispatchedError{ID: id, Current: s.circularCurrentState(id)}
		}
		s.circBuilding = false
		return nil
	}

	m, ok := s.simple[id]
	if !ok || m.state != stateBuilding {
		return &dscbuild.NotDispatchedError{ID: id, Current: s.simpleCurrentState(m, ok)}
	}
	m.state = stateReady
	return nil
}

func (s *Scheduler) allAccomplished() bool {
	for _, m := range s.simple {
		if m.state != stateAccomplished {
			return false
		}
	}
	return true
}

func (s *Scheduler) simpleCurrentState(m *simpleMember, ok bool) string {
	if !ok {
		return "not a member of the current group"
	}
	return m.state.String()
}

func (s *Scheduler) circularCurrentState(id dscbuild.RecipeID) string {
	for i, member := range s.circOrder {
		if member != id {
			continue
		}
		switch {
		case i < s.circIdx:
			return stateAccomplished.String()
		case i > s.circIdx:
			return stateWaiting.String()
		case s.circBuilding:
			return stateBuilding.String()
		default:
			return stateReady.String()
		}
	}
	return "not a member of the current group"
}

// Stats returns a snapshot of progress across the whole schedule.
func (s *Scheduler) Stats() dscbuild.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := dscbuild.Stats{Groups: make([]dscbuild.GroupStats, len(s.groups))}
	for i, grp := range s.groups {
		gs := dscbuild.GroupStats{Kind: grp.Kind, Total: len(grp.Members)}
		switch {
		case i < s.cur:
			gs.Accomplished = len(grp.Members)
		case i > s.cur:
			gs.Waiting = len(grp.Members)
		case grp.Kind == dscbuild.CircularGroup:
			gs.Accomplished = s.circIdx
			remaining := len(grp.Members) - s.circIdx
			if s.circBuilding {
				gs.Building = 1
				remaining--
			} else if remaining > 0 {
				gs.Ready = 1
				remaining--
			}
			gs.Waiting = remaining
		default:
			for _, m := range s.simple {
				switch m.state {
				case stateWaiting:
					gs.Waiting++
				case stateReady:
					gs.Ready++
				case stateBuilding:
					gs.Building++
				case stateAccomplished:
					gs.Accomplished++
				}
			}
		}
		stats.Groups[i] = gs
		stats.Total += gs.Total
		stats.Waiting += gs.Waiting
		stats.Ready += gs.Ready
		stats.Building += gs.Building
		stats.Accomplished += gs.Accomplished
	}
	return stats
}
