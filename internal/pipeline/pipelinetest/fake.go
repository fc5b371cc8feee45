// Package pipelinetest provides an in-memory pipeline.Service for tests.
package pipelinetest

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/videosaver/internal/pipeline"
)

// Handle is the fake's pipeline handle.
type Handle struct {
	id   string
	Desc pipeline.Description
}

// ID implements pipeline.Handle.
func (h *Handle) ID() string { return h.id }

// Call records one Service invocation.
type Call struct {
	Op     string // build, set-state, finish, wait, release
	Handle string
	State  pipeline.State
}

// Service is a scriptable fake. Zero value is ready to use and behaves
// like a healthy engine: every build succeeds and every drain ends in EOS.
type Service struct {
	mu sync.Mutex

	// BuildErr fails Build when set.
	BuildErr error
	// StateErr fails SetState for the given target states.
	StateErr map[pipeline.State]error
	// FinishErr fails SendFinish when set.
	FinishErr error
	// WaitErr is returned by WaitForTerminalEvent together with a nil event.
	WaitErr error
	// NextEvent, when set, produces the terminal event for a handle.
	NextEvent func(h *Handle) *pipeline.Event

	nextID        int
	calls         []Call
	built         []pipeline.Description
	live          map[string]*Handle
	releases      map[string]int
	eventReleases int
	waitTimeouts  []time.Duration
}

func (s *Service) record(c Call) {
	s.calls = append(s.calls, c)
}

// Build implements pipeline.Service.
func (s *Service) Build(desc pipeline.Description) (pipeline.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(Call{Op: "build"})
	if s.BuildErr != nil {
		return nil, s.BuildErr
	}
	if s.live == nil {
		s.live = make(map[string]*Handle)
		s.releases = make(map[string]int)
	}

	h := &Handle{id: fmt.Sprintf("fake-%d", s.nextID), Desc: desc}
	s.nextID++
	s.live[h.id] = h
	s.built = append(s.built, desc)
	return h, nil
}

// SetState implements pipeline.Service.
func (s *Service) SetState(h pipeline.Handle, state pipeline.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(Call{Op: "set-state", Handle: h.ID(), State: state})
	if _, ok := s.live[h.ID()]; !ok {
		return pipeline.ErrUnknownHandle
	}
	return s.StateErr[state]
}

// SendFinish implements pipeline.Service.
func (s *Service) SendFinish(h pipeline.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(Call{Op: "finish", Handle: h.ID()})
	return s.FinishErr
}

// WaitForTerminalEvent implements pipeline.Service.
func (s *Service) WaitForTerminalEvent(h pipeline.Handle, timeout time.Duration) (*pipeline.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(Call{Op: "wait", Handle: h.ID()})
	s.waitTimeouts = append(s.waitTimeouts, timeout)
	if s.WaitErr != nil {
		return nil, s.WaitErr
	}

	release := func() {
		s.mu.Lock()
		s.eventReleases++
		s.mu.Unlock()
	}
	if s.NextEvent != nil {
		fh, _ := h.(*Handle)
		ev := s.NextEvent(fh)
		if ev == nil {
			return nil, nil
		}
		return pipeline.NewEvent(ev.Kind, ev.Source, ev.Message, ev.Detail, release), nil
	}
	return pipeline.NewEvent(pipeline.EventEOS, "pipeline0", "end of stream", "", release), nil
}

// Release implements pipeline.Service.
func (s *Service) Release(h pipeline.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(Call{Op: "release", Handle: h.ID()})
	if s.releases == nil {
		s.releases = make(map[string]int)
	}
	s.releases[h.ID()]++
	delete(s.live, h.ID())
}

// Calls returns a copy of the recorded invocations.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Ops returns just the operation names, in order.
func (s *Service) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]string, len(s.calls))
	for i, c := range s.calls {
		ops[i] = c.Op
	}
	return ops
}

// Built returns every description passed to a successful Build.
func (s *Service) Built() []pipeline.Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.Description(nil), s.built...)
}

// Live returns the number of handles built but not yet released.
func (s *Service) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Releases returns how often the handle with id was released.
func (s *Service) Releases(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases[id]
}

// EventReleases returns how many terminal events were released.
func (s *Service) EventReleases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventReleases
}

// WaitTimeouts returns the timeouts passed to WaitForTerminalEvent.
func (s *Service) WaitTimeouts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waitTimeouts...)
}

// Reset clears recorded calls but keeps configured failures and live handles.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.built = nil
}
