//go:build gst

package gstreamer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/pipeline"
)

const defaultWaitTimeout = 10 * time.Second

type handle struct {
	id string
}

func (h handle) ID() string { return h.id }

// Service builds pipelines with gst.NewPipelineFromString.
type Service struct {
	logger      logging.Logger
	waitTimeout time.Duration

	mu        sync.Mutex
	pipelines map[string]*gst.Pipeline
}

// Open returns an in-process backend. Call Init before building.
func Open(logger logging.Logger) (Backend, error) {
	return New(logger), nil
}

// New returns a Service.
func New(logger logging.Logger) *Service {
	return &Service{
		logger:      logger,
		waitTimeout: defaultWaitTimeout,
		pipelines:   make(map[string]*gst.Pipeline),
	}
}

// Init initializes GStreamer. Wrap the Service in pipeline.NewOnce to keep
// it to one call per process.
func (s *Service) Init() error {
	gst.Init(nil)
	s.logger.Info("GStreamer initialized")
	return nil
}

// Deinit drops remaining pipelines and shuts GStreamer down.
func (s *Service) Deinit() {
	s.mu.Lock()
	for id, p := range s.pipelines {
		if err := p.SetState(gst.StateNull); err != nil {
			s.logger.Warn("Failed to stop pipeline on shutdown", "id", id, "error", err)
		}
		delete(s.pipelines, id)
	}
	s.mu.Unlock()

	gst.Deinit()
	s.logger.Info("GStreamer deinitialized")
}

// Build parses the description's launch line.
func (s *Service) Build(desc pipeline.Description) (pipeline.Handle, error) {
	launch := desc.Launch()
	p, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("parse launch line: %w", err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.pipelines[id] = p
	s.mu.Unlock()

	s.logger.Debug("Pipeline built", "id", id, "launch", launch)
	return handle{id: id}, nil
}

// SetState changes the pipeline state.
func (s *Service) SetState(h pipeline.Handle, state pipeline.State) error {
	p, err := s.lookup(h)
	if err != nil {
		return err
	}
	return p.SetState(toGstState(state))
}

// SendFinish pushes an end-of-stream event into the pipeline.
func (s *Service) SendFinish(h pipeline.Handle) error {
	p, err := s.lookup(h)
	if err != nil {
		return err
	}
	if !p.SendEvent(gst.NewEOSEvent()) {
		return fmt.Errorf("pipeline %s refused end-of-stream", h.ID())
	}
	return nil
}

// WaitForTerminalEvent pops the first error or end-of-stream message off
// the pipeline bus.
func (s *Service) WaitForTerminalEvent(h pipeline.Handle, timeout time.Duration) (*pipeline.Event, error) {
	p, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.waitTimeout
	}

	msg := p.GetPipelineBus().TimedPopFiltered(timeout, gst.MessageError|gst.MessageEOS)
	if msg == nil {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrWaitTimeout, timeout)
	}

	// The wrapper frees the message once it is unreachable; release drops
	// our reference.
	release := func() { msg = nil }

	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		return pipeline.NewEvent(pipeline.EventError, msg.Source(), gerr.Error(), gerr.DebugString(), release), nil
	case gst.MessageEOS:
		return pipeline.NewEvent(pipeline.EventEOS, msg.Source(), "end of stream", "", release), nil
	default:
		return pipeline.NewEvent(pipeline.EventUnknown, msg.Source(), fmt.Sprint(msg.Type()), "", release), nil
	}
}

// Release returns the pipeline to NULL and forgets it. Calling it twice is
// a no-op.
func (s *Service) Release(h pipeline.Handle) {
	s.mu.Lock()
	p, ok := s.pipelines[h.ID()]
	delete(s.pipelines, h.ID())
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := p.SetState(gst.StateNull); err != nil {
		s.logger.Warn("Failed to reset pipeline on release", "id", h.ID(), "error", err)
	}
}

func (s *Service) lookup(h pipeline.Handle) (*gst.Pipeline, error) {
	if h == nil {
		return nil, pipeline.ErrUnknownHandle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[h.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownHandle, h.ID())
	}
	return p, nil
}

func toGstState(s pipeline.State) gst.State {
	switch s {
	case pipeline.StatePlaying:
		return gst.StatePlaying
	case pipeline.StatePaused:
		return gst.StatePaused
	default:
		return gst.StateNull
	}
}
