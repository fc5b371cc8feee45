package launch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/pipeline"
)

const (
	defaultGracefulTimeout = 5 * time.Second
	defaultKillTimeout     = 5 * time.Second
	defaultReadyTimeout    = 5 * time.Second
	defaultTailLines       = 64
)

type handle struct {
	id string
}

func (h handle) ID() string { return h.id }

// Service is a pipeline.Service backed by child processes.
type Service struct {
	dialect Dialect
	logger  logging.Logger
	output  logging.Logger

	gracefulTimeout time.Duration // wait bound when the caller passes none
	killTimeout     time.Duration // wait bound after SIGKILL
	readyTimeout    time.Duration // longest SendFinish waits for the ready line
	tailLines       int

	mu    sync.Mutex
	procs map[string]*process
}

// Option configures a Service.
type Option func(*Service)

// WithGracefulTimeout bounds WaitForTerminalEvent when called without a
// timeout.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *Service) { s.gracefulTimeout = d }
}

// WithKillTimeout bounds the wait after a forced kill.
func WithKillTimeout(d time.Duration) Option {
	return func(s *Service) { s.killTimeout = d }
}

// WithReadyTimeout bounds how long SendFinish waits for the child to
// report ready before signalling it anyway.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Service) { s.readyTimeout = d }
}

// WithOutputLogger sets the logger for child output. Defaults to the
// module logger named after the dialect.
func WithOutputLogger(logger logging.Logger) Option {
	return func(s *Service) { s.output = logger }
}

// WithTailLines sets how many output lines are kept for diagnostics.
func WithTailLines(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.tailLines = n
		}
	}
}

// New returns a Service running dialect programs.
func New(dialect Dialect, logger logging.Logger, opts ...Option) *Service {
	s := &Service{
		dialect:         dialect,
		logger:          logger,
		gracefulTimeout: defaultGracefulTimeout,
		killTimeout:     defaultKillTimeout,
		readyTimeout:    defaultReadyTimeout,
		tailLines:       defaultTailLines,
		procs:           make(map[string]*process),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.output == nil {
		s.output = logging.GetLogger(dialect.Name())
	}
	return s
}

// Init checks that the dialect's program is installed.
func (s *Service) Init() error {
	path, err := exec.LookPath(s.dialect.Binary())
	if err != nil {
		return fmt.Errorf("%s backend: %w", s.dialect.Name(), err)
	}
	s.logger.Info("Pipeline backend ready", "backend", s.dialect.Name(), "binary", path)
	return nil
}

// Deinit kills any child still alive.
func (s *Service) Deinit() {
	s.mu.Lock()
	procs := make([]*process, 0, len(s.procs))
	for id, p := range s.procs {
		procs = append(procs, p)
		delete(s.procs, id)
	}
	s.mu.Unlock()

	for _, p := range procs {
		p.kill(s.killTimeout)
	}
}

// Build renders the command for desc. Nothing runs until SetState(Playing).
func (s *Service) Build(desc pipeline.Description) (pipeline.Handle, error) {
	args, err := s.dialect.Command(desc)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s rendered an empty command", s.dialect.Name())
	}
	if dir := filepath.Dir(desc.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("output directory: %w", err)
		}
	}

	id := uuid.NewString()
	p := newProcess(id, args, s.dialect, s.logger, s.output, s.tailLines)

	s.mu.Lock()
	s.procs[id] = p
	s.mu.Unlock()

	s.logger.Debug("Pipeline built", "id", id, "backend", s.dialect.Name(), "args", args)
	return handle{id: id}, nil
}

// SetState starts the child on Playing and kills it on Null. Paused has no
// process equivalent.
func (s *Service) SetState(h pipeline.Handle, state pipeline.State) error {
	p, err := s.lookup(h)
	if err != nil {
		return err
	}

	switch state {
	case pipeline.StatePlaying:
		if p.exited() {
			return fmt.Errorf("process %s already exited", p.id)
		}
		return p.start()
	case pipeline.StatePaused:
		s.logger.Debug("Paused is a no-op for processes", "id", p.id)
		return nil
	case pipeline.StateNull:
		p.kill(s.killTimeout)
		return nil
	default:
		return fmt.Errorf("unsupported state %s", state)
	}
}

// SendFinish delivers SIGINT after the child reported ready. A child that
// already exited needs no signal.
func (s *Service) SendFinish(h pipeline.Handle) error {
	p, err := s.lookup(h)
	if err != nil {
		return err
	}
	if !p.isStarted() {
		return fmt.Errorf("process %s was never started", p.id)
	}
	if p.exited() {
		s.logger.Debug("Process already exited, no finish signal needed", "id", p.id)
		return nil
	}
	return p.interrupt(s.readyTimeout)
}

// WaitForTerminalEvent waits for the child to exit and classifies its exit.
func (s *Service) WaitForTerminalEvent(h pipeline.Handle, timeout time.Duration) (*pipeline.Event, error) {
	p, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	if !p.isStarted() {
		return nil, fmt.Errorf("process %s was never started", p.id)
	}
	if timeout <= 0 {
		timeout = s.gracefulTimeout
	}
	if !p.wait(timeout) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrWaitTimeout, timeout)
	}
	return s.terminalEvent(p), nil
}

func (s *Service) terminalEvent(p *process) *pipeline.Event {
	code := p.exitCode()
	if s.dialect.CleanExit(code, p.finished.Load()) {
		s.logger.Info("Process exited", "id", p.id, "exit_code", code)
		return pipeline.NewEvent(pipeline.EventEOS, s.dialect.Name(), "end of stream", "", nil)
	}

	s.logger.Warn("Process exited", "id", p.id, "exit_code", code)
	lines := p.tail.snapshot()
	if ev := s.dialect.TerminalError(lines); ev != nil {
		return ev
	}
	if sig := p.exitSignal(); sig != "" {
		return pipeline.NewEvent(pipeline.EventUnknown, s.dialect.Name(), "terminated by "+sig, "", nil)
	}
	return pipeline.NewEvent(pipeline.EventError, s.dialect.Name(), fmt.Sprintf("exited with status %d", code), "", nil)
}

// Release kills the child if it is still alive and forgets the handle.
func (s *Service) Release(h pipeline.Handle) {
	s.mu.Lock()
	p, ok := s.procs[h.ID()]
	delete(s.procs, h.ID())
	s.mu.Unlock()
	if !ok {
		return
	}
	p.kill(s.killTimeout)
}

func (s *Service) lookup(h pipeline.Handle) (*process, error) {
	if h == nil {
		return nil, pipeline.ErrUnknownHandle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[h.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrUnknownHandle, h.ID())
	}
	return p, nil
}

var (
	_ pipeline.Service = (*Service)(nil)
	_ pipeline.Engine  = (*Service)(nil)
)
