package rotation

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/smazurov/videosaver/internal/events"
	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/metrics"
	"github.com/smazurov/videosaver/internal/pipeline"
)

// instance is one built pipeline. release runs at most once.
type instance struct {
	svc     pipeline.Service
	handle  pipeline.Handle
	desc    pipeline.Description
	release func()
}

func newInstance(svc pipeline.Service, handle pipeline.Handle, desc pipeline.Description) *instance {
	return &instance{
		svc:     svc,
		handle:  handle,
		desc:    desc,
		release: sync.OnceFunc(func() { svc.Release(handle) }),
	}
}

// Controller rotates a pipeline through numbered artifacts.
type Controller struct {
	svc    pipeline.Service
	cfg    pipeline.SessionConfig
	name   string
	logger logging.Logger
	bus    *events.Bus

	drainTimeout       time.Duration
	forcedDrainTimeout time.Duration
	drainLogInterval   time.Duration

	// opMu serializes Start, Advance and Stop.
	opMu sync.Mutex

	// mu guards the fields below; held only for short reads and writes.
	mu        sync.RWMutex
	state     State
	current   *instance
	sequence  int
	produced  int
	artifacts []string
}

// New returns an idle controller for cfg.
func New(svc pipeline.Service, cfg pipeline.SessionConfig, opts ...Option) (*Controller, error) {
	if svc == nil {
		return nil, fmt.Errorf("%w: nil pipeline service", pipeline.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		svc:                svc,
		cfg:                cfg.WithDefaults(),
		name:               defaultName,
		forcedDrainTimeout: defaultForcedDrainTimeout,
		drainLogInterval:   defaultDrainLogInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.GetLogger("rotation")
	}

	metrics.SetControllerState(c.name, Idle.String())
	metrics.SetSequence(c.name, c.sequence)
	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Sequence returns the index the next constructed pipeline will use.
func (c *Controller) Sequence() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sequence
}

// Produced returns the units advanced into the current artifact.
func (c *Controller) Produced() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.produced
}

// Handle returns the active pipeline handle, or nil when idle.
func (c *Controller) Handle() pipeline.Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	return c.current.handle
}

// Artifacts returns the paths of every artifact opened so far, in order.
func (c *Controller) Artifacts() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.artifacts...)
}

// Config returns the effective session configuration.
func (c *Controller) Config() pipeline.SessionConfig {
	return c.cfg
}

// Start builds a pipeline for the current sequence index and sets it
// playing. On failure the controller stays idle.
func (c *Controller) Start() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.start()
}

// Advance records one unit of work. When the current artifact is full the
// pipeline is drained and replaced before Advance returns.
func (c *Controller) Advance() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != Running {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotRunning, state)
	}
	c.produced++
	produced := c.produced
	from := c.sequence
	c.mu.Unlock()

	metrics.IncUnits(c.name)
	if produced < c.cfg.UnitsPerFile {
		return nil
	}

	c.logger.Info("Artifact full, rotating", "session", c.name, "sequence", from, "units", produced)
	c.stop()
	if err := c.start(); err != nil {
		return fmt.Errorf("rotate from artifact %d: %w", from, err)
	}

	to := c.Sequence()
	metrics.IncRotations(c.name)
	c.publish(events.RotationEvent{
		From:      from,
		To:        to,
		Timestamp: events.Timestamp(time.Now()),
	})
	return nil
}

// Stop drains and tears down the active pipeline. It is a no-op when idle
// and always leaves the controller idle.
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stop()
}

func (c *Controller) start() error {
	c.mu.RLock()
	state, seq := c.state, c.sequence
	c.mu.RUnlock()
	if state != Idle {
		return fmt.Errorf("%w: state is %s", ErrNotIdle, state)
	}

	desc, err := pipeline.NewDescription(c.cfg, seq)
	if err != nil {
		return c.startFailed(seq, err)
	}

	handle, err := c.svc.Build(desc)
	if err != nil {
		return c.startFailed(seq, fmt.Errorf("%w: %w", pipeline.ErrBuild, err))
	}
	inst := newInstance(c.svc, handle, desc)

	if err := c.svc.SetState(handle, pipeline.StatePlaying); err != nil {
		// The engine may have got partway to PLAYING; return it to NULL
		// before releasing. The handle was constructed, so its index is spent.
		if nullErr := c.svc.SetState(handle, pipeline.StateNull); nullErr != nil {
			c.logger.Warn("Failed to reset pipeline after start failure", "session", c.name, "sequence", seq, "error", nullErr)
		}
		inst.release()
		c.mu.Lock()
		c.sequence++
		c.mu.Unlock()
		metrics.SetSequence(c.name, seq+1)
		return c.startFailed(seq, fmt.Errorf("%w: set playing: %w", pipeline.ErrStateChange, err))
	}

	c.mu.Lock()
	c.current = inst
	c.state = Running
	c.produced = 0
	c.artifacts = append(c.artifacts, desc.Output)
	c.mu.Unlock()

	metrics.SetControllerState(c.name, Running.String())
	c.logger.Info("Pipeline playing", "session", c.name, "sequence", seq, "output", desc.Output, "handle", handle.ID())
	c.publish(events.ArtifactOpenedEvent{
		Sequence:  seq,
		Path:      desc.Output,
		HandleID:  handle.ID(),
		Timestamp: events.Timestamp(time.Now()),
	})
	return nil
}

func (c *Controller) startFailed(seq int, err error) error {
	metrics.IncStartFailures(c.name)
	c.logger.Error("Failed to start pipeline", "session", c.name, "sequence", seq, "error", err)
	return err
}

func (c *Controller) stop() {
	c.mu.RLock()
	inst := c.current
	c.mu.RUnlock()
	if inst == nil {
		c.logger.Debug("Stop requested while idle", "session", c.name)
		return
	}

	seq := inst.desc.Sequence
	var result *multierror.Error

	timeout := c.drainTimeout
	if err := c.svc.SendFinish(inst.handle); err != nil {
		c.logger.Warn("Finish signal not delivered, forcing teardown", "session", c.name, "sequence", seq, "error", err)
		result = multierror.Append(result, fmt.Errorf("%w: %w", pipeline.ErrFinishSignal, err))
		timeout = c.forcedDrainTimeout
	}

	c.setState(Draining)

	began := time.Now()
	done := c.reportDrain(seq, began)
	ev, err := c.svc.WaitForTerminalEvent(inst.handle, timeout)
	done()
	elapsed := time.Since(began)
	metrics.ObserveDrain(c.name, elapsed.Seconds())
	if err != nil {
		c.logger.Warn("Drain ended without terminal event", "session", c.name, "sequence", seq, "elapsed", elapsed, "error", err)
		result = multierror.Append(result, err)
	}

	var failure *pipeline.Event
	if ev != nil && ev.Kind == pipeline.EventError {
		failure = ev
	}
	outcome := HandleEvent(c.logger, ev)
	if failure != nil {
		metrics.IncPipelineErrors(c.name, failure.Source)
		c.publish(events.PipelineErrorEvent{
			Sequence:  seq,
			Source:    failure.Source,
			Message:   failure.Message,
			Detail:    failure.Detail,
			Timestamp: events.Timestamp(time.Now()),
		})
	}

	for _, target := range []pipeline.State{pipeline.StatePaused, pipeline.StateNull} {
		if err := c.svc.SetState(inst.handle, target); err != nil {
			c.logger.Warn("State change failed during teardown", "session", c.name, "sequence", seq, "target", target.String(), "error", err)
			result = multierror.Append(result, fmt.Errorf("%w: set %s: %w", pipeline.ErrStateChange, target, err))
		}
	}

	inst.release()

	c.mu.Lock()
	units := c.produced
	c.current = nil
	c.state = Idle
	c.produced = 0
	c.sequence++
	next := c.sequence
	c.mu.Unlock()

	metrics.SetControllerState(c.name, Idle.String())
	metrics.SetSequence(c.name, next)
	metrics.IncArtifactsClosed(c.name, outcome.String())

	if err := result.ErrorOrNil(); err != nil {
		c.logger.Warn("Teardown finished with errors", "session", c.name, "sequence", seq, "error", err)
	}
	c.logger.Info("Pipeline released", "session", c.name, "sequence", seq, "output", inst.desc.Output, "units", units, "outcome", outcome.String())
	c.publish(events.ArtifactClosedEvent{
		Sequence:  seq,
		Path:      inst.desc.Output,
		Units:     units,
		Outcome:   outcome.String(),
		Timestamp: events.Timestamp(time.Now()),
	})
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	metrics.SetControllerState(c.name, s.String())
}

// reportDrain logs every drainLogInterval until the returned func is called.
func (c *Controller) reportDrain(seq int, began time.Time) func() {
	if c.drainLogInterval <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(c.drainLogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.logger.Warn("Still waiting for terminal event", "session", c.name, "sequence", seq, "elapsed", time.Since(began).Round(time.Millisecond))
			}
		}
	}()
	return func() {
		close(stop)
		<-exited
	}
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
