package launch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/smazurov/videosaver/internal/logging"
)

// process is one child for one pipeline handle.
type process struct {
	id      string
	args    []string
	dialect Dialect
	logger  logging.Logger
	output  logging.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	started   bool
	finished  atomic.Bool
	ready     chan struct{} // closed on the dialect's ready line or on exit
	readyOnce sync.Once
	done      chan struct{} // closed after output is drained and Wait returned
	waitErr   error
	tail      *lineTail
}

func newProcess(id string, args []string, dialect Dialect, logger, output logging.Logger, tailLines int) *process {
	return &process{
		id:      id,
		args:    args,
		dialect: dialect,
		logger:  logger,
		output:  output,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		tail:    newLineTail(tailLines),
	}
}

// start launches the child. Calling it again is a no-op.
func (p *process) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.args[0], err)
	}

	p.cmd = cmd
	p.started = true
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.args[0])

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer streams.Done()
		p.streamOutput(stderr, "stderr")
	}()

	// Wait must not run before the pipes are drained.
	go func() {
		streams.Wait()
		p.waitErr = cmd.Wait()
		close(p.done)
		p.markReady()
	}()
	return nil
}

func (p *process) isStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *process) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// interrupt sends SIGINT to the child once it reported ready, or after
// readyTimeout. A signal delivered before the child installed its handler
// would kill it without finalizing the artifact.
func (p *process) interrupt(readyTimeout time.Duration) error {
	select {
	case <-p.ready:
	case <-time.After(readyTimeout):
		p.logger.Warn("Process not ready for finish signal, sending anyway", "id", p.id, "waited", readyTimeout)
	}
	if p.exited() {
		return nil
	}

	p.finished.Store(true)
	p.logger.Info("Sending SIGINT to process", "id", p.id, "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return err
	}
	return nil
}

// wait blocks until the child exited or timeout elapsed.
func (p *process) wait(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// kill force-kills the child's process group and waits up to timeout.
func (p *process) kill(timeout time.Duration) {
	if !p.isStarted() || p.exited() {
		return
	}
	pid := p.cmd.Process.Pid
	p.logger.Warn("Killing process", "id", p.id, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Error("Failed to kill process group", "id", p.id, "error", err)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "id", p.id, "error", err)
		}
	}
	if !p.wait(timeout) {
		p.logger.Error("Process did not exit after kill signal", "id", p.id, "pid", pid)
	}
}

// exitCode returns the child's exit status, -1 when it died from a signal.
// Only valid after done is closed.
func (p *process) exitCode() int {
	if p.waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// exitSignal names the signal that ended the child, or "".
func (p *process) exitSignal() string {
	var exitErr *exec.ExitError
	if !errors.As(p.waitErr, &exitErr) {
		return ""
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return status.Signal().String()
	}
	return ""
}

func (p *process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		p.tail.add(line)
		if p.dialect.Ready(line) {
			p.markReady()
		}

		level, msg := p.dialect.ParseLine(line)
		switch level {
		case "panic", "fatal", "error":
			p.output.Error(msg, "id", p.id)
		case "warning":
			p.output.Warn(msg, "id", p.id)
		case "verbose", "debug", "trace":
			p.output.Debug(msg, "id", p.id)
		default:
			p.output.Info(msg, "id", p.id)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "id", p.id, "source", source, "error", err)
	}
}

// lineTail keeps the last n output lines.
type lineTail struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newLineTail(n int) *lineTail {
	return &lineTail{max: n}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}
