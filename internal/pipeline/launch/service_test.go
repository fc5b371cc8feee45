package launch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/smazurov/videosaver/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService creates a Service with short timeouts for testing.
func newTestService(d Dialect) *Service {
	return New(d, testLogger(),
		WithOutputLogger(testLogger()),
		WithGracefulTimeout(time.Second),
		WithKillTimeout(500*time.Millisecond),
		WithReadyTimeout(2*time.Second),
	)
}

func play(t *testing.T, s *Service, desc pipeline.Description) pipeline.Handle {
	t.Helper()
	h, err := s.Build(desc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := s.SetState(h, pipeline.StatePlaying); err != nil {
		t.Fatalf("SetState(Playing) error = %v", err)
	}
	return h
}

func TestFinishSignalYieldsEOS(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Process that handles SIGINT
	s := newTestService(Template{Line: `sh -c "trap 'exit 0' INT TERM; echo ready; while :; do sleep 0.05; done"`})
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	if err := s.SendFinish(h); err != nil {
		t.Fatalf("SendFinish() error = %v", err)
	}

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForTerminalEvent() error = %v", err)
	}
	defer ev.Release()
	if ev.Kind != pipeline.EventEOS {
		t.Errorf("Kind = %s, want eos", ev.Kind)
	}
}

func TestErrorExitYieldsErrorEvent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestService(Template{Line: `sh -c "echo 'encoder exploded' >&2; exit 3"`})
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForTerminalEvent() error = %v", err)
	}
	if ev.Kind != pipeline.EventError {
		t.Fatalf("Kind = %s, want error", ev.Kind)
	}
	if ev.Source != "sh" || ev.Message != "encoder exploded" {
		t.Errorf("event = %+v", ev)
	}
}

func TestSilentFailureReportsStatus(t *testing.T) {
	s := newTestService(Template{Line: `sh -c "exit 2"`})
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForTerminalEvent() error = %v", err)
	}
	if ev.Kind != pipeline.EventError || ev.Message != "exited with status 2" {
		t.Errorf("event = %+v", ev)
	}
}

func TestKilledBySignalIsUnknown(t *testing.T) {
	s := newTestService(Template{Line: `sh -c "kill -9 $$"`})
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForTerminalEvent() error = %v", err)
	}
	if ev.Kind != pipeline.EventUnknown {
		t.Errorf("Kind = %s, want unknown (event %+v)", ev.Kind, ev)
	}
}

func TestWaitTimeoutThenKill(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Process that ignores SIGINT
	s := newTestService(Template{Line: `sh -c "trap '' INT; echo ready; while :; do sleep 0.05; done"`})
	h := play(t, s, testDescription(t, 0))

	if err := s.SendFinish(h); err != nil {
		t.Fatalf("SendFinish() error = %v", err)
	}
	_, err := s.WaitForTerminalEvent(h, 100*time.Millisecond)
	if !errors.Is(err, pipeline.ErrWaitTimeout) {
		t.Fatalf("WaitForTerminalEvent() error = %v, want ErrWaitTimeout", err)
	}

	start := time.Now()
	if err := s.SetState(h, pipeline.StateNull); err != nil {
		t.Fatalf("SetState(Null) error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("kill took %s", elapsed)
	}
	s.Release(h)
}

func TestFinishRightAfterPlayingYieldsEOS(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// The trap is installed late; an early SIGINT would kill the shell.
	s := newTestService(Template{Line: `sh -c "sleep 0.2; trap 'exit 0' INT; echo ready; while :; do sleep 0.02; done"`})
	for i := 0; i < 3; i++ {
		h := play(t, s, testDescription(t, i))
		if err := s.SendFinish(h); err != nil {
			t.Fatalf("SendFinish() error = %v", err)
		}
		ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
		if err != nil {
			t.Fatalf("WaitForTerminalEvent() error = %v", err)
		}
		if ev.Kind != pipeline.EventEOS {
			t.Errorf("run %d: event = %s %q, want eos", i, ev.Kind, ev.Message)
		}
		ev.Release()
		s.Release(h)
	}
}

func TestFinishWithoutReadyLineWaitsForTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := New(Template{Line: `sh -c "trap 'exit 0' INT; while :; do sleep 0.02; done"`}, testLogger(),
		WithOutputLogger(testLogger()),
		WithKillTimeout(500*time.Millisecond),
		WithReadyTimeout(150*time.Millisecond),
	)
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	start := time.Now()
	if err := s.SendFinish(h); err != nil {
		t.Fatalf("SendFinish() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("SendFinish() returned after %s, want the ready timeout", elapsed)
	}

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForTerminalEvent() error = %v", err)
	}
	defer ev.Release()
	if ev.Kind != pipeline.EventEOS {
		t.Errorf("Kind = %s, want eos", ev.Kind)
	}
}

func TestFinishDoesNotWaitForExitedProcess(t *testing.T) {
	s := newTestService(Template{Line: `sh -c "sleep 0.1"`})
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	start := time.Now()
	if err := s.SendFinish(h); err != nil {
		t.Fatalf("SendFinish() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("SendFinish() blocked %s on a process that exited silently", elapsed)
	}

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForTerminalEvent() error = %v", err)
	}
	defer ev.Release()
	if ev.Kind != pipeline.EventEOS {
		t.Errorf("Kind = %s, want eos for an unsignalled clean exit", ev.Kind)
	}
}

func TestPausedIsNoop(t *testing.T) {
	s := newTestService(Template{Line: `sh -c "trap 'exit 0' INT; echo ready; while :; do sleep 0.05; done"`})
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	if err := s.SetState(h, pipeline.StatePaused); err != nil {
		t.Errorf("SetState(Paused) error = %v", err)
	}
	p, err := s.lookup(h)
	if err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	if p.exited() {
		t.Error("Paused must not stop the process")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestService(Template{Line: `sh -c "while :; do sleep 0.05; done"`})
	h := play(t, s, testDescription(t, 0))

	s.Release(h)
	s.Release(h)

	if err := s.SetState(h, pipeline.StatePlaying); !errors.Is(err, pipeline.ErrUnknownHandle) {
		t.Errorf("SetState() after Release error = %v, want ErrUnknownHandle", err)
	}
	if err := s.SendFinish(h); !errors.Is(err, pipeline.ErrUnknownHandle) {
		t.Errorf("SendFinish() after Release error = %v, want ErrUnknownHandle", err)
	}
}

func TestFinishBeforePlayingFails(t *testing.T) {
	s := newTestService(Template{Line: "true"})
	h, err := s.Build(testDescription(t, 0))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer s.Release(h)

	if err := s.SendFinish(h); err == nil {
		t.Error("expected SendFinish() to fail before the process started")
	}
}

func TestHandlesAreDistinct(t *testing.T) {
	s := newTestService(Template{Line: "true"})
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		h, err := s.Build(testDescription(t, i))
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if seen[h.ID()] {
			t.Fatalf("duplicate handle %s", h.ID())
		}
		seen[h.ID()] = true
		s.Release(h)
	}
}

func TestBuildCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	desc, err := pipeline.NewDescription(pipeline.SessionConfig{Bitrate: 500, UnitsPerFile: 10, OutputDir: dir}, 0)
	if err != nil {
		t.Fatalf("NewDescription() error = %v", err)
	}

	s := newTestService(Template{Line: `sh -c "printf data > '{{output}}'"`})
	h := play(t, s, desc)
	defer s.Release(h)

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil || ev.Kind != pipeline.EventEOS {
		t.Fatalf("WaitForTerminalEvent() = %+v, %v", ev, err)
	}
	data, err := os.ReadFile(desc.Output)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("artifact = %q, want data", data)
	}
}

func TestGstLaunchDiagnostics(t *testing.T) {
	script := filepath.Join(t.TempDir(), "fake-gst-launch")
	body := `#!/bin/sh
echo "ERROR: from element /GstPipeline:pipeline0/GstVideoTestSrc:videotestsrc0: Internal data stream error." >&2
echo "Additional debug info:" >&2
echo "gstbasesrc.c(3132): streaming stopped, reason not-negotiated (-4)" >&2
exit 1
`
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	s := newTestService(GstLaunch{Path: script})
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	h := play(t, s, testDescription(t, 0))
	defer s.Release(h)

	ev, err := s.WaitForTerminalEvent(h, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitForTerminalEvent() error = %v", err)
	}
	if ev.Kind != pipeline.EventError || ev.Source != "videotestsrc0" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Message != "Internal data stream error." {
		t.Errorf("Message = %q", ev.Message)
	}
	if ev.Detail != "gstbasesrc.c(3132): streaming stopped, reason not-negotiated (-4)" {
		t.Errorf("Detail = %q", ev.Detail)
	}
}

func TestInitMissingBinary(t *testing.T) {
	s := newTestService(GstLaunch{Path: "videosaver-no-such-binary"})
	if err := s.Init(); err == nil {
		t.Error("expected Init() to fail for a missing binary")
	}
}

func TestDeinitKillsLiveProcesses(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestService(Template{Line: `sh -c "trap '' INT; while :; do sleep 0.05; done"`})
	h := play(t, s, testDescription(t, 0))

	s.Deinit()

	if _, err := s.lookup(h); !errors.Is(err, pipeline.ErrUnknownHandle) {
		t.Errorf("lookup() after Deinit error = %v, want ErrUnknownHandle", err)
	}
}
