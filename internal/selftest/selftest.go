// Package selftest exercises a media backend end to end: it records real
// artifacts, rotates them and checks the controller's error paths.
package selftest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/metrics"
	"github.com/smazurov/videosaver/internal/pipeline"
	"github.com/smazurov/videosaver/internal/rotation"
	"github.com/smazurov/videosaver/internal/session"
)

const (
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"

	writeUnits   = 70
	unitsPerFile = 30
	cycles       = 3
	minArtifacts = 2

	metricsSession = "selftest"
)

// Result is the outcome of one check.
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Passed reports whether the check succeeded.
func (r Result) Passed() bool { return r.Err == nil }

// Report collects every check's result.
type Report struct {
	Results []Result
}

// Passed reports whether all checks succeeded.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Print writes one PASS/FAIL line per check.
func (r Report) Print(w io.Writer, color bool) {
	for i, res := range r.Results {
		status := "PASS!"
		if !res.Passed() {
			status = "FAIL!"
		}
		if color {
			c := colorGreen
			if !res.Passed() {
				c = colorRed
			}
			status = c + status + colorReset
		}
		fmt.Fprintf(w, "Test %d (%s): %s\n", i+1, res.Name, status)
		if !res.Passed() {
			fmt.Fprintf(w, "  %v\n", res.Err)
		}
	}
}

// Suite runs the checks against one service.
type Suite struct {
	svc    pipeline.Service
	cfg    pipeline.SessionConfig
	logger logging.Logger

	// UnitInterval paces the write check, about 33 units per second.
	UnitInterval time.Duration
	// CycleHold is how long each Start/Stop cycle keeps recording.
	CycleHold time.Duration
	// WorkDir receives the write check's artifacts, default os.TempDir().
	WorkDir string
}

// New returns a suite recording with the pattern and bitrate from cfg. The
// threshold is fixed so the write check always spans several artifacts.
func New(svc pipeline.Service, cfg pipeline.SessionConfig, logger logging.Logger) *Suite {
	cfg.UnitsPerFile = unitsPerFile
	if logger == nil {
		logger = logging.GetLogger("selftest")
	}
	return &Suite{
		svc:          svc,
		cfg:          cfg,
		logger:       logger,
		UnitInterval: 3 * time.Millisecond,
		CycleHold:    time.Second,
	}
}

type check struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes every check in order. A failing check does not stop the
// ones after it.
func (s *Suite) Run(ctx context.Context) Report {
	checks := []check{
		{"Initialization", s.checkInit},
		{"Write and file rotation", s.checkWrite},
		{"Multiple Start-Stop cycles", s.checkCycles},
		{"Error handling", s.checkErrors},
	}

	var report Report
	for _, c := range checks {
		began := time.Now()
		err := c.run(ctx)
		res := Result{Name: c.name, Err: err, Elapsed: time.Since(began)}
		if err != nil {
			s.logger.Error("Check failed", "check", c.name, "error", err)
		} else {
			s.logger.Info("Check passed", "check", c.name, "elapsed", res.Elapsed.Round(time.Millisecond))
		}
		report.Results = append(report.Results, res)
	}
	metrics.DeleteSession(metricsSession)
	return report
}

func (s *Suite) controller(cfg pipeline.SessionConfig) (*rotation.Controller, error) {
	return rotation.New(s.svc, cfg, rotation.WithLogger(s.logger), rotation.WithName(metricsSession))
}

func (s *Suite) checkInit(_ context.Context) error {
	dir, cleanup, err := s.workDir()
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := s.cfg
	cfg.OutputDir = dir
	ctrl, err := s.controller(cfg)
	if err != nil {
		return err
	}
	if err := ctrl.Start(); err != nil {
		return err
	}
	defer ctrl.Stop()

	if ctrl.Handle() == nil {
		return errors.New("no pipeline after start")
	}
	return nil
}

func (s *Suite) checkWrite(ctx context.Context) error {
	dir, cleanup, err := s.workDir()
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := s.cfg
	cfg.OutputDir = dir
	ctrl, err := s.controller(cfg)
	if err != nil {
		return err
	}

	res, err := session.Run(ctx, ctrl, session.Options{
		TotalUnits:    writeUnits,
		UnitInterval:  s.UnitInterval,
		ProgressEvery: -1,
		Logger:        s.logger,
	})
	if err != nil {
		return err
	}
	if res.Interrupted {
		return ctx.Err()
	}

	n, err := countArtifacts(dir)
	if err != nil {
		return err
	}
	if n < minArtifacts {
		return fmt.Errorf("found %d artifacts, want at least %d", n, minArtifacts)
	}
	return nil
}

func (s *Suite) checkCycles(ctx context.Context) error {
	dir, cleanup, err := s.workDir()
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := s.cfg
	cfg.OutputDir = dir
	ctrl, err := s.controller(cfg)
	if err != nil {
		return err
	}

	for i := 0; i < cycles; i++ {
		if err := ctrl.Start(); err != nil {
			return fmt.Errorf("cycle %d: %w", i+1, err)
		}
		if ctrl.Handle() == nil {
			ctrl.Stop()
			return fmt.Errorf("cycle %d: no pipeline after start", i+1)
		}

		select {
		case <-ctx.Done():
			ctrl.Stop()
			return ctx.Err()
		case <-time.After(s.CycleHold):
		}

		ctrl.Stop()
		if ctrl.Handle() != nil || ctrl.State() != rotation.Idle {
			return fmt.Errorf("cycle %d: pipeline still held after stop", i+1)
		}
	}
	return nil
}

func (s *Suite) checkErrors(_ context.Context) error {
	bad := s.cfg
	bad.UnitsPerFile = 0
	if _, err := s.controller(bad); !errors.Is(err, pipeline.ErrInvalidConfig) {
		return fmt.Errorf("zero threshold accepted: %v", err)
	}
	bad = s.cfg
	bad.Bitrate = -1
	if _, err := s.controller(bad); !errors.Is(err, pipeline.ErrInvalidConfig) {
		return fmt.Errorf("negative bitrate accepted: %v", err)
	}

	ctrl, err := s.controller(s.cfg)
	if err != nil {
		return err
	}
	if err := ctrl.Advance(); !errors.Is(err, rotation.ErrNotRunning) {
		return fmt.Errorf("advance on idle controller: %v", err)
	}
	ctrl.Stop()
	if ctrl.State() != rotation.Idle {
		return errors.New("stop on idle controller changed state")
	}
	return nil
}

func (s *Suite) workDir() (string, func(), error) {
	dir, err := os.MkdirTemp(s.WorkDir, "videosaver-selftest-")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("Failed to clean up", "dir", dir, "error", err)
		}
	}, nil
}

// countArtifacts counts non-empty output files in dir. An empty file means
// the pipeline never wrote into it.
func countArtifacts(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(filepath.Base(e.Name()), "output_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return 0, err
		}
		if info.Size() > 0 {
			n++
		}
	}
	return n, nil
}
