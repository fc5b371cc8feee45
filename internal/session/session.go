// Package session drives a rotation controller for a fixed number of
// units, the way the recorder's main command does.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/videosaver/internal/logging"
)

// DefaultProgressEvery is how many units pass between progress logs.
const DefaultProgressEvery = 30

// Advancer is the part of rotation.Controller the driver needs.
type Advancer interface {
	Start() error
	Advance() error
	Stop()
}

// Options configures a run.
type Options struct {
	// TotalUnits to advance. Must be positive.
	TotalUnits int
	// UnitInterval paces advances. Zero advances as fast as possible.
	UnitInterval time.Duration
	// ProgressEvery logs progress every n units. Zero uses
	// DefaultProgressEvery, negative disables progress logs.
	ProgressEvery int
	// Logger defaults to the "session" module logger.
	Logger logging.Logger
}

// Result summarizes a run.
type Result struct {
	Units       int
	Elapsed     time.Duration
	Interrupted bool
}

// DefaultTotal is the unit count used when none is given: two artifacts.
func DefaultTotal(unitsPerFile int) int {
	return 2 * unitsPerFile
}

// Run starts ctrl, advances it opts.TotalUnits times and stops it. The
// controller is stopped on every return path once Start succeeded.
// Cancelling ctx ends the run early without an error.
func Run(ctx context.Context, ctrl Advancer, opts Options) (Result, error) {
	if opts.TotalUnits <= 0 {
		return Result{}, fmt.Errorf("total units must be positive, got %d", opts.TotalUnits)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("session")
	}
	every := opts.ProgressEvery
	if every == 0 {
		every = DefaultProgressEvery
	}

	began := time.Now()
	if err := ctrl.Start(); err != nil {
		return Result{}, fmt.Errorf("start: %w", err)
	}
	defer ctrl.Stop()

	var tick <-chan time.Time
	if opts.UnitInterval > 0 {
		ticker := time.NewTicker(opts.UnitInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.Info("Session started", "total_units", opts.TotalUnits, "interval", opts.UnitInterval)

	res := Result{}
	for res.Units < opts.TotalUnits {
		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
		if ctx.Err() != nil {
			res.Interrupted = true
			logger.Info("Session interrupted", "units", res.Units, "total_units", opts.TotalUnits)
			break
		}

		if err := ctrl.Advance(); err != nil {
			res.Elapsed = time.Since(began)
			return res, fmt.Errorf("advance unit %d: %w", res.Units+1, err)
		}
		res.Units++

		if every > 0 && res.Units%every == 0 {
			logger.Info("Progress", "units", res.Units, "total_units", opts.TotalUnits)
		}
	}

	res.Elapsed = time.Since(began)
	logger.Info("Session finished", "units", res.Units, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}
