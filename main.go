package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/videosaver/cmd"
	"github.com/smazurov/videosaver/internal/api"
	"github.com/smazurov/videosaver/internal/backend"
	"github.com/smazurov/videosaver/internal/config"
	"github.com/smazurov/videosaver/internal/events"
	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/metrics"
	"github.com/smazurov/videosaver/internal/metrics/exporters"
	"github.com/smazurov/videosaver/internal/pipeline"
	"github.com/smazurov/videosaver/internal/rotation"
	"github.com/smazurov/videosaver/internal/session"
	"github.com/smazurov/videosaver/internal/systemd"
	"github.com/smazurov/videosaver/internal/version"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"videosaver.toml"`

	// Recording settings
	Pattern       int    `help:"Test source pattern" default:"0" toml:"recording.pattern" env:"RECORDING_PATTERN"`
	Bitrate       int    `help:"Target bitrate in kbps" default:"2000" toml:"recording.bitrate" env:"RECORDING_BITRATE"`
	FramesPerFile int    `help:"Frames per output file" default:"1000" toml:"recording.frames_per_file" env:"RECORDING_FRAMES_PER_FILE"`
	TotalFrames   int    `help:"Frames to record, 0 records two files" default:"0" toml:"recording.total_frames" env:"RECORDING_TOTAL_FRAMES"`
	FrameRate     int    `help:"Source frame rate" default:"30" toml:"recording.frame_rate" env:"RECORDING_FRAME_RATE"`
	Realtime      bool   `help:"Pace frames at the frame rate" default:"true" toml:"recording.realtime" env:"RECORDING_REALTIME"`
	OutputDir     string `help:"Directory for output files" default:"" toml:"recording.output_dir" env:"RECORDING_OUTPUT_DIR"`
	Extension     string `help:"Output container extension" default:"mp4" toml:"recording.extension" env:"RECORDING_EXTENSION"`
	StartSequence int    `help:"Index of the first output file" default:"0" toml:"recording.start_sequence" env:"RECORDING_START_SEQUENCE"`
	DrainTimeout  string `help:"Wait for a pipeline to finalize its file, 0 for the backend limit" default:"10s" toml:"recording.drain_timeout" env:"RECORDING_DRAIN_TIMEOUT"`

	// Backend settings
	Backend        string `help:"Pipeline backend (gst-launch, ffmpeg, command, gst)" default:"gst-launch" toml:"backend.name" env:"BACKEND_NAME"`
	BackendCommand string `help:"Command template for the command backend" default:"" toml:"backend.command" env:"BACKEND_COMMAND"`
	BackendBinary  string `help:"Override the gst-launch or ffmpeg binary" default:"" toml:"backend.binary" env:"BACKEND_BINARY"`

	// Server settings
	ServerAddr string `help:"Serve status, events and metrics on this address (empty disables)" default:"" toml:"server.addr" env:"SERVER_ADDR"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingRotation string `help:"Rotation controller logging level" default:"info" toml:"logging.rotation" env:"LOGGING_ROTATION"`
	LoggingPipeline string `help:"Pipeline backend logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingSession  string `help:"Session progress logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingOutput   string `help:"Pipeline process output logging level" default:"warn" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingServer   string `help:"API server logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
}

// applyPositional accepts "pattern bitrate frames_per_file" arguments.
func applyPositional(opts *Options, args []string) error {
	targets := []*int{&opts.Pattern, &opts.Bitrate, &opts.FramesPerFile}
	names := []string{"pattern", "bitrate", "frames_per_file"}
	if len(args) > len(targets) {
		return fmt.Errorf("expected at most %d arguments, got %d", len(targets), len(args))
	}
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%s: %w", names[i], err)
		}
		*targets[i] = n
	}
	return nil
}

func loggingConfig(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"rotation":   opts.LoggingRotation,
			"pipeline":   opts.LoggingPipeline,
			"session":    opts.LoggingSession,
			"gst-launch": opts.LoggingOutput,
			"ffmpeg":     opts.LoggingOutput,
			"command":    opts.LoggingOutput,
			"api":        opts.LoggingServer,
		},
	}
}

func main() {
	exitCode := 0
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		if argErr := applyPositional(opts, cli.Root().Flags().Args()); argErr != nil {
			slog.Error("Invalid arguments", "error", argErr)
			os.Exit(2)
		}

		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")
		notifier := systemd.NewNotifier(logger)
		build := version.Get()
		metrics.SetBuildInfo(build.Version, build.GitCommit, build.GoVersion, opts.Backend)

		drainTimeout, err := time.ParseDuration(opts.DrainTimeout)
		if err != nil {
			logger.Warn("Invalid drain timeout, using backend limit", "value", opts.DrainTimeout, "error", err)
			drainTimeout = 0
		}

		be, err := backend.Open(backend.Options{
			Name:    opts.Backend,
			Command: opts.BackendCommand,
			Binary:  opts.BackendBinary,
		}, logging.GetLogger("pipeline"))
		if err != nil {
			logger.Error("Failed to open backend", "error", err)
			os.Exit(1)
		}
		engine := pipeline.NewOnce(be)

		eventBus := events.New()
		eventBus.Subscribe(func(e events.ArtifactOpenedEvent) {
			notifier.Status("Recording " + e.Path)
		})
		eventBus.Subscribe(func(e events.ArtifactClosedEvent) {
			logger.Info("Artifact finalized", "path", e.Path, "frames", e.Units, "outcome", e.Outcome)
		})
		eventBus.Subscribe(func(e events.PipelineErrorEvent) {
			logger.Warn("Pipeline reported an error", "sequence", e.Sequence, "source", e.Source, "error", e.Message)
		})

		sessionConfig := pipeline.SessionConfig{
			Pattern:      opts.Pattern,
			Bitrate:      opts.Bitrate,
			UnitsPerFile: opts.FramesPerFile,
			FrameRate:    opts.FrameRate,
			OutputDir:    opts.OutputDir,
			Extension:    opts.Extension,
		}
		ctrl, err := rotation.New(be, sessionConfig,
			rotation.WithLogger(logging.GetLogger("rotation")),
			rotation.WithEventBus(eventBus),
			rotation.WithDrainTimeout(drainTimeout),
			rotation.WithStartSequence(opts.StartSequence),
		)
		if err != nil {
			logger.Error("Invalid recording settings", "error", err)
			os.Exit(2)
		}

		total := opts.TotalFrames
		if total <= 0 {
			total = session.DefaultTotal(opts.FramesPerFile)
		}
		var interval time.Duration
		if opts.Realtime {
			interval = time.Second / time.Duration(ctrl.Config().FrameRate)
		}

		// Reload log levels when the config file changes
		watcher := config.NewConfigWatcher(opts.Config, config.ReloadLogging, logger,
			config.WithErrorHandler[logging.Config](func(watchErr error) {
				logger.Warn("Failed to reload logging config", "error", watchErr)
			}),
		)
		watcher.OnReload(func(cfg logging.Config) {
			logging.SetLevels(cfg)
			logger.Info("Logging levels reloaded", "level", cfg.Level)
		})

		var apiServer *api.Server
		if opts.ServerAddr != "" {
			apiServer = api.NewServer(api.Options{
				Status:            ctrl,
				EventBus:          eventBus,
				PrometheusHandler: exporters.HTTPHandler(),
			})
		}

		ctx, cancel := context.WithCancel(context.Background())
		finished := make(chan struct{})

		hooks.OnStart(func() {
			defer close(finished)

			if initErr := engine.Init(); initErr != nil {
				logger.Error("Failed to initialize backend", "backend", opts.Backend, "error", initErr)
				os.Exit(1)
			}
			defer engine.Deinit()

			if apiServer != nil {
				apiServer.Start(opts.ServerAddr)
			}
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Debug("Config watcher disabled", "path", opts.Config, "error", watchErr)
			}
			defer func() {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}()

			notifier.Ready()
			logger.Info("Recording",
				"version", build.Version,
				"backend", opts.Backend,
				"pattern", opts.Pattern,
				"bitrate", opts.Bitrate,
				"frames_per_file", opts.FramesPerFile,
				"total_frames", total)

			res, runErr := session.Run(ctx, ctrl, session.Options{
				TotalUnits:   total,
				UnitInterval: interval,
				Logger:       logging.GetLogger("session"),
			})
			if runErr != nil {
				logger.Error("Recording failed", "frames", res.Units, "error", runErr)
				exitCode = 1
			} else {
				logger.Info("Recording complete", "frames", res.Units, "files", len(ctrl.Artifacts()), "interrupted", res.Interrupted)
			}

			if apiServer != nil {
				if stopErr := apiServer.Stop(); stopErr != nil {
					logger.Error("Error stopping API server", "error", stopErr)
				}
			}
		})

		hooks.OnStop(func() {
			logger.Info("Stopping recording")
			notifier.Stopping()
			cancel()
			select {
			case <-finished:
			case <-time.After(drainTimeout + 15*time.Second):
				logger.Error("Timed out waiting for the last file to finalize")
			}
		})
	})

	cli.Root().Use = "videosaver [pattern] [bitrate] [frames_per_file]"
	cli.Root().Short = "Record a test source into rotating output files"
	cli.Root().Args = cobra.MaximumNArgs(3)
	cli.Root().Version = version.Get().String()

	// Add selftest command
	cli.Root().AddCommand(cmd.CreateSelftestCmd())

	// Run the CLI
	cli.Run()
	os.Exit(exitCode)
}
