package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/videosaver/internal/backend"
	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/pipeline"
	"github.com/smazurov/videosaver/internal/selftest"
	"github.com/spf13/cobra"
)

// CreateSelftestCmd creates the selftest command.
func CreateSelftestCmd() *cobra.Command {
	var opts backend.Options
	var pattern, bitrate int
	var hold time.Duration
	var workDir string
	var logJSON, noColor bool

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Record, rotate and tear down pipelines against a real backend",
		Long: `Runs four checks against the selected backend: initialization, writing 70 frames ` +
			`at 30 frames per file (at least two files must appear), three start/stop cycles and ` +
			`error handling. Output files go to a temporary directory that is removed afterwards.`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{Level: "warn", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("selftest")

			be, err := backend.Open(opts, logging.GetLogger("pipeline"))
			if err != nil {
				logger.Error("Failed to open backend", "error", err)
				os.Exit(1)
			}
			engine := pipeline.NewOnce(be)
			if err := engine.Init(); err != nil {
				logger.Error("Failed to initialize backend", "backend", opts.Name, "error", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			suite := selftest.New(be, pipeline.SessionConfig{Pattern: pattern, Bitrate: bitrate}, logger)
			suite.CycleHold = hold
			suite.WorkDir = workDir

			os.Stdout.WriteString("Running self tests against " + opts.Name + "...\n\n")
			report := suite.Run(ctx)
			stop()
			engine.Deinit()

			report.Print(os.Stdout, !noColor)
			if !report.Passed() {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "backend", "b", "gst-launch", "Pipeline backend (gst-launch, ffmpeg, command, gst)")
	cmd.Flags().StringVar(&opts.Command, "command", "", "Command template for the command backend")
	cmd.Flags().StringVar(&opts.Binary, "binary", "", "Override the gst-launch or ffmpeg binary")
	cmd.Flags().IntVar(&pattern, "pattern", 0, "Test source pattern")
	cmd.Flags().IntVar(&bitrate, "bitrate", 2000, "Target bitrate in kbps")
	cmd.Flags().DurationVar(&hold, "hold", time.Second, "Recording time per start/stop cycle")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Parent directory for temporary output (default system temp)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored PASS/FAIL output")

	return cmd
}
