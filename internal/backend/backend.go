// Package backend selects the media service implementation by name.
package backend

import (
	"fmt"

	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/pipeline"
	"github.com/smazurov/videosaver/internal/pipeline/gstreamer"
	"github.com/smazurov/videosaver/internal/pipeline/launch"
)

// Names lists the accepted backend names.
var Names = []string{"gst-launch", "ffmpeg", "command", "gst"}

// Options selects and configures a backend.
type Options struct {
	Name    string // one of Names
	Command string // command line template for "command"
	Binary  string // overrides the gst-launch or ffmpeg binary
}

// Open returns the backend. The caller owns Init and Deinit, normally
// through pipeline.NewOnce.
func Open(opts Options, logger logging.Logger) (gstreamer.Backend, error) {
	switch opts.Name {
	case "gst":
		return gstreamer.Open(logger)
	case "gst-launch":
		return launch.New(launch.GstLaunch{Path: opts.Binary}, logger), nil
	case "ffmpeg":
		return launch.New(launch.FFmpeg{Path: opts.Binary}, logger), nil
	case "command":
		d, err := launch.DialectByName(opts.Name, opts.Command)
		if err != nil {
			return nil, err
		}
		return launch.New(d, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (want one of %v)", pipeline.ErrInvalidConfig, opts.Name, Names)
	}
}
