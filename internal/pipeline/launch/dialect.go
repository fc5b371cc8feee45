package launch

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/smazurov/videosaver/internal/pipeline"
)

// Dialect describes one family of pipeline programs.
type Dialect interface {
	// Name is used in logs and as the output logger's module.
	Name() string
	// Binary is the program looked up on PATH by Service.Init.
	Binary() string
	// Command renders the argv for desc.
	Command(desc pipeline.Description) ([]string, error)
	// ParseLine extracts the log level from one output line.
	ParseLine(line string) (level, msg string)
	// Ready reports whether an output line shows the program handles the
	// finish signal.
	Ready(line string) bool
	// TerminalError finds the fatal diagnostic in the last output lines,
	// or returns nil when there is none.
	TerminalError(lines []string) *pipeline.Event
	// CleanExit reports whether an exit code means the artifact was
	// finalized. finished is true once the finish signal was sent.
	CleanExit(code int, finished bool) bool
}

// GstLaunch runs gst-launch-1.0 with -e, which turns SIGINT into an
// end-of-stream that travels through the muxer before the process exits.
type GstLaunch struct {
	// Path overrides the binary, default gst-launch-1.0.
	Path string
}

// Name implements Dialect.
func (GstLaunch) Name() string { return "gst-launch" }

// Binary implements Dialect.
func (g GstLaunch) Binary() string {
	if g.Path != "" {
		return g.Path
	}
	return "gst-launch-1.0"
}

// Command implements Dialect. The launch line is split on the "!" and
// whitespace boundaries gst-launch expects as separate arguments.
func (g GstLaunch) Command(desc pipeline.Description) ([]string, error) {
	line, err := shellquote.Split(desc.Launch())
	if err != nil {
		return nil, fmt.Errorf("launch line: %w", err)
	}
	return append([]string{g.Binary(), "-e"}, line...), nil
}

// ParseLine implements Dialect.
func (GstLaunch) ParseLine(line string) (level, msg string) {
	return ParseGstLine(line)
}

// Ready implements Dialect. The interrupt handler is installed before the
// pipeline goes to PLAYING.
func (GstLaunch) Ready(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "Setting pipeline to PLAYING")
}

// TerminalError implements Dialect.
func (GstLaunch) TerminalError(lines []string) *pipeline.Event {
	return gstTerminalError(lines)
}

// CleanExit implements Dialect.
func (GstLaunch) CleanExit(code int, _ bool) bool { return code == 0 }

// FFmpeg runs ffmpeg with a lavfi test source. SIGINT makes ffmpeg write
// the trailer and exit with status 255.
type FFmpeg struct {
	// Path overrides the binary, default ffmpeg.
	Path string
}

// Name implements Dialect.
func (FFmpeg) Name() string { return "ffmpeg" }

// Binary implements Dialect.
func (f FFmpeg) Binary() string {
	if f.Path != "" {
		return f.Path
	}
	return "ffmpeg"
}

// Command implements Dialect.
func (f FFmpeg) Command(desc pipeline.Description) ([]string, error) {
	args := []string{f.Binary(), "-hide_banner", "-nostdin", "-loglevel", "level+info", "-y"}
	return append(args, desc.FFmpegArgs()...), nil
}

// ParseLine implements Dialect.
func (FFmpeg) ParseLine(line string) (level, msg string) {
	return ParseFFmpegLine(line)
}

// Ready implements Dialect. Once the output is opened an interrupt writes
// the trailer.
func (FFmpeg) Ready(line string) bool {
	return strings.Contains(line, "Output #")
}

// TerminalError implements Dialect.
func (FFmpeg) TerminalError(lines []string) *pipeline.Event {
	return ffmpegTerminalError(lines)
}

// CleanExit implements Dialect.
func (FFmpeg) CleanExit(code int, finished bool) bool {
	return code == 0 || (finished && code == 255)
}

// Template runs an arbitrary command line. The placeholders {{output}},
// {{sequence}}, {{bitrate}}, {{pattern}} and {{units}} are substituted
// before the line is split into arguments with POSIX shell quoting.
type Template struct {
	Line string
}

// Name implements Dialect.
func (Template) Name() string { return "command" }

// Binary implements Dialect.
func (t Template) Binary() string {
	args, err := shellquote.Split(t.Line)
	if err != nil || len(args) == 0 {
		return ""
	}
	return args[0]
}

// Command implements Dialect.
func (t Template) Command(desc pipeline.Description) ([]string, error) {
	r := strings.NewReplacer(
		"{{output}}", desc.Output,
		"{{sequence}}", strconv.Itoa(desc.Sequence),
		"{{bitrate}}", strconv.Itoa(desc.Config.Bitrate),
		"{{pattern}}", strconv.Itoa(desc.Config.Pattern),
		"{{units}}", strconv.Itoa(desc.Config.UnitsPerFile),
	)
	args, err := shellquote.Split(r.Replace(t.Line))
	if err != nil {
		return nil, fmt.Errorf("command line: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

// ParseLine implements Dialect.
func (Template) ParseLine(line string) (level, msg string) {
	return ParseGstLine(line)
}

// Ready implements Dialect. Any output line counts.
func (Template) Ready(line string) bool {
	return strings.TrimSpace(line) != ""
}

// TerminalError implements Dialect. The last non-empty line is reported as
// the message.
func (t Template) TerminalError(lines []string) *pipeline.Event {
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return pipeline.NewEvent(pipeline.EventError, filepath.Base(t.Binary()), line, "", nil)
		}
	}
	return nil
}

// CleanExit implements Dialect.
func (Template) CleanExit(code int, _ bool) bool { return code == 0 }

// DialectByName returns the dialect for a backend name. line is only used
// by the "command" dialect.
func DialectByName(name, line string) (Dialect, error) {
	switch name {
	case "gst-launch":
		return GstLaunch{}, nil
	case "ffmpeg":
		return FFmpeg{}, nil
	case "command":
		if strings.TrimSpace(line) == "" {
			return nil, fmt.Errorf("%w: command backend needs a command line", pipeline.ErrInvalidConfig)
		}
		return Template{Line: line}, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", pipeline.ErrInvalidConfig, name)
	}
}
