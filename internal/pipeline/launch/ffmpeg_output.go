package launch

import (
	"strings"

	"github.com/smazurov/videosaver/internal/pipeline"
)

// ParseFFmpegLine extracts the log level from ffmpeg output.
// FFmpeg with -loglevel level+info outputs lines like "[info] message"
// or "[component @ 0x...] [level] message" for component-specific logs.
// Returns the level and the message with level stripped but component preserved.
func ParseFFmpegLine(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if bracket := line[1:end]; isFFmpegLevel(bracket) {
		return bracket, line[end+2:]
	}

	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if next := rest[1:nextEnd]; isFFmpegLevel(next) {
				return next, component + rest[nextEnd+2:]
			}
		}
	}

	return "info", line
}

func isFFmpegLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

// ffmpegTerminalError reports the first fatal or error line. The source is
// the component ("libx264" for "[libx264 @ 0x5581] [error] ...") or ffmpeg.
// Later error lines, usually the generic "Conversion failed!", become the
// detail.
func ffmpegTerminalError(lines []string) *pipeline.Event {
	var first *pipeline.Event
	var rest []string
	for _, line := range lines {
		level, msg := ParseFFmpegLine(line)
		if level != "error" && level != "fatal" && level != "panic" {
			continue
		}
		source, text := splitComponent(msg)
		if first == nil {
			first = pipeline.NewEvent(pipeline.EventError, source, text, "", nil)
			continue
		}
		rest = append(rest, text)
	}
	if first == nil {
		return nil
	}
	if len(rest) > 0 {
		first = pipeline.NewEvent(pipeline.EventError, first.Source, first.Message, strings.Join(rest, "\n"), nil)
	}
	return first
}

// splitComponent turns "[libx264 @ 0x55] msg" into ("libx264", "msg").
func splitComponent(msg string) (source, text string) {
	if !strings.HasPrefix(msg, "[") {
		return "ffmpeg", msg
	}
	end := strings.Index(msg, "] ")
	if end == -1 {
		return "ffmpeg", msg
	}
	name := msg[1:end]
	if at := strings.Index(name, " @ "); at != -1 {
		name = name[:at]
	}
	return name, msg[end+2:]
}
