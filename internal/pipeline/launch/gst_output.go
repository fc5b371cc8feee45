package launch

import (
	"strings"

	"github.com/smazurov/videosaver/internal/pipeline"
)

const (
	gstErrorPrefix   = "ERROR: "
	gstWarningPrefix = "WARNING: "
	gstElementPrefix = "from element "
	gstDebugHeader   = "Additional debug info:"
)

// ParseGstLine extracts the log level from gst-launch output, which marks
// only errors and warnings.
func ParseGstLine(line string) (level, msg string) {
	switch {
	case strings.HasPrefix(line, gstErrorPrefix):
		return "error", line[len(gstErrorPrefix):]
	case strings.HasPrefix(line, gstWarningPrefix):
		return "warning", line[len(gstWarningPrefix):]
	case strings.HasPrefix(line, "0:") && strings.Contains(line, " ERROR "):
		// GST_DEBUG formatted output
		return "error", line
	case strings.HasPrefix(line, "0:") && strings.Contains(line, " WARN "):
		return "warning", line
	}
	return "info", line
}

// gstTerminalError finds the first element error gst-launch printed:
//
//	ERROR: from element /GstPipeline:pipeline0/GstX264Enc:x264enc0: Could not encode.
//	Additional debug info:
//	../ext/x264/gstx264enc.c(2452): gst_x264_enc_encode_frame (): /GstPipeline:pipeline0/GstX264Enc:x264enc0:
//	encode failed
//
// A launch line that does not parse is reported as
// "WARNING: erroneous pipeline: ..." and mapped to source gst-launch.
func gstTerminalError(lines []string) *pipeline.Event {
	var generic *pipeline.Event
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, gstErrorPrefix+gstElementPrefix):
			path, msg := splitElementError(line[len(gstErrorPrefix+gstElementPrefix):])
			return pipeline.NewEvent(pipeline.EventError, elementName(path), msg, gstDebugInfo(lines[i+1:]), nil)
		case strings.HasPrefix(line, gstWarningPrefix+"erroneous pipeline: "):
			msg := line[len(gstWarningPrefix+"erroneous pipeline: "):]
			if generic == nil {
				generic = pipeline.NewEvent(pipeline.EventError, "gst-launch", msg, "", nil)
			}
		case strings.HasPrefix(line, gstErrorPrefix):
			if generic == nil {
				generic = pipeline.NewEvent(pipeline.EventError, "pipeline0", line[len(gstErrorPrefix):], "", nil)
			}
		}
	}
	return generic
}

// splitElementError splits "/GstPipeline:pipeline0/GstX264Enc:x264enc0: msg".
func splitElementError(s string) (path, msg string) {
	idx := strings.Index(s, ": ")
	if idx == -1 {
		return s, ""
	}
	return s[:idx], s[idx+2:]
}

// elementName returns "x264enc0" for "/GstPipeline:pipeline0/GstX264Enc:x264enc0".
func elementName(path string) string {
	last := path
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		last = path[idx+1:]
	}
	if idx := strings.LastIndex(last, ":"); idx != -1 {
		last = last[idx+1:]
	}
	return last
}

// gstDebugInfo collects the lines following "Additional debug info:" up to
// the next status line.
func gstDebugInfo(lines []string) string {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != gstDebugHeader {
		return ""
	}
	var detail []string
	for _, line := range lines[1:] {
		if isGstStatusLine(line) {
			break
		}
		detail = append(detail, line)
	}
	return strings.Join(detail, "\n")
}

func isGstStatusLine(line string) bool {
	for _, prefix := range []string{gstErrorPrefix, gstWarningPrefix, "Execution ended", "Setting pipeline", "Freeing pipeline", "Got EOS", "Interrupt:", "EOS on shutdown"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return strings.TrimSpace(line) == ""
}
