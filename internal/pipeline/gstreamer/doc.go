// Package gstreamer runs pipelines inside the process through go-gst.
//
// It is only compiled with the gst build tag, which needs the GStreamer
// development headers and cgo. Without the tag Open reports
// ErrUnavailable and the subprocess backend in package launch is used.
package gstreamer

import (
	"errors"

	"github.com/smazurov/videosaver/internal/pipeline"
)

// ErrUnavailable is returned by Open in builds without the gst tag.
var ErrUnavailable = errors.New("in-process gstreamer backend not compiled in (build with -tags gst)")

// Backend is a media service that also owns the process-wide engine.
type Backend interface {
	pipeline.Service
	pipeline.Engine
}
