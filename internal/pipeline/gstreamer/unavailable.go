//go:build !gst

package gstreamer

import "github.com/smazurov/videosaver/internal/logging"

// Open reports ErrUnavailable.
func Open(_ logging.Logger) (Backend, error) {
	return nil, ErrUnavailable
}
