package backend

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/smazurov/videosaver/internal/pipeline"
	"github.com/smazurov/videosaver/internal/pipeline/launch"
)

func TestOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{name: "gst-launch", opts: Options{Name: "gst-launch"}},
		{name: "ffmpeg with binary", opts: Options{Name: "ffmpeg", Binary: "/usr/local/bin/ffmpeg"}},
		{name: "command", opts: Options{Name: "command", Command: "sh -c true"}},
		{name: "command without line", opts: Options{Name: "command"}, wantErr: pipeline.ErrInvalidConfig},
		{name: "unknown", opts: Options{Name: "vlc"}, wantErr: pipeline.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(tt.opts, logger)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if _, ok := b.(*launch.Service); !ok {
				t.Errorf("Open() = %T, want *launch.Service", b)
			}
		})
	}
}
