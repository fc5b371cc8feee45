package pipeline

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestNewDescriptionEmbedsSequence(t *testing.T) {
	cfg := SessionConfig{Pattern: 0, Bitrate: 2000, UnitsPerFile: 30}

	seen := make(map[string]bool)
	for seq := range 5 {
		desc, err := NewDescription(cfg, seq)
		if err != nil {
			t.Fatalf("NewDescription(%d): %v", seq, err)
		}
		want := ArtifactName(seq, DefaultExtension)
		if desc.Output != want {
			t.Errorf("Output = %q, want %q", desc.Output, want)
		}
		if !strings.Contains(desc.Launch(), want) {
			t.Errorf("launch line does not name %q: %s", want, desc.Launch())
		}
		if seen[desc.Output] {
			t.Errorf("artifact name %q reused", desc.Output)
		}
		seen[desc.Output] = true
	}
}

func TestArtifactName(t *testing.T) {
	if got := ArtifactName(0, "mp4"); got != "output_0.mp4" {
		t.Errorf("ArtifactName(0) = %q", got)
	}
	if got := ArtifactName(12, "mkv"); got != "output_12.mkv" {
		t.Errorf("ArtifactName(12) = %q", got)
	}
}

func TestDescriptionLaunch(t *testing.T) {
	desc, err := NewDescription(SessionConfig{Pattern: 18, Bitrate: 2000, UnitsPerFile: 30, FrameRate: 25}, 3)
	if err != nil {
		t.Fatal(err)
	}

	want := `videotestsrc is-live=true pattern=18 ! video/x-raw,framerate=25/1 ! ` +
		`videoconvert ! x264enc bitrate=2000 key-int-max=30 tune=zerolatency ! ` +
		`mp4mux ! filesink location="output_3.mp4"`
	if got := desc.Launch(); got != want {
		t.Errorf("Launch() =\n%s\nwant\n%s", got, want)
	}
}

func TestDescriptionLaunchQuotesPath(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"non-ascii", "/srv/vidéo/日本", `location="/srv/vidéo/日本/output_0.mp4"`},
		{"space", "/srv/my videos", `location="/srv/my videos/output_0.mp4"`},
		{"quote and backslash", `/srv/a"b\c`, `location="/srv/a\"b\\c/output_0.mp4"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := NewDescription(SessionConfig{Bitrate: 1000, UnitsPerFile: 10, OutputDir: tt.dir}, 0)
			if err != nil {
				t.Fatal(err)
			}
			if got := desc.Launch(); !strings.HasSuffix(got, "filesink "+tt.want) {
				t.Errorf("Launch() = %s, want suffix %s", got, tt.want)
			}
		})
	}
}

func TestDescriptionOutputDir(t *testing.T) {
	dir := t.TempDir()
	desc, err := NewDescription(SessionConfig{Bitrate: 1000, UnitsPerFile: 10, OutputDir: dir, Extension: "mkv"}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "output_7.mkv"); desc.Output != want {
		t.Errorf("Output = %q, want %q", desc.Output, want)
	}
}

func TestDescriptionFFmpegArgs(t *testing.T) {
	desc, err := NewDescription(SessionConfig{Pattern: 0, Bitrate: 2000, UnitsPerFile: 30}, 1)
	if err != nil {
		t.Fatal(err)
	}
	args := desc.FFmpegArgs()

	if args[len(args)-1] != "output_1.mp4" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}
	for _, want := range []string{"smptebars:rate=30", "2000k", "libx264"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}

	for _, global := range []string{"-hide_banner", "-nostdin", "-loglevel", "-y"} {
		if slices.Contains(args, global) {
			t.Errorf("args carry global option %q: %v", global, args)
		}
	}

	unknown, _ := NewDescription(SessionConfig{Pattern: 11, Bitrate: 2000, UnitsPerFile: 30}, 0)
	if !slices.Contains(unknown.FFmpegArgs(), "testsrc2:rate=30") {
		t.Errorf("unmapped pattern should fall back to testsrc2: %v", unknown.FFmpegArgs())
	}
}

func TestNewDescriptionRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  SessionConfig
		seq  int
	}{
		{"zero threshold", SessionConfig{Bitrate: 2000, UnitsPerFile: 0}, 0},
		{"negative threshold", SessionConfig{Bitrate: 2000, UnitsPerFile: -1}, 0},
		{"zero bitrate", SessionConfig{Bitrate: 0, UnitsPerFile: 30}, 0},
		{"negative pattern", SessionConfig{Pattern: -1, Bitrate: 2000, UnitsPerFile: 30}, 0},
		{"negative frame rate", SessionConfig{Bitrate: 2000, UnitsPerFile: 30, FrameRate: -5}, 0},
		{"negative sequence", SessionConfig{Bitrate: 2000, UnitsPerFile: 30}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDescription(tt.cfg, tt.seq)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
