package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults applied by SessionConfig.WithDefaults.
const (
	DefaultExtension = "mp4"
	DefaultFrameRate = 30
)

// SessionConfig is fixed for the lifetime of a controller.
type SessionConfig struct {
	Pattern      int    // test source pattern id
	Bitrate      int    // target bitrate in kbps
	UnitsPerFile int    // units of work per artifact
	FrameRate    int    // frames per second of the source
	OutputDir    string // directory for artifacts, "" for the working directory
	Extension    string // container extension without the dot
}

// Validate reports whether the configuration can be rendered.
func (c SessionConfig) Validate() error {
	switch {
	case c.UnitsPerFile <= 0:
		return fmt.Errorf("%w: units per file must be positive, got %d", ErrInvalidConfig, c.UnitsPerFile)
	case c.Bitrate <= 0:
		return fmt.Errorf("%w: bitrate must be positive, got %d", ErrInvalidConfig, c.Bitrate)
	case c.Pattern < 0:
		return fmt.Errorf("%w: pattern must not be negative, got %d", ErrInvalidConfig, c.Pattern)
	case c.FrameRate < 0:
		return fmt.Errorf("%w: frame rate must not be negative, got %d", ErrInvalidConfig, c.FrameRate)
	}
	return nil
}

// WithDefaults returns a copy with zero FrameRate and Extension filled in.
func (c SessionConfig) WithDefaults() SessionConfig {
	if c.FrameRate == 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	return c
}

// ArtifactName returns the file name for a sequence index.
func ArtifactName(seq int, ext string) string {
	return "output_" + strconv.Itoa(seq) + "." + ext
}

// Description is one renderable pipeline: the session parameters plus the
// artifact it writes.
type Description struct {
	Config   SessionConfig
	Sequence int
	Output   string // artifact path
}

// NewDescription builds the description for sequence index seq.
func NewDescription(cfg SessionConfig, seq int) (Description, error) {
	if err := cfg.Validate(); err != nil {
		return Description{}, err
	}
	if seq < 0 {
		return Description{}, fmt.Errorf("%w: sequence index must not be negative, got %d", ErrInvalidConfig, seq)
	}
	cfg = cfg.WithDefaults()

	output := ArtifactName(seq, cfg.Extension)
	if cfg.OutputDir != "" {
		output = filepath.Join(cfg.OutputDir, output)
	}

	return Description{Config: cfg, Sequence: seq, Output: output}, nil
}

const launchTemplate = "videotestsrc is-live=true pattern=%d ! video/x-raw,framerate=%d/1 ! " +
	"videoconvert ! x264enc bitrate=%d key-int-max=%d tune=zerolatency ! " +
	"mp4mux ! filesink location=%s"

// Launch renders the description as a GStreamer launch line.
func (d Description) Launch() string {
	return fmt.Sprintf(launchTemplate,
		d.Config.Pattern,
		d.Config.FrameRate,
		d.Config.Bitrate,
		d.Config.UnitsPerFile,
		launchQuote(d.Output),
	)
}

// launchQuote double-quotes a property value for the launch parser, which
// only understands backslash escapes of '"' and '\'.
func launchQuote(s string) string {
	return `"` + launchEscaper.Replace(s) + `"`
}

var launchEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// lavfiSources maps videotestsrc pattern ids to the closest lavfi source.
var lavfiSources = map[int]string{
	0:  "smptebars",
	2:  "color=c=black",
	3:  "color=c=white",
	4:  "color=c=red",
	5:  "color=c=green",
	6:  "color=c=blue",
	18: "testsrc2",
}

// FFmpegArgs renders the description as ffmpeg input, encoder and output
// arguments. Program name and global options such as logging belong to the
// caller.
func (d Description) FFmpegArgs() []string {
	source, ok := lavfiSources[d.Config.Pattern]
	if !ok {
		source = "testsrc2"
	}
	rate := strconv.Itoa(d.Config.FrameRate)

	return []string{
		"-re",
		"-f", "lavfi",
		"-i", source + ":rate=" + rate,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-b:v", strconv.Itoa(d.Config.Bitrate) + "k",
		"-g", strconv.Itoa(d.Config.UnitsPerFile),
		"-tune", "zerolatency",
		d.Output,
	}
}
