package launch

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/smazurov/videosaver/internal/pipeline"
)

func TestTemplateQuoting(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"plain", "ffmpeg -i in.mp4 out.mp4", []string{"ffmpeg", "-i", "in.mp4", "out.mp4"}, false},
		{"double quoted", `sh -c "echo hi; exit 0"`, []string{"sh", "-c", "echo hi; exit 0"}, false},
		{"single inside double", `sh -c "trap 'exit 0' INT"`, []string{"sh", "-c", "trap 'exit 0' INT"}, false},
		{"quote inside word", `filesink location="my file.mp4"`, []string{"filesink", "location=my file.mp4"}, false},
		{"escaped space", `cat a\ b`, []string{"cat", "a b"}, false},
		{"empty quoted arg", `printf ""`, []string{"printf", ""}, false},
		{"extra whitespace", "  a \t b  ", []string{"a", "b"}, false},
		{"unclosed", `sh -c "oops`, nil, true},
		{"blank", "   ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Template{Line: tt.input}.Command(testDescription(t, 0))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Command() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Command() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseGstLine(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"Setting pipeline to PLAYING ...", "info", "Setting pipeline to PLAYING ..."},
		{"ERROR: pipeline doesn't want to preroll.", "error", "pipeline doesn't want to preroll."},
		{"WARNING: erroneous pipeline: no element \"foo\"", "warning", "erroneous pipeline: no element \"foo\""},
		{"0:00:00.1 12 0x1 ERROR x264enc gstx264enc.c:1:f: boom", "error", "0:00:00.1 12 0x1 ERROR x264enc gstx264enc.c:1:f: boom"},
	}
	for _, tt := range tests {
		level, msg := ParseGstLine(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseGstLine(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestGstTerminalError(t *testing.T) {
	lines := []string{
		"Setting pipeline to PLAYING ...",
		"ERROR: from element /GstPipeline:pipeline0/GstX264Enc:x264enc0: Could not encode.",
		"Additional debug info:",
		"../ext/x264/gstx264enc.c(2452): gst_x264_enc_encode_frame (): /GstPipeline:pipeline0/GstX264Enc:x264enc0:",
		"encode failed",
		"Execution ended after 0:00:01.2",
		"ERROR: pipeline doesn't want to preroll.",
	}

	ev := gstTerminalError(lines)
	if ev == nil {
		t.Fatal("gstTerminalError() = nil")
	}
	if ev.Kind != pipeline.EventError || ev.Source != "x264enc0" || ev.Message != "Could not encode." {
		t.Errorf("event = %+v", ev)
	}
	wantDetail := lines[3] + "\n" + lines[4]
	if ev.Detail != wantDetail {
		t.Errorf("Detail = %q, want %q", ev.Detail, wantDetail)
	}
}

func TestGstTerminalErrorFallbacks(t *testing.T) {
	ev := gstTerminalError([]string{`WARNING: erroneous pipeline: no element "x265enc"`})
	if ev == nil || ev.Source != "gst-launch" || ev.Message != `no element "x265enc"` || ev.Detail != "" {
		t.Errorf("erroneous pipeline event = %+v", ev)
	}

	ev = gstTerminalError([]string{"ERROR: pipeline could not be constructed"})
	if ev == nil || ev.Source != "pipeline0" {
		t.Errorf("generic error event = %+v", ev)
	}

	if ev := gstTerminalError([]string{"Setting pipeline to NULL ..."}); ev != nil {
		t.Errorf("expected nil for clean output, got %+v", ev)
	}
}

func TestParseFFmpegLine(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] frame=  30 fps=30", "info", "frame=  30 fps=30"},
		{"[error] Conversion failed!", "error", "Conversion failed!"},
		{"[libx264 @ 0x5581] [error] broken", "error", "[libx264 @ 0x5581] broken"},
		{"[libx264 @ 0x5581] profile High", "info", "[libx264 @ 0x5581] profile High"},
		{"plain line", "info", "plain line"},
		{"[x", "info", "[x"},
	}
	for _, tt := range tests {
		level, msg := ParseFFmpegLine(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseFFmpegLine(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestFFmpegTerminalError(t *testing.T) {
	ev := ffmpegTerminalError([]string{
		"[info] Stream mapping:",
		"[libx264 @ 0x5581] [error] Error setting profile",
		"[error] Conversion failed!",
	})
	if ev == nil {
		t.Fatal("ffmpegTerminalError() = nil")
	}
	if ev.Source != "libx264" || ev.Message != "Error setting profile" || ev.Detail != "Conversion failed!" {
		t.Errorf("event = %+v", ev)
	}

	if ev := ffmpegTerminalError([]string{"[info] all good"}); ev != nil {
		t.Errorf("expected nil, got %+v", ev)
	}
}

func testDescription(t *testing.T, seq int) pipeline.Description {
	t.Helper()
	desc, err := pipeline.NewDescription(pipeline.SessionConfig{Pattern: 0, Bitrate: 2000, UnitsPerFile: 30}, seq)
	if err != nil {
		t.Fatalf("NewDescription() error = %v", err)
	}
	return desc
}

func TestDialectCommands(t *testing.T) {
	desc := testDescription(t, 4)

	gst, err := GstLaunch{}.Command(desc)
	if err != nil {
		t.Fatalf("GstLaunch.Command() error = %v", err)
	}
	if gst[0] != "gst-launch-1.0" || gst[1] != "-e" || gst[2] != "videotestsrc" {
		t.Errorf("gst-launch argv starts %q", gst[:3])
	}
	if last := gst[len(gst)-1]; last != "location=output_4.mp4" {
		t.Errorf("gst-launch last arg = %q", last)
	}

	ff, err := FFmpeg{Path: "/opt/ffmpeg"}.Command(desc)
	if err != nil {
		t.Fatalf("FFmpeg.Command() error = %v", err)
	}
	if ff[0] != "/opt/ffmpeg" || ff[len(ff)-1] != "output_4.mp4" {
		t.Errorf("ffmpeg argv = %q", ff)
	}

	tmpl := Template{Line: `sh -c "echo {{sequence}} {{bitrate}} > {{output}}"`}
	args, err := tmpl.Command(desc)
	if err != nil {
		t.Fatalf("Template.Command() error = %v", err)
	}
	want := []string{"sh", "-c", "echo 4 2000 > output_4.mp4"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("Template.Command() = %q, want %q", args, want)
	}
	if tmpl.Binary() != "sh" {
		t.Errorf("Template.Binary() = %q, want sh", tmpl.Binary())
	}
}

func TestGstLaunchKeepsOutputPathWhole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), `my "vidéo" dir`)
	desc, err := pipeline.NewDescription(pipeline.SessionConfig{Bitrate: 2000, UnitsPerFile: 30, OutputDir: dir}, 2)
	if err != nil {
		t.Fatalf("NewDescription() error = %v", err)
	}

	args, err := GstLaunch{}.Command(desc)
	if err != nil {
		t.Fatalf("GstLaunch.Command() error = %v", err)
	}
	if last := args[len(args)-1]; last != "location="+desc.Output {
		t.Errorf("last arg = %q, want location=%s", last, desc.Output)
	}
}

func TestFFmpegGlobalOptionsOnce(t *testing.T) {
	args, err := FFmpeg{}.Command(testDescription(t, 0))
	if err != nil {
		t.Fatalf("FFmpeg.Command() error = %v", err)
	}
	counts := make(map[string]int)
	for _, arg := range args {
		counts[arg]++
	}
	for _, opt := range []string{"-hide_banner", "-nostdin", "-loglevel", "-y"} {
		if counts[opt] != 1 {
			t.Errorf("%s appears %d times in %q", opt, counts[opt], args)
		}
	}
}

func TestFFmpegCleanExit(t *testing.T) {
	f := FFmpeg{}
	if !f.CleanExit(0, false) || !f.CleanExit(255, true) {
		t.Error("expected 0 and interrupted 255 to be clean")
	}
	if f.CleanExit(255, false) || f.CleanExit(1, true) {
		t.Error("expected uninterrupted 255 and 1 to be failures")
	}
}

func TestDialectByName(t *testing.T) {
	for _, name := range []string{"gst-launch", "ffmpeg"} {
		d, err := DialectByName(name, "")
		if err != nil || d.Name() != name {
			t.Errorf("DialectByName(%q) = %v, %v", name, d, err)
		}
	}
	if _, err := DialectByName("command", " "); err == nil {
		t.Error("expected error for empty command line")
	}
	if _, err := DialectByName("vlc", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}
