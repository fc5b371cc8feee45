package rotation

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/smazurov/videosaver/internal/pipeline"
)

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name    string
		kind    pipeline.EventKind
		detail  string
		want    Outcome
		logHas  string
	}{
		{name: "eos", kind: pipeline.EventEOS, want: OutcomeEOS, logHas: "End-of-stream"},
		{name: "error with detail", kind: pipeline.EventError, detail: "gstx264enc.c(1234)", want: OutcomeError, logHas: "gstx264enc.c(1234)"},
		{name: "error without detail", kind: pipeline.EventError, want: OutcomeError, logHas: "debug=none"},
		{name: "anomaly", kind: pipeline.EventUnknown, want: OutcomeAnomaly, logHas: "Unexpected terminal event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			released := 0
			ev := pipeline.NewEvent(tt.kind, "x264enc0", "boom", tt.detail, func() { released++ })

			if got := HandleEvent(logger, ev); got != tt.want {
				t.Errorf("HandleEvent() = %s, want %s", got, tt.want)
			}
			if released != 1 {
				t.Errorf("event released %d times, want 1", released)
			}
			if !strings.Contains(buf.String(), tt.logHas) {
				t.Errorf("log missing %q:\n%s", tt.logHas, buf.String())
			}
		})
	}
}

func TestHandleEventNil(t *testing.T) {
	if got := HandleEvent(testLogger(), nil); got != OutcomeNoEvent {
		t.Errorf("HandleEvent(nil) = %s, want %s", got, OutcomeNoEvent)
	}
}

func TestStateStrings(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Running: "running", Draining: "draining", State(9): "invalid"} {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
