package pipeline

import (
	"errors"
	"testing"
)

func TestEventReleaseOnce(t *testing.T) {
	calls := 0
	ev := NewEvent(EventError, "x264enc0", "boom", "", func() { calls++ })

	ev.Release()
	ev.Release()

	if calls != 1 {
		t.Errorf("release called %d times, want 1", calls)
	}
}

func TestEventReleaseNil(_ *testing.T) {
	var ev *Event
	ev.Release()
	NewEvent(EventEOS, "", "", "", nil).Release()
}

func TestStateAndKindStrings(t *testing.T) {
	if StatePlaying.String() != "playing" || StateNull.String() != "null" || State(9).String() != "invalid" {
		t.Error("unexpected State strings")
	}
	if EventEOS.String() != "eos" || EventError.String() != "error" || EventKind(7).String() != "unknown" {
		t.Error("unexpected EventKind strings")
	}
}

type countingEngine struct {
	inits, deinits int
	err            error
}

func (e *countingEngine) Init() error { e.inits++; return e.err }
func (e *countingEngine) Deinit()     { e.deinits++ }

func TestOnceInitAndDeinit(t *testing.T) {
	engine := &countingEngine{}
	once := NewOnce(engine)

	for range 3 {
		if err := once.Init(); err != nil {
			t.Fatal(err)
		}
	}
	once.Deinit()
	once.Deinit()

	if engine.inits != 1 || engine.deinits != 1 {
		t.Errorf("inits=%d deinits=%d, want 1/1", engine.inits, engine.deinits)
	}
}

func TestOnceSkipsDeinitAfterFailedInit(t *testing.T) {
	engine := &countingEngine{err: errors.New("no plugins")}
	once := NewOnce(engine)

	if err := once.Init(); err == nil {
		t.Fatal("expected init error")
	}
	if err := once.Init(); err == nil {
		t.Fatal("init error should be sticky")
	}
	once.Deinit()

	if engine.inits != 1 || engine.deinits != 0 {
		t.Errorf("inits=%d deinits=%d, want 1/0", engine.inits, engine.deinits)
	}
}
