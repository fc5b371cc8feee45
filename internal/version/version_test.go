package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version || info.GoVersion != runtime.Version() {
		t.Errorf("Get() = %+v", info)
	}
	if !strings.Contains(info.String(), "commit "+GitCommit) {
		t.Errorf("String() = %q", info.String())
	}
}
