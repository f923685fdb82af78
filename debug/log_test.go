package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()
	defer SetLevel("info")

	SetLevel("info")
	Trace("engine", "hidden %d", 1)
	Log("engine", "shown %d", 2)
	if strings.Contains(buf.String(), "hidden") {
		t.Error("trace should be filtered at info level")
	}
	if !strings.Contains(buf.String(), "shown 2") || !strings.Contains(buf.String(), "category=engine") {
		t.Errorf("missing info line: %q", buf.String())
	}

	SetLevel("debug")
	Trace("engine", "now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("trace should show at debug level")
	}
}

func TestDisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	Disable()
	Log("x", "nothing")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	for i := 0; i < 6; i++ {
		LogEvery(3, "tick", "frame")
	}
	if got := strings.Count(buf.String(), "frame (every 3"); got != 2 {
		t.Errorf("LogEvery wrote %d lines, want 2", got)
	}
}
