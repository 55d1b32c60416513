package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_WritesLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	Info("started %s", "run")
	Warn("slow")
	Debug("detail")
	Error("boom")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[INFO] started run", "[WARN] slow", "[DEBUG] detail", "[ERROR] boom"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

func TestSetVerbose_MirrorsToStderr(t *testing.T) {
	var buf bytes.Buffer
	mu.Lock()
	old := stderr
	stderr = &buf
	mu.Unlock()
	defer func() {
		SetVerbose(false)
		mu.Lock()
		stderr = old
		mu.Unlock()
	}()

	Info("before verbose")
	SetVerbose(true)
	Info("after verbose")

	if strings.Contains(buf.String(), "before verbose") {
		t.Error("stderr received a line logged before SetVerbose(true)")
	}
	if !strings.Contains(buf.String(), "[INFO] after verbose") {
		t.Errorf("stderr = %q, want it to contain the verbose line", buf.String())
	}
}

func TestGetWriter_NoFile(t *testing.T) {
	Close()
	if w := GetWriter(); w == nil {
		t.Error("GetWriter() = nil, want io.Discard")
	}
}
