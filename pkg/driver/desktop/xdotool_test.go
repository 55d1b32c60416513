package desktop

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

type recorded struct {
	name string
	args []string
}

func recordingXdotool(err error) (*Xdotool, *[]recorded) {
	var calls []recorded
	x := NewXdotool("/usr/bin/xdotool")
	x.Run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, recorded{name: name, args: args})
		return nil, err
	}
	return x, &calls
}

func TestXdotool_Commands(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		run  func(x *Xdotool) error
		want string
	}{
		{"click", func(x *Xdotool) error { return x.Click(ctx, testcase.Point{X: 10, Y: 20}) }, "mousemove 10 20 click 1"},
		{"move", func(x *Xdotool) error { return x.MoveMouse(ctx, testcase.Point{X: 5, Y: 6}) }, "mousemove 5 6"},
		{"type", func(x *Xdotool) error { return x.TypeText(ctx, "-rf hello") }, "type --delay 12 -- -rf hello"},
		{"key", func(x *Xdotool) error { return x.KeyTap(ctx, "Enter") }, "key -- Return"},
		{"raw key", func(x *Xdotool) error { return x.KeyTap(ctx, "ctrl+s") }, "key -- ctrl+s"},
		{"drag", func(x *Xdotool) error {
			return x.Drag(ctx, testcase.Point{X: 1, Y: 2}, testcase.Point{X: 3, Y: 4})
		}, "mousemove 1 2 mousedown 1 mousemove 3 4 mouseup 1"},
	}

	for _, tt := range tests {
		x, calls := recordingXdotool(nil)
		if err := tt.run(x); err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if len(*calls) != 1 {
			t.Errorf("%s: %d calls, want 1", tt.name, len(*calls))
			continue
		}
		c := (*calls)[0]
		if c.name != "/usr/bin/xdotool" {
			t.Errorf("%s: binary = %q", tt.name, c.name)
		}
		if got := strings.Join(c.args, " "); got != tt.want {
			t.Errorf("%s: args = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestXdotool_Screenshot(t *testing.T) {
	x, calls := recordingXdotool(nil)
	path := filepath.Join(t.TempDir(), "shots", "s.png")
	if err := x.Screenshot(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := (*calls)[0]
	if c.name != "import" || c.args[len(c.args)-1] != path {
		t.Errorf("call = %+v", c)
	}
}

func TestXdotool_CheckError(t *testing.T) {
	x, _ := recordingXdotool(errors.New("Can't open display"))
	if err := x.Check(context.Background()); err == nil {
		t.Error("expected error when display is unavailable")
	}
}
