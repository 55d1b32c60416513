package desktop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //#nosec G204 -- binary comes from run config
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err != nil {
		return out.Bytes(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), nil
}

// Xdotool drives X11 input through the xdotool command.
type Xdotool struct {
	Bin           string // xdotool binary
	ScreenshotBin string // ImageMagick import binary
	TypeDelayMs   int
	Run           Runner
}

var _ InputDriver = (*Xdotool)(nil)

// NewXdotool creates an xdotool driver using bin.
func NewXdotool(bin string) *Xdotool {
	if bin == "" {
		bin = "xdotool"
	}
	return &Xdotool{Bin: bin, ScreenshotBin: "import", TypeDelayMs: 12, Run: ExecRunner}
}

func (x *Xdotool) run(ctx context.Context, args ...string) error {
	logger.Debug("xdotool %s", strings.Join(args, " "))
	_, err := x.Run(ctx, x.Bin, args...)
	return err
}

// Check verifies xdotool can reach the display.
func (x *Xdotool) Check(ctx context.Context) error {
	if _, err := x.Run(ctx, x.Bin, "getdisplaygeometry"); err != nil {
		return fmt.Errorf("xdotool unavailable: %w", err)
	}
	return nil
}

func (x *Xdotool) MoveMouse(ctx context.Context, p testcase.Point) error {
	return x.run(ctx, "mousemove", itoa(p.X), itoa(p.Y))
}

func (x *Xdotool) Click(ctx context.Context, p testcase.Point) error {
	return x.run(ctx, "mousemove", itoa(p.X), itoa(p.Y), "click", "1")
}

func (x *Xdotool) TypeText(ctx context.Context, text string) error {
	return x.run(ctx, "type", "--delay", itoa(x.TypeDelayMs), "--", text)
}

func (x *Xdotool) KeyTap(ctx context.Context, key string) error {
	return x.run(ctx, "key", "--", keysym(key))
}

func (x *Xdotool) Drag(ctx context.Context, from, to testcase.Point) error {
	return x.run(ctx,
		"mousemove", itoa(from.X), itoa(from.Y),
		"mousedown", "1",
		"mousemove", itoa(to.X), itoa(to.Y),
		"mouseup", "1")
}

func (x *Xdotool) Screenshot(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	_, err := x.Run(ctx, x.ScreenshotBin, "-window", "root", path)
	return err
}

func itoa(n int) string { return strconv.Itoa(n) }

// keysym maps logical key names to X keysyms. Unknown names pass through,
// so "ctrl+s" and raw keysyms work unchanged.
func keysym(name string) string {
	if k, ok := keysyms[name]; ok {
		return k
	}
	return name
}

var keysyms = map[string]string{
	"Enter":      "Return",
	"Escape":     "Escape",
	"Tab":        "Tab",
	"Backspace":  "BackSpace",
	"Delete":     "Delete",
	"Space":      "space",
	"ArrowUp":    "Up",
	"ArrowDown":  "Down",
	"ArrowLeft":  "Left",
	"ArrowRight": "Right",
	"Home":       "Home",
	"End":        "End",
	"PageUp":     "Prior",
	"PageDown":   "Next",
}
