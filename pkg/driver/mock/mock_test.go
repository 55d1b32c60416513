package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

func TestDriver_FailOnStep(t *testing.T) {
	d := New(Config{FailOnStep: 2})
	ctx := context.Background()

	want := []core.StepStatus{core.StatusPassed, core.StatusFailed, core.StatusPassed}
	for i, status := range want {
		res := d.Execute(ctx, &testcase.TestAction{Type: testcase.ActionClick})
		if res.Status() != status {
			t.Errorf("step %d: status = %v, want %v", i+1, res.Status(), status)
		}
	}
	if len(d.Executed()) != 3 {
		t.Errorf("Executed() = %d actions, want 3", len(d.Executed()))
	}
}

func TestDriver_SkipKinds(t *testing.T) {
	d := New(Config{SkipKinds: map[testcase.ActionKind]bool{testcase.ActionSwipe: true}})
	res := d.Execute(context.Background(), &testcase.TestAction{Type: testcase.ActionSwipe})
	if res.Status() != core.StatusSkipped {
		t.Errorf("status = %v, want skipped", res.Status())
	}
}

func TestDriver_InitErr(t *testing.T) {
	boom := errors.New("boom")
	d := New(Config{Platform: testcase.PlatformMobile, InitErr: boom})
	if d.Platform() != testcase.PlatformMobile {
		t.Errorf("Platform() = %q", d.Platform())
	}
	if err := d.Init(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Init() = %v, want boom", err)
	}
	_ = d.Teardown(context.Background())
	if inits, teardowns := d.Calls(); inits != 1 || teardowns != 1 {
		t.Errorf("Calls() = %d, %d", inits, teardowns)
	}
}
