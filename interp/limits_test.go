package interp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/corrosive-labs/vsh/syntax"
)

func TestLoopGuardTripsLimit(t *testing.T) {
	t.Parallel()

	r, err := New(ExecutionLimits(Limits{MaxLoopIterations: 3}))
	if err != nil {
		t.Fatal(err)
	}
	src := "while true; do :; done"
	file, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	if err != nil {
		t.Fatal(err)
	}
	err = r.Run(context.Background(), file)
	var es ExitStatus
	if !errors.As(err, &es) || uint8(es) != LimitExitStatus {
		t.Fatalf("want exit %d, got %v", LimitExitStatus, err)
	}
}

func TestCallDepthTripsLimit(t *testing.T) {
	t.Parallel()

	r, err := New(ExecutionLimits(Limits{MaxCallDepth: 5}))
	if err != nil {
		t.Fatal(err)
	}
	src := "f() { f; }; f"
	file, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	if err != nil {
		t.Fatal(err)
	}
	err = r.Run(context.Background(), file)
	var es ExitStatus
	if !errors.As(err, &es) || uint8(es) != LimitExitStatus {
		t.Fatalf("want exit %d, got %v", LimitExitStatus, err)
	}
}
