package status

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want error
	}{
		{InvalidArgs, ErrInvalidArgs},
		{OutOfResources, ErrOutOfResources},
		{Unsupported, ErrUnsupported},
		{RuntimeError, ErrRuntime},
	}
	for _, tc := range tests {
		err := New(tc.code, "gemv", "bad %s", "shape")
		if !errors.Is(err, tc.want) {
			t.Errorf("code %v: errors.Is(%v, %v) = false", tc.code, err, tc.want)
		}
		if CodeOf(err) != tc.code {
			t.Errorf("CodeOf: got %v want %v", CodeOf(err), tc.code)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()
	err := New(InvalidArgs, "gemv", "lhs width %d != %d", 3, 4)
	if got := err.Error(); got != "gemv: lhs width 3 != 4" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestCodeOfWrapped(t *testing.T) {
	t.Parallel()
	inner := New(Unsupported, "affinity", "no sched_setaffinity")
	outer := fmt.Errorf("set policy: %w", inner)
	if CodeOf(outer) != Unsupported {
		t.Fatalf("CodeOf wrapped: got %v", CodeOf(outer))
	}
	if CodeOf(fmt.Errorf("x: %w", ErrOutOfResources)) != OutOfResources {
		t.Fatal("expected sentinel-only error to map to OutOfResources")
	}
	if CodeOf(errors.New("boom")) != RuntimeError {
		t.Fatal("expected unknown error to map to RuntimeError")
	}
	if CodeOf(nil) != Success {
		t.Fatal("expected nil to map to Success")
	}
}

func TestWrapNil(t *testing.T) {
	t.Parallel()
	if Wrap(RuntimeError, "op", nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	err := Wrap(RuntimeError, "flush", errors.New("disk full"))
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestLegacyCode(t *testing.T) {
	t.Parallel()
	if LegacyCode(nil) != 0 {
		t.Fatal("expected 0 for nil")
	}
	if LegacyCode(ErrRuntime) != -1 {
		t.Fatal("expected -1 for error")
	}
}
