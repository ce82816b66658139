package tensor

import (
	"errors"
	"testing"

	"github.com/samcharles93/kernelhal/internal/status"
)

func TestFromFloat32RoundTrip(t *testing.T) {
	t.Parallel()

	// Values exactly representable in every dtype.
	vals := []float32{1, -2, 0.5, 3.25, 0, -0.125}
	for _, dt := range []DType{F32, F16, BF16} {
		tt, err := FromFloat32(dt, vals, 2, 3)
		if err != nil {
			t.Fatalf("%s: FromFloat32: %v", dt, err)
		}
		if tt.Size() != 6 || tt.Rank() != 2 || tt.Dim(-1) != 3 {
			t.Fatalf("%s: unexpected shape %v", dt, tt.Shape())
		}
		got := tt.Float32s()
		for i := range vals {
			if got[i] != vals[i] {
				t.Fatalf("%s: value %d: got %v want %v", dt, i, got[i], vals[i])
			}
			if tt.At(i) != vals[i] {
				t.Fatalf("%s: At(%d): got %v want %v", dt, i, tt.At(i), vals[i])
			}
		}
	}
}

func TestFromFloat32SizeMismatch(t *testing.T) {
	t.Parallel()
	_, err := FromFloat32(F32, []float32{1, 2, 3}, 2, 2)
	if !errors.Is(err, status.ErrInvalidArgs) {
		t.Fatalf("expected invalid args, got %v", err)
	}
}

func TestResizeReusesStorage(t *testing.T) {
	t.Parallel()
	tt, err := New(F32, 4, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := &tt.Float32Data()[0]
	if err := tt.Resize(2, 3); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if &tt.Float32Data()[0] != before {
		t.Fatal("expected shrink to reuse storage")
	}
	if tt.Size() != 6 {
		t.Fatalf("size: got %d want 6", tt.Size())
	}
}

func TestResizeLimits(t *testing.T) {
	t.Parallel()
	tt, err := New(F16, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tt.Resize(1<<16, 1<<15); !errors.Is(err, status.ErrOutOfResources) {
		t.Fatalf("expected out of resources, got %v", err)
	}
	if err := tt.Resize(-1); !errors.Is(err, status.ErrInvalidArgs) {
		t.Fatalf("expected invalid args for negative dim, got %v", err)
	}
}

func TestParseDType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want DType
	}{
		{"f32", F32},
		{"float16", F16},
		{"BF16", BF16},
	}
	for _, tc := range tests {
		got, err := ParseDType(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseDType(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := ParseDType("int8"); err == nil {
		t.Error("expected error for int8")
	}
	if d, err := ParseDevice("GPU"); err != nil || d != GPU {
		t.Errorf("ParseDevice(GPU) = %v, %v", d, err)
	}
}
