package delegator

import (
	"errors"
	"sync"
	"testing"

	"github.com/samcharles93/kernelhal/internal/tensor"
)

type fakeDelegator struct {
	Base
}

func fakeCreator(p Param) (OpDelegator, error) {
	return &fakeDelegator{Base: NewBase(p)}, nil
}

func testSig(variant string) Signature {
	return Signature{Op: "gemv", Variant: variant, Device: tensor.CPU, DType: tensor.F32}
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	sig := testSig("ref")

	if err := r.Register(sig, fakeCreator); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	err := r.Register(sig, fakeCreator)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register() error = %v, want %v", err, ErrAlreadyRegistered)
	}
	if r.Len() != 1 {
		t.Fatalf("Len: got %d want 1", r.Len())
	}
}

func TestRegisterDistinctDTypes(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	a := testSig("ref")
	b := a
	b.DType = tensor.F16
	if err := r.Register(a, fakeCreator); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(b, fakeCreator); err != nil {
		t.Fatalf("distinct dtype should register: %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	tests := []struct {
		name string
		sig  Signature
		c    Creator
	}{
		{"empty op", Signature{Variant: "ref"}, fakeCreator},
		{"empty variant", Signature{Op: "gemv"}, fakeCreator},
		{"nil creator", testSig("ref"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.sig, tt.c); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("Register() error = %v, want %v", err, ErrInvalidSignature)
			}
		})
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.MustRegister(testSig("ref"), fakeCreator)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate MustRegister")
		}
	}()
	r.MustRegister(testSig("ref"), fakeCreator)
}

func TestCreateUnregistered(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	sig := testSig("missing")
	d, err := r.Create(sig, NewParam(sig, ""))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Create() error = %v, want %v", err, ErrNotFound)
	}
	if d != nil {
		t.Fatalf("expected nil delegator, got %T", d)
	}
}

func TestCreateBuildsFromParam(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	sig := testSig("ref")
	r.MustRegister(sig, fakeCreator)

	d, err := r.Create(sig, NewParam(sig, ColMajor))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.Param().Signature() != sig {
		t.Fatalf("param signature: got %s want %s", d.Param().Signature(), sig)
	}
	if d.Param().Layout() != ColMajor {
		t.Fatalf("layout: got %s", d.Param().Layout())
	}
}

func TestCreateParamMismatch(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	sig := testSig("ref")
	r.MustRegister(sig, fakeCreator)
	other := testSig("other")
	if _, err := r.Create(sig, NewParam(other, "")); !errors.Is(err, ErrParamMismatch) {
		t.Fatalf("expected ErrParamMismatch, got %v", err)
	}
}

func TestCreatorError(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	sig := testSig("broken")
	boom := errors.New("boom")
	r.MustRegister(sig, func(Param) (OpDelegator, error) { return nil, boom })
	if _, err := r.Create(sig, NewParam(sig, "")); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped creator error, got %v", err)
	}
}

func TestConcurrentCreate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	sig := testSig("ref")
	r.MustRegister(sig, fakeCreator)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Create(sig, NewParam(sig, "")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Create: %v", err)
	}
}

func TestGenericNew(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	sig := testSig("ref")
	r.MustRegister(sig, fakeCreator)
	d, err := New[*fakeDelegator](r, sig, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Param().Variant() != "ref" {
		t.Fatalf("variant: %s", d.Param().Variant())
	}
}

func TestSignaturesSorted(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.MustRegister(testSig("b"), fakeCreator)
	r.MustRegister(testSig("a"), fakeCreator)
	sigs := r.Signatures()
	if len(sigs) != 2 || sigs[0].Variant != "a" || sigs[1].Variant != "b" {
		t.Fatalf("unexpected order: %v", sigs)
	}
}

func TestParseSignature(t *testing.T) {
	t.Parallel()
	sig := Signature{Op: "gemv", Variant: "reference", Device: tensor.CPU, DType: tensor.BF16}
	got, err := ParseSignature(sig.String())
	if err != nil {
		t.Fatalf("ParseSignature: %v", err)
	}
	if got != sig {
		t.Fatalf("got %v want %v", got, sig)
	}
	for _, bad := range []string{"gemv", "gemv/ref/tpu/f32", "gemv/ref/cpu/int4", "/ref/cpu/f32"} {
		if _, err := ParseSignature(bad); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("ParseSignature(%q) error = %v", bad, err)
		}
	}
}
