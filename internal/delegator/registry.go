package delegator

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Creator builds a delegator from its descriptor.
type Creator func(Param) (OpDelegator, error)

// Registration pairs a signature with its creator. Kernel packages export
// their registrations as a list; hosts install them explicitly at startup.
type Registration struct {
	Signature Signature
	Creator   Creator
}

// Registry maps signatures to creators. Register is meant for the
// single-threaded startup phase; Create and Lookup are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	creators map[Signature]Creator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{creators: make(map[Signature]Creator)}
}

// Register adds a creator.
// Returns ErrAlreadyRegistered if sig is already present.
func (r *Registry) Register(sig Signature, c Creator) error {
	if err := sig.validate(); err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: nil creator for %s", ErrInvalidSignature, sig)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.creators[sig]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, sig)
	}
	r.creators[sig] = c
	return nil
}

// MustRegister is Register for startup code where a duplicate is a
// programming error.
func (r *Registry) MustRegister(sig Signature, c Creator) {
	if err := r.Register(sig, c); err != nil {
		panic(err)
	}
}

// RegisterAll installs regs in order and stops at the first failure.
func (r *Registry) RegisterAll(regs []Registration) error {
	for _, reg := range regs {
		if err := r.Register(reg.Signature, reg.Creator); err != nil {
			return err
		}
	}
	return nil
}

// Create instantiates the delegator registered under sig.
// Returns ErrNotFound when nothing is registered.
func (r *Registry) Create(sig Signature, p Param) (OpDelegator, error) {
	if p.Signature() != sig {
		return nil, fmt.Errorf("%w: param %s, signature %s", ErrParamMismatch, p.Signature(), sig)
	}

	r.mu.RLock()
	c, ok := r.creators[sig]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sig)
	}
	d, err := c(p)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", sig, err)
	}
	return d, nil
}

// Lookup reports whether sig has a creator.
func (r *Registry) Lookup(sig Signature) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.creators[sig]
	return ok
}

// Signatures returns every registered signature in a stable order.
func (r *Registry) Signatures() []Signature {
	r.mu.RLock()
	sigs := make([]Signature, 0, len(r.creators))
	for sig := range r.creators {
		sigs = append(sigs, sig)
	}
	r.mu.RUnlock()

	slices.SortFunc(sigs, func(a, b Signature) int {
		return cmp.Or(
			cmp.Compare(a.Op, b.Op),
			cmp.Compare(a.Variant, b.Variant),
			cmp.Compare(a.Device, b.Device),
			cmp.Compare(a.DType, b.DType),
		)
	})
	return sigs
}

// Len returns the number of registered creators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.creators)
}

// New creates the delegator for sig and asserts it to T.
func New[T OpDelegator](r *Registry, sig Signature, layout Layout) (T, error) {
	var zero T
	d, err := r.Create(sig, NewParam(sig, layout))
	if err != nil {
		return zero, err
	}
	typed, ok := d.(T)
	if !ok {
		return zero, fmt.Errorf("delegator %s has type %T", sig, d)
	}
	return typed, nil
}
