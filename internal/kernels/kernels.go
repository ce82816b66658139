// Package kernels is the startup registration list for every built-in
// delegator.
package kernels

import (
	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/delegator/gemv"
)

// Builtin returns the registrations of all built-in kernels in install order.
func Builtin() []delegator.Registration {
	var regs []delegator.Registration
	regs = append(regs, gemv.Registrations()...)
	return regs
}

// NewRegistry returns a registry holding every built-in kernel.
func NewRegistry() (*delegator.Registry, error) {
	r := delegator.NewRegistry()
	if err := r.RegisterAll(Builtin()); err != nil {
		return nil, err
	}
	return r, nil
}
