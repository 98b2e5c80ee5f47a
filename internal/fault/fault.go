// Package fault defines the error taxonomy shared by the stateful
// components. Pure packages (classify, stagegate) never return errors;
// everything the store and engine can surface is one of these kinds.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Validation marks a malformed or missing required field on an event.
	Validation Kind = "validation"
	// Conflict marks a duplicate active-lock key on acquire.
	Conflict Kind = "conflict"
	// TransientStore marks an unreachable lock store or bus. Always retryable.
	TransientStore Kind = "transient_store"
	// Config marks an unknown pod with no fallback limits. Resolved by
	// defaulting upstream, so it should not escape the config layer.
	Config Kind = "config"
)

type Fault struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error { return f.Err }

func New(kind Kind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error, typically a store error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

func IsConflict(err error) bool   { return KindOf(err) == Conflict }
func IsValidation(err error) bool { return KindOf(err) == Validation }

// Retryable reports whether the caller's redelivery mechanism should
// reattempt the unit of work. Only transient store faults qualify;
// validation and conflict faults are deterministic.
func Retryable(err error) bool { return KindOf(err) == TransientStore }
