// Package errkind classifies the four error kinds from the module contract
// (configuration, evaluation, dispatch, coercion) so callers can react to a
// failure's category without parsing error strings.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of the four failure categories a transform pipeline can raise.
type Kind int

const (
	// Configuration covers graph invariant violations, malformed
	// attributes, unknown node kinds, and query/template compile failures.
	// Raised at graph build time.
	Configuration Kind = iota
	// Evaluation covers jq/template runtime failures.
	Evaluation
	// Dispatch covers call timeouts, transport failures, and non-2xx
	// upstream responses.
	Dispatch
	// Coercion covers values that cannot be encoded or converted at a port
	// boundary (a body that cannot be serialized, a headers value that is
	// not an object of strings); such an error fails the node raising it.
	// A body declared as JSON but unparseable raises no error at all:
	// coerce.DecodeBody falls back to Raw.
	Coercion
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Evaluation:
		return "evaluation"
	case Dispatch:
		return "dispatch"
	case Coercion:
		return "coercion"
	default:
		return "unknown"
	}
}

type wrapped struct {
	kind Kind
	err  error
}

func (w *wrapped) Error() string { return fmt.Sprintf("%s error: %v", w.kind, w.err) }
func (w *wrapped) Unwrap() error { return w.err }

// Wrap tags err with kind, preserving it for errors.Unwrap/errors.Is chains.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, err: err}
}

// Configurationf wraps a formatted error as a Configuration-kind error.
func Configurationf(format string, args ...any) error {
	return Wrap(Configuration, fmt.Errorf(format, args...))
}

// Evaluationf wraps a formatted error as an Evaluation-kind error.
func Evaluationf(format string, args ...any) error {
	return Wrap(Evaluation, fmt.Errorf(format, args...))
}

// Dispatchf wraps a formatted error as a Dispatch-kind error.
func Dispatchf(format string, args ...any) error {
	return Wrap(Dispatch, fmt.Errorf(format, args...))
}

// Coercionf wraps a formatted error as a Coercion-kind error.
func Coercionf(format string, args ...any) error {
	return Wrap(Coercion, fmt.Errorf(format, args...))
}

// Is reports whether err (or something it wraps) was tagged with kind.
func Is(err error, kind Kind) bool {
	var w *wrapped
	for errors.As(err, &w) {
		if w.kind == kind {
			return true
		}
		err = w.err
	}
	return false
}

// Of returns the kind err was tagged with and whether it was tagged at all.
func Of(err error) (Kind, bool) {
	var w *wrapped
	if errors.As(err, &w) {
		return w.kind, true
	}
	return 0, false
}
