// Package panicerr turns panics in goroutines and callbacks into errors.
package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Safe wraps fn so that a panic is returned as an error.
func Safe(fn func() error) func() error {
	return func() error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn()
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return Safe(func() error { return fn(ctx) })()
	}
}

// SafeValue is Safe for functions that also return a value. The value is
// the zero value when fn panics.
func SafeValue[T any](fn func() (T, error)) func() (T, error) {
	return func() (T, error) {
		var (
			catcher panics.Catcher
			v       T
			err     error
		)
		catcher.Try(func() {
			v, err = fn()
		})
		if r := catcher.Recovered(); r != nil {
			var zero T
			return zero, r.AsError()
		}
		return v, err
	}
}
