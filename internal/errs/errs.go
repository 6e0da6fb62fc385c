package errs

import (
	"errors"
	"fmt"
	"log/slog"
)

// Wrap adds context and preserves the error chain (errors.Is/As works).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and preserves the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

// IsAny reports whether err matches any of the targets.
func IsAny(err error, targets ...error) bool {
	if err == nil {
		return false
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Root returns the innermost error of the unwrap chain.
func Root(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}

// Loggable makes slog encode the error as structured fields.
// Usage: slog.Any("err", errs.Loggable(err))
type loggable struct{ err error }

func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", ErrorChainStrings(l.err)),
	}
	if root := Root(l.err); root != nil && root != l.err {
		attrs = append(attrs, slog.String("root", root.Error()))
	}

	return slog.GroupValue(attrs...)
}

// ErrorChainStrings returns the unwrap chain as strings (outer -> inner).
func ErrorChainStrings(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 8)
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
