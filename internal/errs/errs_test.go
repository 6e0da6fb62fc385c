package errs

import (
	"errors"
	"log/slog"
	"testing"
)

var errBase = errors.New("lab not found")

func TestWrapPreservesChain(t *testing.T) {
	err := Wrapf(Wrap(errBase, "get lab"), "assign lab %s", "lab-1")
	if !errors.Is(err, errBase) {
		t.Fatalf("errors.Is() = false, err = %v", err)
	}
	if got := err.Error(); got != "assign lab lab-1: get lab: lab not found" {
		t.Fatalf("Error() = %q", got)
	}
	if Wrap(nil, "noop") != nil {
		t.Fatalf("Wrap(nil) expected nil")
	}
}

func TestRootAndChain(t *testing.T) {
	err := Wrap(Wrap(errBase, "inner"), "outer")
	if Root(err) != errBase {
		t.Fatalf("Root() = %v", Root(err))
	}

	chain := ErrorChainStrings(err)
	if len(chain) != 3 || chain[2] != "lab not found" {
		t.Fatalf("ErrorChainStrings() = %#v", chain)
	}
}

func TestIsAny(t *testing.T) {
	other := errors.New("other")
	err := Wrap(errBase, "ctx")
	if !IsAny(err, other, errBase) {
		t.Fatalf("IsAny() expected true")
	}
	if IsAny(nil, errBase) {
		t.Fatalf("IsAny(nil) expected false")
	}
}

func TestLoggableGroup(t *testing.T) {
	value := Loggable(Wrap(errBase, "ctx")).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("LogValue() kind = %v", value.Kind())
	}

	keys := map[string]bool{}
	for _, attr := range value.Group() {
		keys[attr.Key] = true
	}
	if !keys["message"] || !keys["chain"] || !keys["root"] {
		t.Fatalf("LogValue() keys = %v", keys)
	}
}
