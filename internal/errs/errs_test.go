package errs

import (
	"errors"
	"log/slog"
	"testing"
)

var errBase = errors.New("pbsnodes failed")

func TestWrapKeepsChain(t *testing.T) {
	err := Wrapf(Wrap(errBase, "query node states"), "auto pass %s", "run-1")
	if !errors.Is(err, errBase) {
		t.Fatalf("errors.Is() = false for %v", err)
	}
	if got := err.Error(); got != "auto pass run-1: query node states: pbsnodes failed" {
		t.Fatalf("Error() = %q", got)
	}
	if Root(err) != errBase {
		t.Fatalf("Root() = %v", Root(err))
	}
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	first := WithStack(errBase)
	second := WithStack(Wrap(first, "outer"))

	var se *StackError
	if !errors.As(second, &se) {
		t.Fatalf("expected StackError in chain")
	}
	if len(se.Stack()) == 0 {
		t.Fatalf("stack is empty")
	}
	if !errors.Is(second, errBase) {
		t.Fatalf("errors.Is() = false")
	}
}

func TestLoggableGroup(t *testing.T) {
	value := Loggable(Wrap(errBase, "drain r1i1n1")).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("kind = %v", value.Kind())
	}
	attrs := value.Group()
	if len(attrs) != 3 || attrs[0].Key != "message" || attrs[1].Key != "chain" || attrs[2].Key != "root" {
		t.Fatalf("attrs = %v", attrs)
	}
	if got := attrs[2].Value.String(); got != errBase.Error() {
		t.Fatalf("root = %q", got)
	}
	if flat := Loggable(errBase).LogValue().Group(); len(flat) != 2 {
		t.Fatalf("unwrapped error attrs = %v", flat)
	}
	if chain := ErrorChainStrings(Wrap(errBase, "drain")); len(chain) != 2 {
		t.Fatalf("chain = %v", chain)
	}
}
