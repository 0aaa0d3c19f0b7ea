package diag_test

import (
	"testing"

	"stackbound/internal/diag"
)

func TestSeverityMapping(t *testing.T) {
	cases := []struct {
		kind diag.Kind
		want diag.Severity
	}{
		{diag.CycleEntry, diag.Warn},
		{diag.IndirectCall, diag.Warn},
		{diag.DynamicStack, diag.Warn},
		{diag.MalformedLine, diag.Warn},
		{diag.UnresolvedCallee, diag.Info},
	}
	for _, c := range cases {
		if got := c.kind.Severity(); got != c.want {
			t.Errorf("%s.Severity() = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if diag.CycleEntry.String() != "cycle-entry" {
		t.Errorf("String() = %q", diag.CycleEntry.String())
	}
	if diag.Kind(99).String() != "unknown" {
		t.Errorf("unknown kind should stringify to \"unknown\"")
	}
}
