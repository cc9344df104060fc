package diag

import (
	"fmt"
	"testing"

	"kestrel/internal/source"
)

func TestCodeIDRanges(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{LowUnregisteredStruct, "LOW1001"},
		{LowMissingInterfaceMember, "LOW1101"},
		{IRInvalid, "IRV2001"},
		{IOLoadFileError, "IO4001"},
		{UnknownCode, "E0000"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("Code(%d).ID() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestErrorSurvivesWrapping(t *testing.T) {
	base := Errorf(LowArityMismatch, source.At(14), "call to %s expects %d arguments, got %d", "f", 2, 1)
	wrapped := fmt.Errorf("unit main: %w", base)
	if got := CodeOf(wrapped); got != LowArityMismatch {
		t.Fatalf("expected LowArityMismatch, got %v", got)
	}
	d := FromError(wrapped)
	if d.Primary.Line != 14 || d.Severity != SevError {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
	if base.Error() != "line 14: LOW1201 call to f expects 2 arguments, got 1" {
		t.Fatalf("unexpected message %q", base.Error())
	}
}

func TestBagLimitSortDedup(t *testing.T) {
	bag := NewBag(3)
	bag.Add(Diagnostic{Severity: SevError, Code: LowBadLvalue, Primary: source.At(9)})
	bag.Add(Diagnostic{Severity: SevError, Code: LowBadLvalue, Primary: source.At(2)})
	bag.Add(Diagnostic{Severity: SevError, Code: LowBadLvalue, Primary: source.At(9)})
	if bag.Add(Diagnostic{Severity: SevError, Primary: source.At(1)}) {
		t.Fatal("expected limit to reject the fourth diagnostic")
	}
	bag.Sort()
	bag.Dedup()
	items := bag.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items after dedup, got %d", len(items))
	}
	if items[0].Primary.Line != 2 || items[1].Primary.Line != 9 {
		t.Fatalf("unexpected order: %+v", items)
	}
	if !bag.HasErrors() {
		t.Fatal("expected HasErrors")
	}
}
