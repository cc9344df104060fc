package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestNilTimerIsInert(t *testing.T) {
	var tm *Timer
	idx := tm.Begin("shells")
	tm.End(idx, "")
	if err := tm.Time("bodies", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if r := tm.Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("nil timer reported %+v", r)
	}
}

func TestTimerRecordsPhasesInOrder(t *testing.T) {
	tm := NewTimer()
	tm.End(tm.Begin("shells"), "")
	boom := errors.New("boom")
	if err := tm.Time("verify", func() error { return boom }); err != boom {
		t.Fatalf("Time returned %v", err)
	}
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "shells" || r.Phases[1].Name != "verify" {
		t.Fatalf("phases %+v", r.Phases)
	}
	if r.Phases[1].Note != "failed" {
		t.Fatalf("failed phase note %q", r.Phases[1].Note)
	}
	s := tm.Summary()
	for _, want := range []string{"timings:", "shells", "verify", "// failed", "total"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary lacks %q:\n%s", want, s)
		}
	}
}
