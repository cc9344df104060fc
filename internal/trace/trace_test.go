package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "ERROR", "Phase", "detail", "debug"} {
		l, err := ParseLevel(s)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", s, err)
		}
		if !strings.EqualFold(l.String(), s) {
			t.Fatalf("ParseLevel(%q) = %s", s, l)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}

func TestLevelFiltersScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeModule, false},
		{LevelDetail, ScopeModule, true},
		{LevelDetail, ScopeNode, false},
		{LevelDebug, ScopeNode, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStreamWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatText)
	root := Begin(tr, ScopeDriver, "lower", 0)
	pass := Begin(tr, ScopePass, "bodies", root.ID())
	skipped := Begin(tr, ScopeNode, "func:Main", pass.ID())
	skipped.End("")
	pass.WithExtra("funcs", "3").End("ok")
	root.End("")

	out := buf.String()
	for _, want := range []string{"> lower", "> bodies", "< bodies (ok) {funcs=3}", "< lower"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "func:Main") {
		t.Fatalf("node span leaked at phase level:\n%s", out)
	}
	if skipped.ID() != 0 {
		t.Fatalf("filtered span has id %d", skipped.ID())
	}
}

func TestNDJSONEvents(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDetail, Output: &buf, Format: FormatNDJSON})
	if err != nil {
		t.Fatal(err)
	}
	Begin(tr, ScopeModule, "namespace:std", 0).End("")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	var ev jsonEvent
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != "end" || ev.Scope != "module" || ev.Name != "namespace:std" || ev.Seq != 2 {
		t.Fatalf("decoded %+v", ev)
	}
}

func TestRingKeepsNewest(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopePass, name, 0, "")
	}
	var names []string
	for _, ev := range r.Snapshot() {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ""); got != "cde" {
		t.Fatalf("snapshot = %q, want cde", got)
	}
}

func TestErrorLevelDumpsRing(t *testing.T) {
	tr, err := New(Config{Level: LevelError})
	if err != nil {
		t.Fatal(err)
	}
	ctx := WithTracer(context.Background(), tr)
	sp := Begin(FromContext(ctx), ScopePass, "verify", 0)
	sp.End("IRV2001")

	var buf bytes.Buffer
	if err := Dump(tr, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "< verify (IRV2001)") {
		t.Fatalf("dump = %q", buf.String())
	}
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != Nop {
		t.Fatalf("empty context should carry Nop")
	}
	if CurrentSpan(ctx).SpanID != 0 {
		t.Fatalf("empty context has a span")
	}
	sp := Begin(NewRingTracer(4, LevelPhase), ScopeDriver, "build", 0)
	if got := CurrentSpan(WithSpan(ctx, sp)).SpanID; got != sp.ID() || got == 0 {
		t.Fatalf("span id %d, want %d", got, sp.ID())
	}
}
