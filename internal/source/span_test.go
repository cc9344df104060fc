package source

import "testing"

func TestSpanOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"earlier file", Span{File: 1, Line: 9}, Span{File: 2, Line: 1}, true},
		{"earlier line", Span{File: 1, Line: 3}, Span{File: 1, Line: 4}, true},
		{"same line earlier col", Span{File: 1, Line: 3, Col: 1}, Span{File: 1, Line: 3, Col: 2}, true},
		{"equal", Span{File: 1, Line: 3}, Span{File: 1, Line: 3}, false},
		{"later line", Span{File: 1, Line: 5}, Span{File: 1, Line: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Before(tt.b); got != tt.want {
				t.Fatalf("%v.Before(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFilesFormat(t *testing.T) {
	var files Files
	id := files.Add("src/main.kst")
	if got := files.Format(Span{File: id, Line: 12, Col: 4}); got != "src/main.kst:12:4" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := files.Format(Span{File: id, Line: 7}); got != "src/main.kst:7" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := files.Path(99); got != "<unknown>" {
		t.Fatalf("unexpected path for unknown id: %q", got)
	}
}
