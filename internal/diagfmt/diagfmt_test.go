package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"

	"kestrel/internal/diag"
	"kestrel/internal/source"
)

func sample() (*diag.Bag, Files) {
	files := &source.Files{}
	files.Add("src/loop.k")
	bag := diag.NewBag(10)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.LowOutsideLoop,
		Message:  "break outside of a loop",
		Primary:  source.Span{File: 1, Line: 4, Col: 2},
		Notes:    []diag.Note{{Span: source.At(1), Msg: "function starts here"}},
		Unit:     "app",
	})
	bag.Add(diag.Diagnostic{Severity: diag.SevError, Code: diag.IOLoadFileError, Message: "no such file", Unit: "lib"})
	return bag, Files{"app": files}
}

func TestPretty(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	bag, files := sample()
	tests := []struct {
		name string
		opts PrettyOpts
		want string
	}{
		{
			name: "plain",
			want: "src/loop.k:4:2: LOW1308 break outside of a loop\nlib: IO4001 no such file\n",
		},
		{
			name: "notes and basenames",
			opts: PrettyOpts{PathMode: PathModeBasename, ShowNotes: true},
			want: "loop.k:4:2: LOW1308 break outside of a loop\n  note: function starts here\n    at loop.k:1\nlib: IO4001 no such file\n",
		},
		{
			name: "titles",
			opts: PrettyOpts{ShowTitle: true},
			want: "src/loop.k:4:2: LOW1308 break outside of a loop (break/continue outside of a loop)\nlib: IO4001 no such file (I/O load file error)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Pretty(&buf, bag, files, tt.opts); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Fatalf("got:\n%s\nwant:\n%s", buf.String(), tt.want)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	bag, files := sample()
	var buf bytes.Buffer
	if err := JSON(&buf, bag, files, JSONOpts{IncludeNotes: true}); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if out.Count != 2 || len(out.Diagnostics) != 2 {
		t.Fatalf("count = %d", out.Count)
	}
	first := out.Diagnostics[0]
	if first.Code != "LOW1308" || first.Severity != "ERROR" || first.Unit != "app" {
		t.Fatalf("first = %+v", first)
	}
	if first.Location != (LocationJSON{File: "src/loop.k", Line: 4, Col: 2}) {
		t.Fatalf("location = %+v", first.Location)
	}
	if len(first.Notes) != 1 || first.Notes[0].Location.Line != 1 {
		t.Fatalf("notes = %+v", first.Notes)
	}
	if loc := out.Diagnostics[1].Location; loc != (LocationJSON{File: "lib"}) {
		t.Fatalf("unit-only location = %+v", loc)
	}
}

func TestJSONMax(t *testing.T) {
	bag, files := sample()
	out := BuildDiagnosticsOutput(bag, files, JSONOpts{Max: 1})
	if out.Count != 1 || out.Diagnostics[0].Notes != nil {
		t.Fatalf("out = %+v", out)
	}
}
