package version

import (
	"testing"

	"github.com/fatih/color"
)

func withVersion(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate, origNoColor := Version, GitCommit, BuildDate, color.NoColor
	Version, GitCommit, BuildDate, color.NoColor = v, commit, date, true
	t.Cleanup(func() {
		Version, GitCommit, BuildDate, color.NoColor = origVersion, origCommit, origDate, origNoColor
	})
}

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored_PlainWithoutColor(t *testing.T) {
	tests := []string{"0.1.0", "0.1.0-dev", "1.2.3-rc.1+build.123", "nightly"}
	for _, v := range tests {
		withVersion(t, v, "", "")
		if got := Colored(); got != v {
			t.Errorf("Colored() = %q, want %q", got, v)
		}
	}
}

func TestColored_WrapsParts(t *testing.T) {
	withVersion(t, "1.2.3-dev", "", "")
	color.NoColor = false
	got := Colored()
	if got == Version {
		t.Fatalf("Colored() left %q uncolored", got)
	}
	want := majorColor.Sprint("1") + "." + minorColor.Sprint("2") + "." + patchColor.Sprint("3") + "-dev"
	if got != want {
		t.Errorf("Colored() = %q, want %q", got, want)
	}
}

func TestBanner(t *testing.T) {
	tests := []struct {
		commit, date, want string
	}{
		{"", "", "kestrel 0.1.0"},
		{"abc123", "", "kestrel 0.1.0 (abc123)"},
		{"abc123", "2024-01-15", "kestrel 0.1.0 (abc123) built 2024-01-15"},
	}
	for _, tt := range tests {
		withVersion(t, "0.1.0", tt.commit, tt.date)
		if got := Banner(); got != tt.want {
			t.Errorf("Banner() = %q, want %q", got, tt.want)
		}
	}
}
