// Command kestrel lowers serialized resolved programs (.khir) to LLVM IR,
// links them with clang, or runs them on the IR interpreter.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kestrel/internal/version"
)

// errReported means the failure was already printed as diagnostics.
var errReported = errors.New("errors reported")

// exitCodeError carries the status of a program run on the VM.
type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newRootCmd() (*cobra.Command, *session) {
	s := &session{}
	root := &cobra.Command{
		Use:           "kestrel",
		Short:         "Kestrel back end: lower resolved programs to LLVM IR",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.start(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	flags.String("trace", "", "trace output file (- for stderr, *.ndjson for JSON lines)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.Int("jobs", 0, "units built in parallel (0 = unlimited)")
	flags.String("diag-format", "pretty", "diagnostics format (pretty|json)")
	flags.String("cpu-profile", "", "write a CPU profile of the compiler")
	flags.String("mem-profile", "", "write a heap profile on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace")

	root.AddCommand(newBuildCmd(s), newRunCmd(s), newIRCmd(s), newVersionCmd())
	return root, s
}

func main() {
	root, s := newRootCmd()
	err := root.ExecuteContext(context.Background())
	s.finish(err != nil)

	var exit *exitCodeError
	switch {
	case err == nil:
	case errors.As(err, &exit):
		os.Exit(exit.code)
	case errors.Is(err, errReported):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// applyColorMode sets the global color switch from --color.
func applyColorMode(mode string, tty bool) error {
	switch mode {
	case "auto":
		color.NoColor = !tty || os.Getenv("NO_COLOR") != ""
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color %q (expected auto|on|off)", mode)
	}
	return nil
}
