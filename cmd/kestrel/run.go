package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kestrel/internal/buildpipeline"
	"kestrel/internal/vm"
)

// vmPanicExit is the status of a run stopped by an interpreter panic.
const vmPanicExit = 101

func newRunCmd(s *session) *cobra.Command {
	var f unitFlags
	cmd := &cobra.Command{
		Use:   "run [flags] [unit.khir]",
		Short: "Execute a unit on the IR interpreter",
		Long: `Run lowers one unit and executes its main wrapper on the built-in IR
interpreter. The command exits with the program's status.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := resolveUnits(".", args, &f, s)
			if err != nil {
				return err
			}
			if len(reqs) != 1 {
				return fmt.Errorf("run needs exactly one unit, found %d", len(reqs))
			}
			req := reqs[0]
			req.Progress = nil
			res, err := buildpipeline.Run(cmd.Context(), req, cmd.OutOrStdout())
			if err != nil {
				var vmErr *vm.VMError
				if errors.As(err, &vmErr) {
					fmt.Fprint(cmd.ErrOrStderr(), vmErr.Format())
					return &exitCodeError{code: vmPanicExit}
				}
				return s.report(cmd.ErrOrStderr(), err)
			}
			if res.Leaked > 0 && !s.quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: %d heap allocation(s) never freed\n", res.Leaked)
			}
			if res.ExitCode != 0 {
				return &exitCodeError{code: int(res.ExitCode & 0xff)}
			}
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}
