package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kestrel/internal/backend/llvm"
	"kestrel/internal/buildpipeline"
	"kestrel/internal/lower"
)

func newIRCmd(s *session) *cobra.Command {
	var (
		f   unitFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "ir [flags] unit.khir",
		Short: "Print the LLVM IR of a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := resolveUnits(".", args, &f, s)
			if err != nil {
				return err
			}
			req := reqs[0]
			prog, err := buildpipeline.Load(req.Input)
			if err == nil {
				var res *lower.Result
				if res, err = lower.Lower(cmd.Context(), prog, req.Lower); err == nil {
					var text string
					if text, err = llvm.EmitModule(res.Module); err == nil {
						return writeIR(cmd, out, text)
					}
				}
				err = &buildpipeline.UnitError{Unit: args[0], Files: prog.Files, Err: err}
			}
			return s.report(cmd.ErrOrStderr(), err)
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the IR to a file instead of stdout")
	return cmd
}

func writeIR(cmd *cobra.Command, path, text string) error {
	if path == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o600)
}
