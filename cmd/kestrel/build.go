package main

import (
	"github.com/spf13/cobra"

	"kestrel/internal/buildpipeline"
)

func newBuildCmd(s *session) *cobra.Command {
	var f unitFlags
	cmd := &cobra.Command{
		Use:   "build [flags] [unit.khir...]",
		Short: "Lower units to LLVM IR and link them with clang",
		Long: `Build lowers each unit to <work-dir>/<unit>.ll and links it into an
executable. Without arguments the units are the .khir files next to
kestrel.toml. Units whose inputs are unchanged reuse their .ll.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := resolveUnits(".", args, &f, s)
			if err != nil {
				return err
			}
			for _, req := range reqs {
				req.Stdout = cmd.OutOrStdout()
			}
			_, err = buildpipeline.BuildAll(cmd.Context(), reqs, s.jobs)
			if err != nil {
				return s.report(cmd.ErrOrStderr(), err)
			}
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}
