package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph...]",
	Short: "Check graphs for consistency",
	Long: `Checks every named graph (all graphs of the source by default) for a
single start node, resolvable links and ports, and unreachable nodes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource()
		if err != nil {
			return err
		}
		defer src.Close()

		ctx := cmd.Context()
		names := args
		if len(names) == 0 {
			if names, err = src.Loader.List(ctx); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		var failed []string
		for _, name := range names {
			if err := validator.ValidateSource(ctx, src.Loader, name); err != nil {
				fmt.Fprintf(out, "%s: %v\n", name, err)
				failed = append(failed, name)
				continue
			}
			fmt.Fprintf(out, "%s: ok\n", name)
		}
		if len(failed) > 0 {
			return errors.New("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
