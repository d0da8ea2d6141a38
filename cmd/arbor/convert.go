package main

import (
	"fmt"
	"path/filepath"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <from> <to>",
	Short: "Copy a graph between documents and the configured source",
	Long: `Copies a graph. An argument ending in .json, .yaml or .yml is a document
path; anything else is a graph name in the configured source.

  arbor convert tavern.yaml tavern.json      # document to document
  arbor convert tavern.yaml tavern           # import into the source
  arbor convert tavern tavern.json           # export from the source`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := args[0], args[1]
		ctx := cmd.Context()

		var src *cli.Source
		source := func() (*cli.Source, error) {
			if src != nil {
				return src, nil
			}
			var err error
			src, err = openSource()
			return src, err
		}
		defer func() {
			if src != nil {
				src.Close()
			}
		}()

		var g *domain.Graph
		if isDocument(from) {
			loaded, err := file.LoadFile(from)
			if err != nil {
				return err
			}
			g = loaded
		} else {
			s, err := source()
			if err != nil {
				return err
			}
			if g, err = s.Loader.Load(ctx, from); err != nil {
				return err
			}
		}

		if isDocument(to) {
			if err := file.SaveFile(to, g); err != nil {
				return err
			}
		} else {
			s, err := source()
			if err != nil {
				return err
			}
			store, err := s.Writable()
			if err != nil {
				return err
			}
			if err := store.Save(ctx, to, g); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d nodes)\n", from, to, g.Len())
		return nil
	},
}

func isDocument(arg string) bool {
	if filepath.Ext(arg) == "" {
		return false
	}
	_, err := codec.FormatFromPath(arg)
	return err == nil
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
