package main

import (
	"os"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [graph]",
	Short: "Play a graph in the console",
	Long: `Plays a graph interactively. Press Enter to advance, type a number to
pick a choice, w or l to finish a minigame, r to restart and q to quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		plain, _ := cmd.Flags().GetBool("plain")

		src, err := openSource()
		if err != nil {
			return err
		}
		defer src.Close()

		interactive := cli.IsTerminal(os.Stdout)
		var renderOpts []tui.Option
		if plain || !interactive {
			renderOpts = append(renderOpts, tui.WithPlain())
		} else {
			tui.PrintBanner(os.Stdout, arbor.Version)
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		return cli.Play(sigCtx, src.Loader, cli.PlayOptions{
			Graph:         graphArg(args),
			Watch:         watch,
			In:            os.Stdin,
			Out:           os.Stdout,
			Logger:        logger,
			RenderOptions: renderOpts,
			SessionOptions: []session.Option{
				session.WithRuntimeOptions(runtime.WithDelayFunc(runtime.Sleep)),
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().BoolP("watch", "w", false, "Restart when the graph source changes")
	playCmd.Flags().Bool("plain", false, "Disable markdown and colors")
}
