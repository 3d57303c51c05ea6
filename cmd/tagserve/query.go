package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bastiangx/tagserve/internal/cli"
)

var (
	queryLimit       int
	queryExact       bool
	queryInteractive bool
)

var queryCmd = &cobra.Command{
	Use:   "query <file> [term]",
	Short: "Print completions for a term, or prompt for terms with -i",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !queryInteractive && len(args) != 2 {
			return fmt.Errorf("query needs a term unless -i is set")
		}
		p, err := newProvider(nil)
		if err != nil {
			return err
		}
		if err := p.AwaitLoad(cmd.Context(), args[0], false); err != nil {
			return err
		}

		limit := queryLimit
		if limit < 1 {
			limit = appConfig.Search.MaxResults
		}
		suggest := appConfig.Search.SuggestOnPrefix && !queryExact
		h := cli.NewInputHandler(p, appConfig.Search.MaxTermLength, limit, suggest, cmd.InOrStdin(), cmd.OutOrStdout())
		if queryInteractive {
			return h.Start()
		}
		h.HandleInput(args[1])
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum number of suggestions (default from config)")
	queryCmd.Flags().BoolVar(&queryExact, "exact", false, "do not expand an exact match to longer tags")
	queryCmd.Flags().BoolVarP(&queryInteractive, "interactive", "i", false, "prompt for terms until EOF")
	rootCmd.AddCommand(queryCmd)
}
