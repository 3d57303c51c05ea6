package main

import (
	"github.com/spf13/cobra"

	"github.com/bastiangx/tagserve/internal/utils"
)

var buildSave bool

var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Rebuild the index for a tag file and print its stats",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := sourceArg(args)
		if err != nil {
			return err
		}
		p, err := newProvider(nil)
		if err != nil {
			return err
		}
		if err := p.AwaitLoad(cmd.Context(), src, true); err != nil {
			return err
		}

		if buildSave {
			if err := saveSource(src); err != nil {
				return err
			}
		}

		st := p.Stats()
		cmd.Printf("source:  %s\n", st.Source)
		cmd.Printf("hash:    %s\n", st.Hash)
		cmd.Printf("tags:    %s\n", utils.FormatWithCommas(st.Tags))
		cmd.Printf("indexed: %s\n", utils.FormatWithCommas(st.Indexed))
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildSave, "save", false, "store the file as [tags] source_path after a successful build")
	rootCmd.AddCommand(buildCmd)
}
