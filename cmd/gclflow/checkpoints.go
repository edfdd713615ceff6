package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCheckpointsCmd(root *rootFlags) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"ls"},
		Short:   "List stored checkpoints for the configured model and dataset",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			keys, err := rt.Checkpoints(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no checkpoints")
				return nil
			}
			t := newTable(cmd.OutOrStdout(), table.Row{"Model", "Dataset", "Epoch", "ID"}, 3)
			for _, k := range keys {
				t.AppendRow(table.Row{k.Model, k.Dataset, k.Epoch, k.ID()})
			}
			render(t, markdown)
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the table as Markdown")
	return cmd
}
