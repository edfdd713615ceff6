package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gclflow/gclflow/pkg/gclflow"
)

func newEvaluateCmd(root *rootFlags) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every evaluation milestone with a linear probe",
		Long: "evaluate loads the checkpoint saved at epoch m-1 for each milestone m,\n" +
			"fits a logistic-regression probe on the frozen embeddings and writes one\n" +
			"JSON report per milestone to the experiment's evaluate_cache directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, _, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			results, err := rt.Evaluate(cmd.Context())
			printResults(cmd, results, markdown)
			return err
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the table as Markdown")
	return cmd
}

func printResults(cmd *cobra.Command, results []gclflow.EvaluationResult, markdown bool) {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no milestones evaluated")
		return
	}
	t := newTable(cmd.OutOrStdout(), table.Row{"Milestone", "Checkpoint", "Micro-F1", "Macro-F1", "Report"}, 1, 3, 4)
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Milestone,
			fmt.Sprintf("%s_%s_epoch%d", r.Model, r.Dataset, r.CheckpointEpoch),
			fmt.Sprintf("%.4f", r.MicroF1),
			fmt.Sprintf("%.4f", r.MacroF1),
			r.Path,
		})
	}
	render(t, markdown)
}
