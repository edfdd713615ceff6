package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gclflow/gclflow/internal/infrastructure/metrics"
	"github.com/gclflow/gclflow/pkg/gclflow"
)

func newTrainCmd(root *rootFlags) *cobra.Command {
	var (
		metricsAddr string
		evaluate    bool
		markdown    bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the encoder, optionally followed by the evaluation sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, logger, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			addr := rt.Config().Metrics.Addr
			if metricsAddr != "" {
				addr = metricsAddr
			}

			var out gclflow.RunOutcome
			g, gctx := errgroup.WithContext(cmd.Context())
			trainCtx, stop := context.WithCancel(gctx)
			defer stop()
			if addr != "" {
				srv := metrics.NewServer(addr, rt.Metrics(), logger)
				g.Go(func() error { return srv.Run(trainCtx) })
			}
			g.Go(func() error {
				defer stop()
				var err error
				out, err = rt.Train(trainCtx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			printOutcome(cmd, out, markdown)
			if !evaluate {
				return nil
			}
			results, err := rt.Evaluate(cmd.Context())
			printResults(cmd, results, markdown)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while training, overrides metrics.addr")
	f.BoolVar(&evaluate, "evaluate", false, "run the milestone evaluation sweep after training")
	f.BoolVar(&markdown, "markdown", false, "print tables as Markdown")
	return cmd
}

func printOutcome(cmd *cobra.Command, out gclflow.RunOutcome, markdown bool) {
	t := newTable(cmd.OutOrStdout(), table.Row{"Status", "Epochs", "Best epoch", "Best loss", "Avg train", "Avg eval"}, 2, 3, 4, 5, 6)
	t.AppendRow(table.Row{
		out.Status,
		out.EpochsRun,
		out.BestEpoch,
		fmt.Sprintf("%.6f", out.BestLoss),
		out.AvgTrainTime.Round(time.Microsecond),
		out.AvgEvalTime.Round(time.Microsecond),
	})
	render(t, markdown)
}
