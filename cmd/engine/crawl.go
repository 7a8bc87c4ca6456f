package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"jobwatch-engine/internal/domain"
)

func newCrawlCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a single crawl cycle and print its report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.log.Sync() }()

			unlock, err := lockDataDir(rt.cfg.App.DataDir)
			if err != nil {
				return err
			}
			defer unlock()

			a, err := buildApp(ctx, rt, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.store.Close() }()

			rep, runErr := a.cycle.Run(ctx)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else {
				renderReport(cmd.OutOrStdout(), rep)
			}
			if runErr != nil && rep.Seen == 0 {
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func renderReport(w io.Writer, rep domain.ReconcileReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Seen", "Created", "Updated", "Expired", "Duplicates", "Invalid", "Detail failures", "Write failures", "Sweep"})

	sweep := "done"
	if rep.SweepSkipped {
		sweep = "skipped"
	}
	t.AppendRow(table.Row{rep.Seen, rep.Created, rep.Updated, rep.Expired, rep.Duplicates, rep.Invalid, rep.DetailFailures, rep.WriteFailures, sweep})
	t.Render()
	if rep.SweepSkipped {
		fmt.Fprintln(w, "collection was incomplete; nothing was expired")
	}
}
