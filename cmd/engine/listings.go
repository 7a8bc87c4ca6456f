package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"jobwatch-engine/internal/domain"
	"jobwatch-engine/internal/store"
)

func newListingsCmd(opts *rootOptions) *cobra.Command {
	var lo store.ListOpts
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Print stored listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer func() { _ = rt.log.Sync() }()

			ctx := cmd.Context()
			st, err := store.Open(ctx, rt.cfg.Store.Driver, rt.cfg.DSN())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			items, err := st.List(ctx, lo)
			if err != nil {
				return err
			}
			renderListings(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().StringVar(&lo.State, "state", "active", "active, expired or all")
	cmd.Flags().StringVar(&lo.Sort, "sort", "first_seen", "last_seen, first_seen, posting_date, title or times_crawled")
	cmd.Flags().IntVar(&lo.Limit, "limit", 50, "maximum rows")
	return cmd
}

func renderListings(w io.Writer, items []domain.Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Req", "Title", "Team", "Location", "Remote", "First seen", "Last seen", "Crawled", "State"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: 48},
		{Name: "Location", WidthMax: 32},
		{Name: "Crawled", Align: text.AlignRight},
	})

	for _, l := range items {
		remote := ""
		if l.IsRemote {
			remote = "yes"
		}
		state := "active"
		if !l.Active() {
			state = "expired"
		}
		t.AppendRow(table.Row{
			l.RequisitionID,
			l.Title,
			l.Team,
			l.Location,
			remote,
			l.FirstSeen.Local().Format("2006-01-02 15:04"),
			l.LastSeen.Local().Format("2006-01-02 15:04"),
			l.TimesCrawled,
			state,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d listings", len(items))})
	t.Render()
}
