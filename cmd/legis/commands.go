package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Sternrassler/legis-client/pkg/dashboard"
	"github.com/Sternrassler/legis-client/pkg/legislation"
	"github.com/Sternrassler/legis-client/pkg/pagination"
	"github.com/spf13/cobra"
)

// filterFlags are shared by list and export.
type filterFlags struct {
	typ    string
	status string
	since  string
	until  string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.typ, "type", "t", string(legislation.TypeFederal), "Legislation type: federal, state or executive")
	cmd.Flags().StringVar(&f.status, "status", "", "Only records with this status")
	cmd.Flags().StringVar(&f.since, "since", "", "Introduced on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.until, "until", "", "Introduced on or before (YYYY-MM-DD)")
}

func (f *filterFlags) parse() (legislation.Type, legislation.Filters, error) {
	typ, err := legislation.ParseType(f.typ)
	if err != nil {
		return "", legislation.Filters{}, err
	}
	filters := legislation.Filters{
		Status:    legislation.Status(f.status),
		StartDate: f.since,
		EndDate:   f.until,
	}
	if err := filters.Validate(); err != nil {
		return "", legislation.Filters{}, err
	}
	return typ, filters, nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		filters filterFlags
		page    int
		search  string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of legislation",
		Example: `  legis list --type state --page 3
  legis list --search "clean water" --status passed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, f, err := filters.parse()
			if err != nil {
				return err
			}
			f.Search = search

			d := dashboard.New(a.client, dashboard.FromConfig(a.cfg))
			defer d.Close()
			if err := d.SetView(typ); err != nil {
				return err
			}
			if err := d.SetFilters(f); err != nil {
				return err
			}
			d.SetPage(page)

			ctx, cancel := a.context(cmd)
			defer cancel()

			snap := d.Load(ctx)
			if snap.Err != nil {
				return snap.Err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, struct {
					Data []legislation.Legislation `json:"data"`
					pagination.Meta
				}{snap.Items, snap.Meta})
			}
			return renderList(out, snap, a.cfg.DateFormat, a.now())
		},
	}

	filters.register(cmd)
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Search titles and summaries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "show <type> <id>",
		Short:   "Show one record",
		Example: "  legis show federal hr-1234-118",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := legislation.ParseType(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			item, err := a.client.Get(ctx, typ, args[1])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			return renderDetail(cmd.OutOrStdout(), *item, a.cfg.DateFormat, a.now())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		typ    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles and summaries across types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t legislation.Type
			if typ != "" {
				parsed, err := legislation.ParseType(typ)
				if err != nil {
					return err
				}
				t = parsed
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			results, err := a.client.Search(ctx, args[0], t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No legislation found.")
				return nil
			}
			for _, item := range results {
				renderItem(out, item, a.cfg.DateFormat, a.now())
			}
			fmt.Fprintf(out, "%d results\n", len(results))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "Limit to one type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of records per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			stats, err := a.client.Stats(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			renderStats(cmd.OutOrStdout(), *stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		filters     filterFlags
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every matching record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, f, err := filters.parse()
			if err != nil {
				return err
			}

			ctx, cancel := a.context(cmd)
			defer cancel()

			cfg := pagination.DefaultConfig()
			if concurrency > 0 {
				cfg.MaxConcurrency = concurrency
			}
			items, err := a.client.ExportAll(ctx, typ, f, cfg)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), items)
		},
	}
	filters.register(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel page requests (default 4)")
	return cmd
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			n, err := a.client.Cache().Purge(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached responses.\n", n)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
