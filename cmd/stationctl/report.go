package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/client"
	"github.com/router-for-me/StationPortal/internal/report"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type reportFlags struct {
	year    int
	filter  report.Filter
	search  string
	sortKey string
	desc    bool
	page    int
	perPage int
	export  string
}

func newReportCommand(opts *options) *cobra.Command {
	f := reportFlags{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show or export the pivoted sales report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermViewReports)
			if errAuth != nil {
				return errAuth
			}
			if f.sortKey != "" && !report.ValidColumn(f.sortKey) {
				return fmt.Errorf("unknown sort column %q", f.sortKey)
			}
			user := sess.CurrentUser()
			sales, errSales := sess.Client().Sales(cmd.Context(), f.year, "", "")
			if errSales != nil {
				return errSales
			}
			if !f.filter.Empty() && !authz.HasPermission(user, authz.PermFilter) {
				log.Warn("filter flags ignored: your role lacks the filter permission")
			}
			sales = report.ApplyFor(user, f.filter, sales)
			sales = report.Search(sales, f.search)

			rows := report.Pivot(sales)
			if f.sortKey != "" {
				report.Sort(rows, f.sortKey, f.desc)
			}
			if f.export != "" {
				if !authz.HasPermission(user, authz.PermExport) {
					return errors.New("access denied: your role lacks export")
				}
				return exportReport(f.export, rows)
			}
			pageRows, pages := report.Paginate(rows, f.page, f.perPage)
			printReport(cmd, pageRows)
			fmt.Fprintf(cmd.OutOrStdout(), "\npage %d of %d (%d rows)\n", f.page, pages, len(rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&f.year, "year", time.Now().Year(), "report year")
	cmd.Flags().StringVar(&f.filter.StationID, "station", "", "station id (needs filter)")
	cmd.Flags().StringVar(&f.filter.StartDate, "start", "", "first day YYYY-MM-DD (needs filter)")
	cmd.Flags().StringVar(&f.filter.EndDate, "end", "", "last day YYYY-MM-DD (needs filter)")
	cmd.Flags().StringVar(&f.search, "search", "", "free text search across all columns")
	cmd.Flags().StringVar(&f.sortKey, "sort", "", "column key, e.g. date_completed or hsd")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.perPage, "per-page", report.DefaultPageSize, "rows per page")
	cmd.Flags().StringVar(&f.export, "export", "", "write all rows to a .xlsx or .csv file (needs export)")
	return cmd
}

func exportReport(path string, rows []report.PivotRow) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		if errWrite := report.WriteXLSX(&buf, rows); errWrite != nil {
			return errWrite
		}
	case ".csv":
		if errWrite := report.WriteCSV(&buf, rows); errWrite != nil {
			return errWrite
		}
	default:
		return fmt.Errorf("export %s: only .xlsx and .csv are supported", path)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func printReport(cmd *cobra.Command, rows []report.PivotRow) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(report.Labels(), "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row.Values(), "\t"))
	}
	_ = tw.Flush()
}

func newDashboardCommand(opts *options) *cobra.Command {
	var q client.DashboardQuery
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show dashboard KPIs for a year, month or day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, errAuth := opts.authorize(cmd.Context(), authz.PermViewDashboard)
			if errAuth != nil {
				return errAuth
			}
			board, errBoard := sess.Client().Dashboard(cmd.Context(), q)
			if errBoard != nil {
				return errBoard
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stations: %d\nHSD:      %.2f\nULG95:    %.2f\nULR 91:   %.2f\n",
				board.KPI.TotalStations, board.KPI.HSDVolume, board.KPI.ULG95Volume, board.KPI.ULR91Volume)
			fmt.Fprintln(out, "\nsales by payment")
			for _, p := range board.Charts.SalesByPayment {
				fmt.Fprintf(out, "  %-20s %.0f\n", p.Name, p.Value)
			}
			fmt.Fprintln(out, "\nvolume by product")
			for _, p := range board.Charts.VolumeByProduct {
				fmt.Fprintf(out, "  %-20s %.2f\n", p.Name, p.Value)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&q.Year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&q.Month, "month", 0, "month 1-12")
	cmd.Flags().IntVar(&q.Day, "day", 0, "day of month (needs --month)")
	cmd.Flags().StringVar(&q.IDType, "id-type", "", "transaction id type")
	return cmd
}
