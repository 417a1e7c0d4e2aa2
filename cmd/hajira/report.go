package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/hajira/internal/app"
	"github.com/ayusman/hajira/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report --id ID",
	Short: "Print a subject's attendance summary",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("id", "", "Subject register number (required)")
	reportCmd.Flags().String("month", "", "Limit to a month (YYYY-MM)")
	reportCmd.Flags().String("status", "", "Only list days with this status (Present, OD, Absent)")
}

func runReport(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	month, _ := cmd.Flags().GetString("month")
	status, _ := cmd.Flags().GetString("status")
	if id == "" {
		return fmt.Errorf("%w: --id", errMissingFlag)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	summary, err := st.Attendance().Summary(context.Background(), id, month, status)
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(s *store.Summary) {
	stats := s.Statistics
	fmt.Printf("%s (%s)\n", s.Subject.Name, s.Subject.ID)
	fmt.Printf("Working days: %d  Present: %d  OD: %d  Absent: %d  Attendance: %.2f%%\n\n",
		stats.TotalDays, stats.Present, stats.OD, stats.Absent, stats.Percentage)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tSTATUS\tARRIVAL\tDEPARTURE")
	for _, d := range s.History {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Day, d.Status, clock(d.ArrivalAt), clock(d.DepartureAt))
	}
	w.Flush()
}

func clock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04:05")
}
