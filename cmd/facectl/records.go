package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List attendance records",
	Long: `List attendance records in the order they were marked.

Examples:
  facectl records
  facectl records --date 2024-03-01
  facectl records --name ada`,
	RunE: runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().String("name", "", "Only records for this identity")
	recordsCmd.Flags().String("date", "", "Only records for this date (YYYY-MM-DD)")
	recordsCmd.Flags().Bool("today", false, "Only records for today")
}

func runRecords(cmd *cobra.Command, args []string) error {
	filter := domain.AttendanceFilter{
		Name: mustGetString(cmd, "name"),
		Date: mustGetString(cmd, "date"),
	}
	if mustGetBool(cmd, "today") {
		filter.Date = time.Now().Format(domain.DateLayout)
	}
	if filter.Date != "" {
		if _, err := time.Parse(domain.DateLayout, filter.Date); err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", filter.Date)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.Attendance.List(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDATE\tTIME")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, r.Date, r.Time)
	}
	w.Flush()
	fmt.Printf("\n%d records\n", len(records))
	return nil
}
