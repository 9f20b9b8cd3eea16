package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/store"
)

var historyFlags struct {
	file  string
	limit int
	json  bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the alarms stored in a history snapshot, newest first",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.file, "file", "", "History snapshot path (required)")
	f.IntVar(&historyFlags.limit, "limit", 10, "Maximum records to print (0 for all)")
	f.BoolVar(&historyFlags.json, "json", false, "Print the records as JSON")

	_ = historyCmd.MarkFlagRequired("file")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	records, err := store.ReadSnapshot(historyFlags.file)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if historyFlags.limit > 0 && len(records) > historyFlags.limit {
		records = records[:historyFlags.limit]
	}

	out := cmd.OutOrStdout()
	if historyFlags.json {
		if records == nil {
			records = []domain.AlarmRecord{}
		}
		return writeJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No alarms recorded in %s\n", historyFlags.file)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIVED\tINCIDENT\tKEYWORD\tLOCATION\tGROUPS")
	for _, rec := range records {
		a := rec.Alarm
		keyword := a.Keyword
		if keyword == "" {
			keyword = a.Subject
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.ReceivedAt.UTC().Format(time.RFC3339),
			dash(a.IncidentNumber), dash(keyword), dash(a.Location),
			dash(strings.Join(a.DispatchGroupCodes, ",")))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
