package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/store"
)

var validateFlags struct {
	file     string
	capacity int
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a history snapshot for integrity problems",
	Long: "Loads a history snapshot as written on disk and checks that incident numbers are unique,\n" +
		"records are ordered newest first, and every record is complete and normalized.",
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.file, "file", "", "History snapshot path (required)")
	f.IntVar(&validateFlags.capacity, "capacity", store.DefaultCapacity, "Configured history capacity")

	_ = validateCmd.MarkFlagRequired("file")
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func runValidate(cmd *cobra.Command, _ []string) error {
	records, err := store.ReadSnapshot(validateFlags.file)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	phases := []*phase{
		validateUniqueIncidents(records),
		validateOrdering(records),
		validateCompleteness(records),
		validateUnitCodes(records),
		validateCoordinates(records),
		validateCapacity(records, validateFlags.capacity),
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Alarm History Validation (%d records) ===\n\n", len(records))

	failed := 0
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			failed++
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if failed > 0 {
		return fmt.Errorf("validation failed: %d of %d checks", failed, len(phases))
	}
	fmt.Fprintln(out, "\nAll validations passed.")
	return nil
}

func validateUniqueIncidents(records []domain.AlarmRecord) *phase {
	p := &phase{name: "Incident numbers unique"}
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		key := strings.TrimSpace(rec.Alarm.IncidentNumber)
		if key == "" {
			continue
		}
		if first, ok := seen[key]; ok {
			p.errorf("record %d repeats incident %q from record %d", i, key, first)
			continue
		}
		seen[key] = i
	}
	return p
}

func validateOrdering(records []domain.AlarmRecord) *phase {
	p := &phase{name: "Newest first"}
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1].ReceivedAt, records[i].ReceivedAt
		if prev.IsZero() || cur.IsZero() {
			continue
		}
		if cur.After(prev) {
			p.errorf("record %d received %s after record %d (%s)", i, cur.Format(time.RFC3339), i-1, prev.Format(time.RFC3339))
		}
	}
	return p
}

func validateCompleteness(records []domain.AlarmRecord) *phase {
	p := &phase{name: "Records complete"}
	for i, rec := range records {
		if rec.ReceivedAt.IsZero() {
			p.errorf("record %d: missing received_at", i)
		}
		if rec.Alarm.IncidentNumber == "" {
			p.errorf("record %d: missing incident_number", i)
		}
		if rec.ID == "" {
			p.errorf("record %d: missing id", i)
		}
	}
	return p
}

func validateUnitCodes(records []domain.AlarmRecord) *phase {
	p := &phase{name: "Unit codes normalized"}
	for i, rec := range records {
		seen := make(map[string]bool, len(rec.Alarm.DispatchGroupCodes))
		for _, code := range rec.Alarm.DispatchGroupCodes {
			switch {
			case code == "":
				p.errorf("record %d: empty unit code", i)
			case code != strings.ToUpper(strings.TrimSpace(code)):
				p.errorf("record %d: unit code %q not normalized", i, code)
			case seen[code]:
				p.errorf("record %d: unit code %q repeated", i, code)
			}
			seen[code] = true
		}
	}
	return p
}

func validateCoordinates(records []domain.AlarmRecord) *phase {
	p := &phase{name: "Coordinates valid"}
	for i, rec := range records {
		// A lone latitude or longitude is legal: the parser drops whichever
		// KOORDINATE value fails to parse.
		a := rec.Alarm
		if a.Latitude != nil && !inRange(*a.Latitude, 90) {
			p.errorf("record %d: alarm latitude %v out of range", i, *a.Latitude)
		}
		if a.Longitude != nil && !inRange(*a.Longitude, 180) {
			p.errorf("record %d: alarm longitude %v out of range", i, *a.Longitude)
		}
		if c := rec.Coordinates; c != nil {
			if !inRange(c.Lat, 90) || !inRange(c.Lon, 180) {
				p.errorf("record %d: coordinates (%v, %v) out of range", i, c.Lat, c.Lon)
			}
		}
	}
	return p
}

func validateCapacity(records []domain.AlarmRecord, capacity int) *phase {
	p := &phase{name: "Within capacity"}
	if capacity > 0 && len(records) > capacity {
		p.errorf("%d records exceed capacity %d; the oldest %d are dropped on load", len(records), capacity, len(records)-capacity)
	}
	return p
}

func inRange(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}
