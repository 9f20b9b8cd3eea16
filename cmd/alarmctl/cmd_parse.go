package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

var errNoAlarm = errors.New("input does not contain an alarm")

var parseFlags struct {
	json bool
}

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Parse an alarm mail (or an API JSON payload) and print the alarm",
	Long: "Reads a raw alarm mail from a file or stdin and prints the extracted alarm as JSON.\n" +
		"With --json the input is treated as an API payload and normalized instead.",
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseFlags.json, "json", false, "Treat the input as an API JSON payload")
}

func runParse(cmd *cobra.Command, args []string) error {
	src := "-"
	if len(args) == 1 {
		src = args[0]
	}
	raw, err := readInput(cmd.InOrStdin(), src)
	if err != nil {
		return err
	}

	var alarm domain.Alarm
	if parseFlags.json {
		alarm, err = domain.NormalizeAlarmJSON(raw)
		if err != nil {
			return fmt.Errorf("normalize payload: %w", err)
		}
	} else {
		var ok bool
		alarm, ok = domain.ParseAlarmMessage(raw)
		if !ok {
			return errNoAlarm
		}
	}

	if alarm.IncidentNumber == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: alarm has no incident number and would be rejected")
	}
	return writeJSON(cmd.OutOrStdout(), alarm)
}

func readInput(stdin io.Reader, src string) ([]byte, error) {
	if src == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return data, nil
}
