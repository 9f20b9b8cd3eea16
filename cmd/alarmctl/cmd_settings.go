package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimUx/alarm-monitor/internal/settings"
)

var settingsFlags struct {
	file           string
	groups         []string
	clearGroups    bool
	displayMinutes int
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update the settings file read by a running monitor",
	Long: "Prints the settings in the given file. With --groups, --clear-groups or --display-minutes\n" +
		"the file is updated first; a running monitor picks the change up on its next alarm.",
	RunE: runSettings,
}

func init() {
	f := settingsCmd.Flags()
	f.StringVar(&settingsFlags.file, "file", "", "Settings file path (required)")
	f.StringSliceVar(&settingsFlags.groups, "groups", nil, "Replace the activation groups (comma separated)")
	f.BoolVar(&settingsFlags.clearGroups, "clear-groups", false, "Remove all activation groups so every alarm passes")
	f.IntVar(&settingsFlags.displayMinutes, "display-minutes", 0, "Minutes an alarm stays on the dashboard")

	_ = settingsCmd.MarkFlagRequired("file")
}

func runSettings(cmd *cobra.Command, _ []string) error {
	current, err := settings.Load(settingsFlags.file, settings.Settings{})
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if settingsFlags.clearGroups && len(settingsFlags.groups) > 0 {
		return fmt.Errorf("--groups and --clear-groups are mutually exclusive")
	}

	changed := false
	switch {
	case settingsFlags.clearGroups:
		current.ActivationGroups = nil
		changed = true
	case len(settingsFlags.groups) > 0:
		current.ActivationGroups = settingsFlags.groups
		changed = true
	}
	if settingsFlags.displayMinutes > 0 {
		current.DisplayDurationMinutes = settingsFlags.displayMinutes
		changed = true
	}

	if changed {
		if err := settings.Save(settingsFlags.file, current); err != nil {
			return err
		}
		if current, err = settings.Load(settingsFlags.file, settings.Settings{}); err != nil {
			return fmt.Errorf("reload settings: %w", err)
		}
	}
	return writeJSON(cmd.OutOrStdout(), current)
}
