// alarmctl is the operator CLI for the alarm monitor: it parses alarm mails
// offline, inspects or validates a history snapshot and edits the settings
// file.
//
// Usage:
//
//	alarmctl parse [file|-] [--json]
//	alarmctl history --file <snapshot> [--limit n] [--json]
//	alarmctl validate --file <snapshot> [--capacity n]
//	alarmctl settings --file <settings.yaml> [--groups A,B | --clear-groups] [--display-minutes n]
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "alarmctl",
	Short: "Inspect alarm mails and alarm history snapshots",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
