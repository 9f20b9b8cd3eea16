package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/settings"
	"github.com/TimUx/alarm-monitor/internal/store"
)

const alarmMail = "From: leitstelle@example.org\r\n" +
	"Subject: Alarm F3Y\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"<INCIDENT>\r\n" +
	"  <ENR>7850001123</ENR>\r\n" +
	"  <ESTICHWORT_1>F3Y</ESTICHWORT_1>\r\n" +
	"  <ORT>Willingshausen</ORT>\r\n" +
	"</INCIDENT>\r\n"

// execute runs the root command with fresh flag values and captures stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	parseFlags.json = false
	historyFlags.file, historyFlags.limit, historyFlags.json = "", 10, false
	validateFlags.file, validateFlags.capacity = "", store.DefaultCapacity
	settingsFlags.file, settingsFlags.groups, settingsFlags.clearGroups, settingsFlags.displayMinutes = "", nil, false, 0

	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func writeSnapshot(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParse_MailFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarm.eml")
	require.NoError(t, os.WriteFile(path, []byte(alarmMail), 0o600))

	out, err := execute(t, "", "parse", path)
	require.NoError(t, err)

	var alarm domain.Alarm
	require.NoError(t, json.Unmarshal([]byte(out), &alarm))
	assert.Equal(t, "7850001123", alarm.IncidentNumber)
	assert.Equal(t, "Alarm F3Y", alarm.Subject)
	assert.Equal(t, "F3Y", alarm.KeywordPrimary)
}

func TestParse_Stdin(t *testing.T) {
	out, err := execute(t, alarmMail, "parse", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"incident_number": "7850001123"`)
}

func TestParse_NotAnAlarm(t *testing.T) {
	_, err := execute(t, "Subject: hello\r\n\r\njust a note\r\n", "parse")
	assert.ErrorIs(t, err, errNoAlarm)
}

func TestParse_JSONPayload(t *testing.T) {
	out, err := execute(t, `{"alarm": {"incident_number": 42, "dispatch_group_codes": "wil26"}}`, "parse", "--json")
	require.NoError(t, err)

	var alarm domain.Alarm
	require.NoError(t, json.Unmarshal([]byte(out), &alarm))
	assert.Equal(t, "42", alarm.IncidentNumber)
	assert.Equal(t, []string{"WIL26"}, alarm.DispatchGroupCodes)
}

func TestParse_InvalidJSONPayload(t *testing.T) {
	_, err := execute(t, `[1, 2]`, "parse", "--json")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestHistory_TableWithLimit(t *testing.T) {
	path := writeSnapshot(t, `{"history": [
		{"id": "b", "alarm": {"incident_number": "2", "keyword": "F2", "location": "Ort B"}, "received_at": "2024-03-05T13:00:00Z"},
		{"id": "a", "alarm": {"incident_number": "1", "subject": "Alarm"}, "received_at": "2024-03-05T12:00:00Z"}
	]}`)

	out, err := execute(t, "", "history", "--file", path, "--limit", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INCIDENT")
	assert.Contains(t, lines[1], "2024-03-05T13:00:00Z")
	assert.Contains(t, lines[1], "Ort B")
}

func TestHistory_JSON(t *testing.T) {
	path := writeSnapshot(t, `[{"alarm": {"incident_number": "1"}, "received_at": "2024-03-05T12:00:00"}]`)

	out, err := execute(t, "", "history", "--file", path, "--json")
	require.NoError(t, err)

	var records []domain.AlarmRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, 12, records[0].ReceivedAt.Hour())
}

func TestHistory_Empty(t *testing.T) {
	path := writeSnapshot(t, `{"history": []}`)

	out, err := execute(t, "", "history", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No alarms recorded")
}

func TestHistory_RequiresFile(t *testing.T) {
	_, err := execute(t, "", "history")
	assert.Error(t, err)
}

func TestValidate_CleanSnapshot(t *testing.T) {
	path := writeSnapshot(t, `{"history": [
		{"id": "b", "alarm": {"incident_number": "2", "dispatch_group_codes": ["WIL26"]}, "coordinates": {"lat": 50.8, "lon": 9.3}, "received_at": "2024-03-05T13:00:00Z"},
		{"id": "a", "alarm": {"incident_number": "1"}, "received_at": "2024-03-05T12:00:00Z"}
	]}`)

	out, err := execute(t, "", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "All validations passed.")
}

func TestValidate_ReportsProblems(t *testing.T) {
	path := writeSnapshot(t, `{"history": [
		{"id": "a", "alarm": {"incident_number": "1", "dispatch_group_codes": ["wil26"]}, "received_at": "2024-03-05T12:00:00Z"},
		{"id": "b", "alarm": {"incident_number": "1"}, "coordinates": {"lat": 95, "lon": 9.3}, "received_at": "2024-03-05T13:00:00Z"},
		{"alarm": {}, "received_at": "2024-03-05T11:00:00Z"}
	]}`)

	out, err := execute(t, "", "validate", "--file", path, "--capacity", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "6 of 6 checks")

	for _, name := range []string{
		"Incident numbers unique",
		"Newest first",
		"Records complete",
		"Unit codes normalized",
		"Coordinates valid",
		"Within capacity",
	} {
		assert.Contains(t, out, "--- "+name+" ---")
	}
	assert.Contains(t, out, `repeats incident "1" from record 0`)
}

func TestValidate_AcceptsLoneAlarmCoordinate(t *testing.T) {
	path := writeSnapshot(t, `{"history": [
		{"id": "a", "alarm": {"incident_number": "1", "latitude": 50.8}, "received_at": "2024-03-05T12:00:00Z"}
	]}`)

	out, err := execute(t, "", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "All validations passed.")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "", "validate", "--file", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load history")
}

func TestSettings_ShowDefaultsWithoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := execute(t, "", "settings", "--file", path)
	require.NoError(t, err)

	var s settings.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Empty(t, s.ActivationGroups)
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "showing settings must not create the file")
}

func TestSettings_UpdateAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	out, err := execute(t, "", "settings", "--file", path, "--groups", "wil26,lf treysa", "--display-minutes", "15")
	require.NoError(t, err)

	var s settings.Settings
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, []string{"WIL26", "LF TREYSA"}, s.ActivationGroups)
	assert.Equal(t, 15, s.DisplayDurationMinutes)

	p := settings.NewFileProvider(path, settings.Settings{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, []string{"WIL26", "LF TREYSA"}, p.Snapshot().ActivationGroups)

	_, err = execute(t, "", "settings", "--file", path, "--clear-groups")
	require.NoError(t, err)

	loaded, err := settings.Load(path, settings.Settings{})
	require.NoError(t, err)
	assert.Empty(t, loaded.ActivationGroups)
	assert.Equal(t, 15, loaded.DisplayDurationMinutes)
}

func TestSettings_ConflictingGroupFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	_, err := execute(t, "", "settings", "--file", path, "--groups", "WIL26", "--clear-groups")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}
