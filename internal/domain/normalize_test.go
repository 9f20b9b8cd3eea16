package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAlarmJSON_BareObject(t *testing.T) {
	body := []byte(`{
		"incident_number": " 2024-001 ",
		"keyword_primary": "F3Y",
		"diagnosis": "Brand Wohnhaus",
		"location": "Hauptstraße 12, Treysa",
		"dispatch_groups": ["Fahrzeug WIL26-1", "ELW1"],
		"latitude": "50.81",
		"longitude": 9.34
	}`)

	alarm, err := NormalizeAlarmJSON(body)
	require.NoError(t, err)

	assert.Equal(t, "2024-001", alarm.IncidentNumber)
	assert.Equal(t, "F3Y – Brand Wohnhaus", alarm.Keyword)
	assert.Equal(t, "Brand Wohnhaus", alarm.Description)
	assert.Equal(t, []string{"Fahrzeug WIL26-1", "ELW1"}, alarm.Groups)
	assert.Equal(t, []string{"WIL26", "ELW1"}, alarm.DispatchGroupCodes)
	require.NotNil(t, alarm.Latitude)
	require.NotNil(t, alarm.Longitude)
	assert.InDelta(t, 50.81, *alarm.Latitude, 1e-9)
	assert.InDelta(t, 9.34, *alarm.Longitude, 1e-9)
}

func TestNormalizeAlarmJSON_WrappedWithEmergencyID(t *testing.T) {
	body := []byte(`{"alarm": {"incident_number": 4711, "dispatch_groups": "LF Treysa"}, "emergency_id": "em-9"}`)

	alarm, err := NormalizeAlarmJSON(body)
	require.NoError(t, err)

	assert.Equal(t, "4711", alarm.IncidentNumber)
	assert.Equal(t, "em-9", alarm.EmergencyID)
	assert.Equal(t, []string{"LF Treysa"}, alarm.DispatchGroups)
	assert.Nil(t, alarm.DispatchGroupCodes)
}

func TestNormalizeAlarmJSON_CodesUppercasedAndDeduplicated(t *testing.T) {
	body := []byte(`{"incident_number": "1", "dispatch_group_codes": ["wil26", "WIL26", " elw1 ", ""]}`)

	alarm, err := NormalizeAlarmJSON(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"WIL26", "ELW1"}, alarm.DispatchGroupCodes)
}

func TestNormalizeAlarmJSON_LocationDetails(t *testing.T) {
	body := []byte(`{"incident_number": "1", "location_details": {"street": "Markt 1", "town": "Treysa"}}`)

	alarm, err := NormalizeAlarmJSON(body)
	require.NoError(t, err)
	require.NotNil(t, alarm.LocationDetails)
	assert.Equal(t, "Markt 1", alarm.LocationDetails.Street)
	assert.Equal(t, "Treysa", alarm.LocationDetails.Town)
}

func TestNormalizeAlarmJSON_IgnoresInvalidCoordinates(t *testing.T) {
	body := []byte(`{"incident_number": "1", "latitude": "north", "longitude": null}`)

	alarm, err := NormalizeAlarmJSON(body)
	require.NoError(t, err)
	assert.Nil(t, alarm.Latitude)
	assert.Nil(t, alarm.Longitude)
}

func TestNormalizeAlarmJSON_MissingIncidentNumberIsNotAnError(t *testing.T) {
	alarm, err := NormalizeAlarmJSON([]byte(`{"keyword": "H1"}`))
	require.NoError(t, err)
	assert.Empty(t, alarm.IncidentNumber)
}

func TestNormalizeAlarmJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"incident_number": `},
		{"array", `[{"incident_number": "1"}]`},
		{"string", `"alarm"`},
		{"wrapped non-object", `{"alarm": [1, 2]}`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeAlarmJSON([]byte(tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}
