package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlarmRecord_UnmarshalReceivedAt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2024-03-05T13:07:33Z"`, time.Date(2024, 3, 5, 13, 7, 33, 0, time.UTC)},
		{"offset converted to utc", `"2024-03-05T14:07:33+01:00"`, time.Date(2024, 3, 5, 13, 7, 33, 0, time.UTC)},
		{"naive iso read as utc", `"2024-03-05T13:07:33.250000"`, time.Date(2024, 3, 5, 13, 7, 33, 250000000, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec AlarmRecord
			require.NoError(t, json.Unmarshal([]byte(`{"alarm":{"incident_number":"1"},"received_at":`+tt.raw+`}`), &rec))
			assert.True(t, tt.want.Equal(rec.ReceivedAt), "got %s", rec.ReceivedAt)
			assert.Equal(t, time.UTC, rec.ReceivedAt.Location())
			assert.Equal(t, "1", rec.Alarm.IncidentNumber)
		})
	}
}

func TestAlarmRecord_UnmarshalInvalidReceivedAt(t *testing.T) {
	var rec AlarmRecord
	err := json.Unmarshal([]byte(`{"alarm":{},"received_at":"yesterday"}`), &rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "received_at")
}

func TestAlarm_UnmarshalCoercesLooseTypes(t *testing.T) {
	var a Alarm
	require.NoError(t, json.Unmarshal([]byte(`{
		"incident_number": 12345,
		"dispatch_groups": "Fahrzeug WIL26-1",
		"aao_groups": ["LF", 7],
		"latitude": "50.81",
		"longitude": 9.34,
		"location_details": {}
	}`), &a))

	assert.Equal(t, "12345", a.IncidentNumber)
	assert.Equal(t, []string{"Fahrzeug WIL26-1"}, a.DispatchGroups)
	assert.Equal(t, []string{"LF", "7"}, a.AAOGroups)
	require.NotNil(t, a.Latitude)
	assert.InDelta(t, 50.81, *a.Latitude, 1e-9)
	require.NotNil(t, a.Longitude)
	assert.Nil(t, a.LocationDetails)
	assert.Empty(t, a.DispatchGroupCodes, "stored alarms are not re-derived")
}

func TestAlarm_UnmarshalRejectsNonObject(t *testing.T) {
	var a Alarm
	assert.ErrorIs(t, json.Unmarshal([]byte(`["x"]`), &a), ErrInvalidArgument)
}

func TestAlarm_JSONRoundTripKeepsZeroCoordinates(t *testing.T) {
	zero := 0.0
	in := Alarm{IncidentNumber: "1", Latitude: &zero, Longitude: &zero, DispatchGroupCodes: []string{"WIL26"}}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Alarm
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestAlarmRecord_CloneIsDeep(t *testing.T) {
	lat := 50.0
	rec := AlarmRecord{
		Alarm: Alarm{
			IncidentNumber:  "1",
			Groups:          []string{"LF"},
			Latitude:        &lat,
			LocationDetails: &LocationDetails{Town: "Treysa"},
		},
		Coordinates: &Coordinates{Lat: 1, Lon: 2},
		Weather:     Weather{"current_weather": map[string]any{"temperature": 10.5}},
	}

	clone := rec.Clone()
	clone.Alarm.Groups[0] = "DLK"
	*clone.Alarm.Latitude = 0
	clone.Alarm.LocationDetails.Town = "Ziegenhain"
	clone.Coordinates.Lat = 99
	clone.Weather["current_weather"].(map[string]any)["temperature"] = 0.0

	assert.Equal(t, "LF", rec.Alarm.Groups[0])
	assert.Equal(t, 50.0, *rec.Alarm.Latitude)
	assert.Equal(t, "Treysa", rec.Alarm.LocationDetails.Town)
	assert.Equal(t, 1.0, rec.Coordinates.Lat)
	assert.Equal(t, 10.5, rec.Weather["current_weather"].(map[string]any)["temperature"])
}

func TestAlarm_Normalize(t *testing.T) {
	nan := math.NaN()
	lon := 9.0
	a := Alarm{
		IncidentNumber:     "  42 ",
		DispatchGroupCodes: []string{"wil26", "WIL26", "elw1"},
		Latitude:           &nan,
		Longitude:          &lon,
		LocationDetails:    &LocationDetails{},
	}
	a.Normalize()

	assert.Equal(t, "42", a.IncidentNumber)
	assert.Equal(t, []string{"WIL26", "ELW1"}, a.DispatchGroupCodes)
	assert.Nil(t, a.Latitude)
	assert.NotNil(t, a.Longitude)
	assert.Nil(t, a.LocationDetails)

	_, ok := a.Coordinates()
	assert.False(t, ok)
}

func TestAlarm_CoordinatesZeroIsValid(t *testing.T) {
	zero := 0.0
	a := Alarm{Latitude: &zero, Longitude: &zero}
	c, ok := a.Coordinates()
	require.True(t, ok)
	assert.Equal(t, Coordinates{}, *c)
}

func TestAlarm_JSONOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Alarm{IncidentNumber: "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"incident_number":"1"}`, string(data))
}
