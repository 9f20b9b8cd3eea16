package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Alarm is the normalized incident shared by the mail and API ingestion paths.
// Empty strings and nil slices mean "not provided" and are omitted from JSON.
type Alarm struct {
	IncidentNumber     string           `json:"incident_number,omitempty"`
	Timestamp          string           `json:"timestamp,omitempty"`
	TimestampDisplay   string           `json:"timestamp_display,omitempty"`
	Keyword            string           `json:"keyword,omitempty"`
	KeywordPrimary     string           `json:"keyword_primary,omitempty"`
	KeywordSecondary   string           `json:"keyword_secondary,omitempty"`
	Diagnosis          string           `json:"diagnosis,omitempty"`
	Description        string           `json:"description,omitempty"`
	Remark             string           `json:"remark,omitempty"`
	Subject            string           `json:"subject,omitempty"`
	Location           string           `json:"location,omitempty"`
	LocationDetails    *LocationDetails `json:"location_details,omitempty"`
	AAOGroups          []string         `json:"aao_groups,omitempty"`
	DispatchGroups     []string         `json:"dispatch_groups,omitempty"`
	Groups             []string         `json:"groups,omitempty"`
	DispatchGroupCodes []string         `json:"dispatch_group_codes,omitempty"`
	Latitude           *float64         `json:"latitude,omitempty"`
	Longitude          *float64         `json:"longitude,omitempty"`
	EmergencyID        string           `json:"emergency_id,omitempty"`
}

// UnmarshalJSON decodes a stored alarm with the same scalar coercion API
// payloads get, so history written by older versions (numeric incident
// numbers, single-string group fields) still loads. Unlike
// NormalizeAlarmJSON it derives nothing and leaves codes as stored.
func (a *Alarm) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: malformed alarm JSON", ErrInvalidArgument)
	}
	obj := gjson.ParseBytes(data)
	if obj.Type == gjson.Null {
		return nil
	}
	if !obj.IsObject() {
		return fmt.Errorf("%w: alarm must be a JSON object", ErrInvalidArgument)
	}
	*a = decodeFields(obj)
	if a.LocationDetails != nil && a.LocationDetails.isZero() {
		a.LocationDetails = nil
	}
	return nil
}

// LocationDetails keeps the address parts the composed Location was built from.
type LocationDetails struct {
	Street     string `json:"street,omitempty"`
	Village    string `json:"village,omitempty"`
	Town       string `json:"town,omitempty"`
	Object     string `json:"object,omitempty"`
	Additional string `json:"additional,omitempty"`
}

func (d LocationDetails) isZero() bool {
	return d == LocationDetails{}
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Weather is the free-form current-conditions mapping returned by the weather provider.
type Weather map[string]any

// AlarmRecord is an alarm as committed to the history.
type AlarmRecord struct {
	ID          string       `json:"id,omitempty"`
	Alarm       Alarm        `json:"alarm"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Weather     Weather      `json:"weather,omitempty"`
	ReceivedAt  time.Time    `json:"received_at"`
}

// naiveISOLayout matches timestamps written without a zone offset.
const naiveISOLayout = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON accepts received_at either as RFC 3339 or as a zone-less
// ISO-8601 timestamp, which is read as UTC.
func (r *AlarmRecord) UnmarshalJSON(data []byte) error {
	type plain AlarmRecord
	var aux struct {
		plain
		ReceivedAt string `json:"received_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = AlarmRecord(aux.plain)
	if aux.ReceivedAt == "" {
		r.ReceivedAt = time.Time{}
		return nil
	}
	t, err := ParseReceivedAt(aux.ReceivedAt)
	if err != nil {
		return err
	}
	r.ReceivedAt = t
	return nil
}

// ParseReceivedAt parses an RFC 3339 or zone-less ISO-8601 timestamp into UTC.
func ParseReceivedAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveISOLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse received_at %q: %w", s, err)
	}
	return t, nil
}

// Normalize re-establishes the alarm invariants: trimmed incident number,
// uppercase deduplicated unit codes, finite coordinates, and no empty
// location details.
func (a *Alarm) Normalize() {
	a.IncidentNumber = strings.TrimSpace(a.IncidentNumber)
	a.DispatchGroupCodes = uniqueUpper(a.DispatchGroupCodes)
	if a.Latitude != nil && !isFinite(*a.Latitude) {
		a.Latitude = nil
	}
	if a.Longitude != nil && !isFinite(*a.Longitude) {
		a.Longitude = nil
	}
	if a.LocationDetails != nil && a.LocationDetails.isZero() {
		a.LocationDetails = nil
	}
}

// Coordinates returns the alarm's own position when both axes are present.
func (a Alarm) Coordinates() (*Coordinates, bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return nil, false
	}
	if !isFinite(*a.Latitude) || !isFinite(*a.Longitude) {
		return nil, false
	}
	return &Coordinates{Lat: *a.Latitude, Lon: *a.Longitude}, true
}

// Clone returns a deep copy of the alarm.
func (a Alarm) Clone() Alarm {
	out := a
	out.AAOGroups = cloneStrings(a.AAOGroups)
	out.DispatchGroups = cloneStrings(a.DispatchGroups)
	out.Groups = cloneStrings(a.Groups)
	out.DispatchGroupCodes = cloneStrings(a.DispatchGroupCodes)
	if a.LocationDetails != nil {
		d := *a.LocationDetails
		out.LocationDetails = &d
	}
	if a.Latitude != nil {
		v := *a.Latitude
		out.Latitude = &v
	}
	if a.Longitude != nil {
		v := *a.Longitude
		out.Longitude = &v
	}
	return out
}

// Clone returns a deep copy of the record so callers cannot alias history state.
func (r AlarmRecord) Clone() AlarmRecord {
	out := r
	out.Alarm = r.Alarm.Clone()
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	out.Weather = r.Weather.Clone()
	return out
}

// Clone deep-copies the weather mapping, including nested maps and slices.
func (w Weather) Clone() Weather {
	if w == nil {
		return nil
	}
	out := make(Weather, len(w))
	for k, v := range w {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case Weather:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// uniqueUpper uppercases, trims, and deduplicates values in first-seen order.
func uniqueUpper(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
