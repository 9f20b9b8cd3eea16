package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// NormalizeAlarmJSON converts an API payload into an Alarm. The payload is
// either the alarm object itself or {"alarm": {...}} with an optional
// top-level "emergency_id". Text fields accept strings or numbers, group
// fields accept a list or a single value, coordinates accept numbers or
// numeric strings. A body that is not a JSON object is an ErrInvalidArgument.
func NormalizeAlarmJSON(body []byte) (Alarm, error) {
	if !gjson.ValidBytes(body) {
		return Alarm{}, fmt.Errorf("%w: malformed JSON", ErrInvalidArgument)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return Alarm{}, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidArgument)
	}

	obj := root
	if wrapped := root.Get("alarm"); wrapped.Exists() {
		if !wrapped.IsObject() {
			return Alarm{}, fmt.Errorf("%w: alarm must be a JSON object", ErrInvalidArgument)
		}
		obj = wrapped
	}

	alarm := decodeFields(obj)
	if alarm.EmergencyID == "" {
		alarm.EmergencyID = text(root, "emergency_id")
	}

	if alarm.Keyword == "" {
		alarm.Keyword = displayKeyword(alarm.KeywordPrimary, alarm.Diagnosis)
	}
	if alarm.Description == "" {
		alarm.Description = alarm.Diagnosis
	}
	if len(alarm.Groups) == 0 && len(alarm.AAOGroups)+len(alarm.DispatchGroups) > 0 {
		alarm.Groups = append(cloneStrings(alarm.AAOGroups), alarm.DispatchGroups...)
	}
	if len(alarm.DispatchGroupCodes) == 0 {
		for _, g := range alarm.DispatchGroups {
			alarm.DispatchGroupCodes = append(alarm.DispatchGroupCodes, ExtractUnitCodes(g)...)
		}
	}

	alarm.Normalize()
	return alarm, nil
}

// decodeFields maps the JSON fields of an alarm object with scalar coercion
// and no derivation.
func decodeFields(obj gjson.Result) Alarm {
	alarm := Alarm{
		IncidentNumber:     text(obj, "incident_number"),
		Timestamp:          text(obj, "timestamp"),
		TimestampDisplay:   text(obj, "timestamp_display"),
		Keyword:            text(obj, "keyword"),
		KeywordPrimary:     text(obj, "keyword_primary"),
		KeywordSecondary:   text(obj, "keyword_secondary"),
		Diagnosis:          text(obj, "diagnosis"),
		Description:        text(obj, "description"),
		Remark:             text(obj, "remark"),
		Subject:            text(obj, "subject"),
		Location:           text(obj, "location"),
		AAOGroups:          list(obj, "aao_groups"),
		DispatchGroups:     list(obj, "dispatch_groups"),
		Groups:             list(obj, "groups"),
		DispatchGroupCodes: list(obj, "dispatch_group_codes"),
		Latitude:           number(obj, "latitude"),
		Longitude:          number(obj, "longitude"),
		EmergencyID:        text(obj, "emergency_id"),
	}

	if details := obj.Get("location_details"); details.IsObject() {
		alarm.LocationDetails = &LocationDetails{
			Street:     text(details, "street"),
			Village:    text(details, "village"),
			Town:       text(details, "town"),
			Object:     text(details, "object"),
			Additional: text(details, "additional"),
		}
	}

	return alarm
}

// text reads a scalar as a trimmed string; objects, arrays and null yield "".
func text(obj gjson.Result, key string) string {
	v := obj.Get(key)
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number:
		return v.Raw
	case gjson.True, gjson.False:
		return v.Raw
	default:
		return ""
	}
}

// list reads an array of scalars, or a single scalar, as a string slice.
func list(obj gjson.Result, key string) []string {
	v := obj.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	var items []gjson.Result
	if v.IsArray() {
		items = v.Array()
	} else {
		items = []gjson.Result{v}
	}
	var out []string
	for _, item := range items {
		var s string
		switch item.Type {
		case gjson.String:
			s = strings.TrimSpace(item.Str)
		case gjson.Number:
			s = item.Raw
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func number(obj gjson.Result, key string) *float64 {
	v := obj.Get(key)
	switch v.Type {
	case gjson.Number:
		f := v.Num
		if !isFinite(f) {
			return nil
		}
		return &f
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || !isFinite(f) {
			return nil
		}
		return &f
	default:
		return nil
	}
}
