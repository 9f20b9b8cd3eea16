package domain

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	incidentOpen  = "<INCIDENT"
	incidentClose = "</INCIDENT>"
)

// Control centre timestamps, tried in order.
var timestampLayouts = []string{
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
}

const isoLayout = "2006-01-02T15:04:05"

// unitCodePattern matches candidate unit codes; word boundaries are checked
// separately because RE2 has no Unicode-aware \b.
var unitCodePattern = regexp.MustCompile(`[A-ZÄÖÜ]+[0-9]+`)

// incidentXML mirrors the control centre's <INCIDENT> document.
type incidentXML struct {
	XMLName          xml.Name `xml:"INCIDENT"`
	ENR              string   `xml:"ENR"`
	Keyword1         string   `xml:"ESTICHWORT_1"`
	KeywordLegacy    string   `xml:"STICHWORT"`
	Keyword2         string   `xml:"ESTICHWORT_2"`
	Diagnosis        string   `xml:"DIAGNOSE"`
	Remark           string   `xml:"EO_BEMERKUNG"`
	RemarkLegacy     string   `xml:"EOZUSATZ"`
	Begin            string   `xml:"EBEGINN"`
	Street           string   `xml:"STRASSE"`
	HouseNumber      string   `xml:"HAUSNUMMER"`
	Village          string   `xml:"ORTSTEIL"`
	Town             string   `xml:"ORT"`
	Object           string   `xml:"OBJEKT"`
	Additional       string   `xml:"ORTSZUSATZ"`
	AAO              string   `xml:"AAO"`
	UnitDescriptions []string `xml:"EINSATZMASSNAHMEN>TME>BEZEICHNUNG"`
	Lat              string   `xml:"KOORDINATE_LAT"`
	Lon              string   `xml:"KOORDINATE_LON"`
}

// ParseIncident extracts the first <INCIDENT> document from a free-form body.
// It returns false when the body holds no incident or the XML is malformed.
// Missing fields are left empty; the caller decides whether the alarm is usable.
func ParseIncident(body string) (Alarm, bool) {
	payload, ok := extractIncident(body)
	if !ok {
		return Alarm{}, false
	}

	var doc incidentXML
	if err := xml.Unmarshal([]byte(payload), &doc); err != nil {
		return Alarm{}, false
	}

	return doc.toAlarm(), true
}

func extractIncident(body string) (string, bool) {
	body = strings.TrimSpace(body)
	start := strings.Index(body, incidentOpen)
	if start == -1 {
		return "", false
	}
	rest := body[start:]
	if end := strings.Index(rest, incidentClose); end != -1 {
		return rest[:end+len(incidentClose)], true
	}
	return rest, true
}

func (doc incidentXML) toAlarm() Alarm {
	primary := firstNonEmpty(doc.Keyword1, doc.KeywordLegacy)
	diagnosis := strings.TrimSpace(doc.Diagnosis)
	timestamp, display := normalizeTimestamp(doc.Begin)

	street := joinNonEmpty(" ", doc.Street, doc.HouseNumber)
	village := strings.TrimSpace(doc.Village)
	town := strings.TrimSpace(doc.Town)
	object := strings.TrimSpace(doc.Object)
	additional := strings.TrimSpace(doc.Additional)

	location := joinNonEmpty(", ", firstNonEmpty(street, object), additional, village, town)
	if location == "" {
		location = firstNonEmpty(town, village, street, object)
	}

	aao := splitGroups(doc.AAO)
	units, codes := parseUnits(doc.UnitDescriptions)

	var groups []string
	if len(aao)+len(units) > 0 {
		groups = make([]string, 0, len(aao)+len(units))
		groups = append(groups, aao...)
		groups = append(groups, units...)
	}

	alarm := Alarm{
		IncidentNumber:     strings.TrimSpace(doc.ENR),
		Timestamp:          timestamp,
		TimestampDisplay:   display,
		Keyword:            displayKeyword(primary, diagnosis),
		KeywordPrimary:     primary,
		KeywordSecondary:   strings.TrimSpace(doc.Keyword2),
		Diagnosis:          diagnosis,
		Description:        diagnosis,
		Remark:             firstNonEmpty(doc.Remark, doc.RemarkLegacy),
		Location:           location,
		AAOGroups:          aao,
		DispatchGroups:     units,
		Groups:             groups,
		DispatchGroupCodes: codes,
		Latitude:           parseCoordinate(doc.Lat),
		Longitude:          parseCoordinate(doc.Lon),
	}

	details := LocationDetails{
		Street:     street,
		Village:    village,
		Town:       town,
		Object:     object,
		Additional: additional,
	}
	if !details.isZero() {
		alarm.LocationDetails = &details
	}
	return alarm
}

// normalizeTimestamp returns the ISO form and the display form of a control
// centre timestamp. Values in an unknown format are returned unchanged as both.
func normalizeTimestamp(raw string) (iso, display string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(isoLayout), raw
		}
	}
	return raw, raw
}

func displayKeyword(primary, diagnosis string) string {
	if diagnosis == "" || diagnosis == primary {
		return primary
	}
	if primary == "" {
		return diagnosis
	}
	return primary + " – " + diagnosis
}

func splitGroups(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseUnits returns the non-empty unit descriptions and the unit codes found in them.
func parseUnits(descriptions []string) (units, codes []string) {
	var found []string
	for _, d := range descriptions {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		units = append(units, d)
		found = append(found, ExtractUnitCodes(d)...)
	}
	return units, uniqueUpper(found)
}

// ExtractUnitCodes returns the unit codes in text, e.g. "WIL26" from
// "Fahrzeug WIL26-1", in order of appearance.
func ExtractUnitCodes(text string) []string {
	var codes []string
	for _, loc := range unitCodePattern.FindAllStringIndex(text, -1) {
		if !isWordBoundary(text, loc[0], true) || !isWordBoundary(text, loc[1], false) {
			continue
		}
		codes = append(codes, strings.ToUpper(text[loc[0]:loc[1]]))
	}
	return codes
}

// isWordBoundary reports whether the rune adjacent to pos (before it when
// before is true, after it otherwise) is absent or not a word character.
func isWordBoundary(text string, pos int, before bool) bool {
	var r rune
	if before {
		if pos == 0 {
			return true
		}
		r, _ = utf8.DecodeLastRuneInString(text[:pos])
	} else {
		if pos >= len(text) {
			return true
		}
		r, _ = utf8.DecodeRuneInString(text[pos:])
	}
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r)
}

func parseCoordinate(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !isFinite(v) {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
