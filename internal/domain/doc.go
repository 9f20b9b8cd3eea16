// Package domain models fire-service dispatch alarms as delivered by the
// regional control centre (Leitstelle).
//
// # Data Source
//
// The control centre sends every alarm as an e-mail whose plain-text body
// carries an XML document rooted at <INCIDENT>. The block is usually
// surrounded by free text (greetings, signatures, forwarded headers), so the
// parser locates it by the literal "<INCIDENT" marker and cuts at the first
// closing tag. Alarms may also arrive as JSON through the HTTP receiver; both
// paths end in the same [Alarm] value.
//
// # Incident Conventions
//
// Incident number:
//
//	ENR is the control centre's case number and the only identity an alarm
//	has. An alarm without one cannot be deduplicated and is discarded.
//
// Time format:
//
//	EBEGINN is local wall-clock time in German notation, "D.M.YYYY H:MM:SS"
//	or "D.M.YYYY H:MM". It is normalized to "YYYY-MM-DDTHH:MM:SS" without a
//	zone; the raw value is kept for display. Unparseable values pass through
//	unchanged in both fields.
//
// Keywords:
//
//	ESTICHWORT_1 (legacy STICHWORT) is the primary alarm keyword, e.g.
//	"F3Y". DIAGNOSE is the free-text diagnosis. The display keyword joins the
//	two with an en dash when they differ: "F3Y – Brand Wohnhaus".
//
// Dispatched units:
//
//	AAO lists the alarm and dispatch order groups separated by ";".
//	EINSATZMASSNAHMEN/TME/BEZEICHNUNG repeats once per alerted unit, e.g.
//	"Fahrzeug WIL26-1". Unit codes are runs of capital letters (including
//	umlauts) followed by digits, bounded by non-word characters: "WIL26".
//
// Location format:
//
//	"<street> <house number>, <additional>, <village>, <town>"; the object
//	name stands in for the street line when no street is given. Empty parts
//	are skipped.
//
// # Enrichment
//
// [Geocoder] and [WeatherClient] are best-effort collaborators. A nil result
// with a nil error means "no data"; errors wrap [ErrGeocoding] or
// [ErrWeather] and are turned into absent fields by the caller.
package domain
