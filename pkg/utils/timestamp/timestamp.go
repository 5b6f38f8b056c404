// Package timestamp normalizes stored record timestamps into a fixed-width,
// locale-stable display form. It never fails: input that cannot be parsed is
// returned unchanged.
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Placeholder is returned for a missing timestamp
const Placeholder = "Timestamp N/A"

const displayLayout = "2006-01-02 15:04:05"

var zonedLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04-07:00",
	"2006-01-02 15:04-07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Format renders raw as "YYYY-MM-DD HH:MM:SS" in the timestamp's own offset
func Format(raw string) string {
	if isBlank(raw) {
		return Placeholder
	}

	t, _, ok := parse(raw)
	if !ok {
		return raw
	}
	return t.Format(displayLayout)
}

// FormatWithZone is Format followed by a zone label ("UTC", "UTC+09:00").
// A timestamp without an offset gets no label.
func FormatWithZone(raw string) string {
	if isBlank(raw) {
		return Placeholder
	}

	t, zoned, ok := parse(raw)
	if !ok {
		return raw
	}
	if !zoned {
		return t.Format(displayLayout)
	}
	return t.Format(displayLayout) + " " + zoneLabel(t)
}

// Parse exposes the parser for callers that need a time.Time, e.g. ordering
// records written with mixed conventions.
func Parse(raw string) (time.Time, bool) {
	if isBlank(raw) {
		return time.Time{}, false
	}
	t, _, ok := parse(raw)
	return t, ok
}

func isBlank(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

func parse(raw string) (time.Time, bool, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "+00:00"
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Pin to an anonymous fixed zone so the result does not depend on
			// the host's local time zone.
			_, offset := t.Zone()
			return t.In(time.FixedZone("", offset)), true, true
		}
	}

	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, true
		}
	}

	return time.Time{}, false, false
}

func zoneLabel(t time.Time) string {
	_, offset := t.Zone()
	if offset == 0 {
		return "UTC"
	}

	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}
