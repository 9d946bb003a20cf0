// Package dates turns the free-form date strings published by the news
// source into timestamps and renders them back for notifications.
package dates

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayLayout is the canonical rendering used in messages and stored records.
const DisplayLayout = "02 January 2006"

// Unavailable is rendered when an item carries no usable date.
const Unavailable = "Date unavailable"

// layouts are tried in order; the first exact match wins. Numeric forms are
// day-first, so "01-02-2024" is the 1st of February.
var layouts = []string{
	"2 January 2006",
	"January 2 2006",
	"2006-1-2",
	"2-1-2006",
	"2/1/2006",
}

// monthReplacements maps Dutch month names onto the English names the
// layouts expect. Applied in slice order.
var monthReplacements = [][2]string{
	{"januari", "january"},
	{"februari", "february"},
	{"maart", "march"},
	{"mei", "may"},
	{"juni", "june"},
	{"juli", "july"},
	{"augustus", "august"},
	{"oktober", "october"},
	{"december", "december"},
}

// Parse converts text into a timestamp. It never fails loudly: empty or
// unrecognised input yields ok == false.
func Parse(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}

	clean := normalize(text)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, true
		}
	}

	slog.Warn("unparsable date", "input", text)
	return time.Time{}, false
}

// Format renders t with DisplayLayout, or Unavailable when ok is false.
func Format(t time.Time, ok bool) string {
	if !ok {
		return Unavailable
	}
	return t.Format(DisplayLayout)
}

func normalize(text string) string {
	normalized := strings.TrimSpace(strings.ToLower(text))
	for _, r := range monthReplacements {
		normalized = strings.ReplaceAll(normalized, r[0], r[1])
	}
	return cases.Title(language.Und).String(normalized)
}
