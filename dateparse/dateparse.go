package dateparse

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"govsort/model"
)

// layouts are the explicit formats tried after RFC 5322 parsing fails, in
// order. Single-digit day/month variants follow their padded forms because
// time.Parse treats padded layouts strictly.
var layouts = []string{
	"02/01/2006, 15:04",
	"2/1/2006, 15:04",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"Mon, 02 Jan 2006 15:04:05 -0700",
}

var datePortionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
	regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`),
	regexp.MustCompile(`(\d{4}/\d{2}/\d{2})`),
}

// filenamePatterns pull a date token out of a filename. Checked in order,
// first match wins; interpretation depends on the captured shape.
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[-_](\d{8})[-_]`),     // -20240210- or _20240210_
	regexp.MustCompile(`(\d{8})[._]`),         // 20240210. or 20240210_
	regexp.MustCompile(`[-_](\d{6})[-_]`),     // -240210- or _240210_
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), // 2024-02-10
	regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`), // 10-02-2024
}

const compactLayout = "20060102"

// Resolve converts a raw date string and/or filename into a concrete
// timestamp. It never fails: when no signal parses, the current wall-clock
// time is returned and ok is false so the caller can log the miss.
func Resolve(rawDate, filename string) (model.ResolvedDate, bool) {
	if t, ok := fromRaw(rawDate); ok {
		return resolved(t), true
	}
	if t, ok := fromFilename(filename); ok {
		return resolved(t), true
	}
	return resolved(time.Now()), false
}

func fromRaw(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if t, err := mail.ParseDate(raw); err == nil {
		return t, true
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	// Last resort on the raw value: pull a bare date substring and read it
	// as ISO.
	for _, re := range datePortionPatterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func fromFilename(filename string) (time.Time, bool) {
	if filename == "" {
		return time.Time{}, false
	}

	for _, re := range filenamePatterns {
		m := re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}

		token := m[1]
		var (
			t   time.Time
			err error
		)
		switch {
		case len(token) == 8 && !strings.Contains(token, "-"):
			t, err = time.Parse(compactLayout, token)
		case len(token) == 6:
			t, err = time.Parse(compactLayout, "20"+token)
		case len(token) == 10 && token[4] == '-':
			t, err = time.Parse("2006-01-02", token)
		case len(token) == 10 && token[2] == '-':
			t, err = time.Parse("02-01-2006", token)
		default:
			continue
		}
		if err != nil {
			continue
		}
		return t, true
	}

	return time.Time{}, false
}

func resolved(t time.Time) model.ResolvedDate {
	return model.ResolvedDate{
		Timestamp: t,
		Compact:   t.Format(compactLayout),
		Year:      t.Format("2006"),
	}
}
