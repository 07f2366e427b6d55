// internal/scrape/patterns.go
package scrape

import (
	"regexp"
	"strings"
	"time"
)

// Tracking number shapes, checked in priority order. The labeled line a
// warehouse operator pastes ("Kargo Takip No: ...") always wins over bare
// pattern matches elsewhere in the note.
var (
	labeledLineRe = regexp.MustCompile(`(?i)Kargo\s*Takip\s*No\s*[:\-]\s*([^\s\r\n]+)`)
	upsTokenRe    = regexp.MustCompile(`1[Zz][0-9A-Za-z]+`)
	upsRe         = regexp.MustCompile(`1[Zz][0-9A-Za-z]{14,20}`)
	arasRe        = regexp.MustCompile(`[A-Z]{2}\d{9}`)
	yurticiRe     = regexp.MustCompile(`\d{13}`)
	mngRe         = regexp.MustCompile(`MNG\d{10}`)
)

// findTrackingNumber extracts the best tracking-number candidate from free
// text, or "" when nothing matches.
func findTrackingNumber(text string) string {
	if m := labeledLineRe.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if token := upsTokenRe.FindString(candidate); token != "" {
			return token
		}
		if candidate != "" {
			return candidate
		}
	}

	// Notes often quote older shipments first, so the last UPS match is the
	// one the note is about.
	if matches := upsRe.FindAllString(text, -1); len(matches) > 0 {
		return matches[len(matches)-1]
	}
	if m := arasRe.FindString(text); m != "" {
		return m
	}
	if m := yurticiRe.FindString(text); m != "" {
		return m
	}
	return mngRe.FindString(text)
}

// note is one entry of a request's conversation thread as read from the DOM.
type note struct {
	Text string `json:"text"`
	At   string `json:"at"` // raw data-datetime attribute, may be empty
}

// noteTimeLayouts are the formats the portal has been seen emitting.
var noteTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04",
}

func parseNoteTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range noteTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// bestTrackingNumber picks the tracking number of the newest note that
// contains one. Newest means the latest parseable timestamp; when no
// candidate note carries a usable timestamp, DOM order decides and the last
// note wins.
func bestTrackingNumber(notes []note) string {
	bestIdx := -1
	var bestTime time.Time
	bestTimed := false
	result := ""

	for i, n := range notes {
		number := findTrackingNumber(n.Text)
		if number == "" {
			continue
		}
		at, hasTime := parseNoteTime(n.At)
		switch {
		case hasTime && (!bestTimed || at.After(bestTime)):
			bestTime, bestTimed, bestIdx, result = at, true, i, number
		case !hasTime && !bestTimed && i >= bestIdx:
			bestIdx, result = i, number
		}
	}
	return result
}
