// Package parsing holds string parsing helpers shared across the program.
package parsing

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// HyphenateYyyyMmDd hyphenates compact yyyymmdd date values.
func HyphenateYyyyMmDd(d string) string {
	d = strings.ReplaceAll(d, " ", "")
	d = strings.ReplaceAll(d, "-", "")
	if len(d) < 8 {
		return d
	}

	return d[0:4] + "-" + d[4:6] + "-" + d[6:8]
}

// ParseDate parses an upload date in YYYY-MM-DD, YYYYMMDD or full timestamp form.
//
// Empty input and yt-dlp's "NA" placeholder report ok=false without error.
func ParseDate(s string) (t time.Time, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "none") {
		return time.Time{}, false, nil
	}

	if isCompactDate(s) {
		s = HyphenateYyyyMmDd(s)
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}

	t, err = dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unable to parse date %q: %w", s, err)
	}
	return t, true, nil
}

// ParseTimestamp parses a discovery timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := dateparse.ParseLocal(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isCompactDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
