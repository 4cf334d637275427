package scanner

import (
	"strings"

	"chansync/internal/domain/logger"
	"chansync/internal/models"
)

// listing consumes flat-playlist output, which alternates title and URL lines.
type listing struct {
	ceiling         int
	stopOnDuplicate bool
	known           map[string]struct{}

	title   string
	pending bool
	seen    map[string]struct{}

	entries      []models.Entry
	errors       int
	rateLimited  bool
	stoppedEarly bool
	aborted      bool
}

func newListing(ceiling int, stopOnDuplicate bool, known map[string]struct{}) *listing {
	return &listing{
		ceiling:         ceiling,
		stopOnDuplicate: stopOnDuplicate,
		known:           known,
		seen:            make(map[string]struct{}),
	}
}

func isRateLimit(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "try again later") || strings.Contains(lower, "http error 429")
}

// feed consumes one output line and reports whether the scan should stop.
func (l *listing) feed(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if isRateLimit(line) {
		logger.Pl.W("Rate limited while scanning: %s", line)
		l.rateLimited = true
		return true
	}
	if strings.HasPrefix(line, "WARNING:") {
		logger.Pl.D(2, "yt-dlp: %s", line)
		return false
	}
	if strings.HasPrefix(line, "ERROR:") {
		logger.Pl.W("yt-dlp: %s", line)
		return l.fail()
	}

	if !l.pending {
		l.title = line
		l.pending = true
		return false
	}

	e, err := models.NewEntry(line, l.title, nil)
	if err != nil {
		// The title is kept so a following URL line can still pair with it.
		logger.Pl.W("Skipping malformed listing line %q: %v", line, err)
		return l.fail()
	}
	l.pending = false

	if _, dup := l.known[e.URL]; dup && l.stopOnDuplicate {
		logger.Pl.I("Reached already known item %s, stopping scan", e.URL)
		l.stoppedEarly = true
		return true
	}
	if _, dup := l.seen[e.URL]; dup {
		return false
	}
	l.seen[e.URL] = struct{}{}
	l.entries = append(l.entries, e)
	return false
}

func (l *listing) fail() bool {
	l.errors++
	if l.errors >= l.ceiling {
		logger.Pl.W("Too many errors (%d) while scanning, aborting", l.errors)
		l.aborted = true
		return true
	}
	return false
}
