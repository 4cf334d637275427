package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chansync/internal/parsing"
)

// ErrInvalidURL is returned when an entry URL carries no scheme.
var ErrInvalidURL = errors.New("invalid url")

// Entry is one remote item known to a catalog.
type Entry struct {
	URL        string
	Title      string
	FilePath   string
	Date       time.Time
	UploadDate *Date
	Error      bool
}

// entryJSON is the persisted form of an Entry.
type entryJSON struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	UploadDate *Date  `json:"date_upload"`
	FilePath   string `json:"file_path"`
	Error      bool   `json:"error"`
}

// ValidateURL checks that a URL is scheme-bearing.
func ValidateURL(u string) error {
	if !strings.Contains(u, "http") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, u)
	}
	return nil
}

// NewEntry builds a validated entry discovered now.
//
// The file path is derived from the title, prefixed by the upload date when known.
func NewEntry(url, title string, uploadDate *Date) (Entry, error) {
	if err := ValidateURL(url); err != nil {
		return Entry{}, err
	}

	name := title
	if uploadDate != nil {
		name = uploadDate.String() + " " + title
	}

	return Entry{
		URL:        url,
		Title:      title,
		FilePath:   parsing.CleanFilename(name + ".mp3"),
		Date:       time.Now(),
		UploadDate: uploadDate,
	}, nil
}

// ParseUploadDate parses an upload date string, returning nil for empty or "NA" input.
func ParseUploadDate(s string) (*Date, error) {
	t, ok, err := parsing.ParseDate(s)
	if err != nil || !ok {
		return nil, err
	}
	d := DateOf(t)
	return &d, nil
}

// MarshalJSON writes the entry in catalog document form.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		URL:        e.URL,
		Title:      e.Title,
		Date:       e.Date.Format(time.RFC3339Nano),
		UploadDate: e.UploadDate,
		FilePath:   e.FilePath,
		Error:      e.Error,
	})
}

// entryInJSON is entryJSON as read back, with the upload date left raw.
type entryInJSON struct {
	entryJSON
	UploadDate *string `json:"date_upload"`
}

// UnmarshalJSON reads the catalog document form.
//
// A missing file path is derived from the title, as NewEntry does.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw entryInJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if err := ValidateURL(raw.URL); err != nil {
		return err
	}

	e.URL = raw.URL
	e.Title = raw.Title
	e.FilePath = raw.FilePath
	e.Error = raw.Error
	e.Date = time.Now()
	e.UploadDate = nil

	if e.FilePath == "" {
		e.FilePath = parsing.CleanFilename(raw.Title + ".mp3")
	}

	if raw.UploadDate != nil {
		d, err := ParseUploadDate(*raw.UploadDate)
		if err != nil {
			return fmt.Errorf("entry %q: invalid upload date %q: %w", raw.URL, *raw.UploadDate, err)
		}
		e.UploadDate = d
	}

	if raw.Date != "" {
		t, err := parsing.ParseTimestamp(raw.Date)
		if err != nil {
			return fmt.Errorf("entry %q: invalid date %q: %w", raw.URL, raw.Date, err)
		}
		e.Date = t
	}
	return nil
}

// Same reports whether two entries refer to the same remote item.
func (e Entry) Same(o Entry) bool {
	return e.URL == o.URL
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return fmt.Sprintf("%s (%s)", e.Title, e.URL)
}
