package models

import (
	"errors"
	"fmt"
	"strings"
)

// Source identifies a hosting platform.
type Source string

const (
	SourceYouTube   Source = "youtube"
	SourceRumble    Source = "rumble"
	SourceBrighteon Source = "brighteon"
)

// ErrUnknownSource is returned for platform names outside the supported set.
var ErrUnknownSource = errors.New("unknown source")

// AllSources lists every supported platform.
var AllSources = []Source{SourceYouTube, SourceRumble, SourceBrighteon}

// ParseSource validates a platform name.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSources {
		if src == known {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// String implements fmt.Stringer.
func (s Source) String() string {
	return string(s)
}
