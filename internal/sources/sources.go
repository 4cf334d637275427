// Package sources holds the per-platform quirks of every supported host.
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"chansync/internal/models"

	"golang.org/x/net/publicsuffix"
)

// DefaultFormat selects the best available audio track.
const DefaultFormat = "bestaudio/worst"

// Variant describes how one platform is scanned and downloaded.
type Variant struct {
	Source   models.Source
	Homepage string
	// HandleSigil is prepended to bare channel handles.
	HandleSigil string
	// ChannelURLs are probed in order; a single template needs no probe.
	ChannelURLs []string
	// ScanArgs are extra listing arguments for anti-bot measures.
	ScanArgs []string
	// Format is the yt-dlp format selector for media downloads.
	Format string
	// DownloadCookies passes the credential bundle to media downloads, not only scans.
	DownloadCookies bool
}

var variants = map[models.Source]Variant{
	models.SourceYouTube: {
		Source:          models.SourceYouTube,
		Homepage:        "https://www.youtube.com",
		HandleSigil:     "@",
		ChannelURLs:     []string{"https://www.youtube.com/%s/videos"},
		Format:          DefaultFormat,
		DownloadCookies: true,
	},
	models.SourceRumble: {
		Source:      models.SourceRumble,
		Homepage:    "https://rumble.com",
		ChannelURLs: []string{"https://rumble.com/c/%s", "https://rumble.com/user/%s"},
		ScanArgs:    []string{"--impersonate", "chrome-120", "--legacy-server-connect"},
		Format:      DefaultFormat,
	},
	models.SourceBrighteon: {
		Source:      models.SourceBrighteon,
		Homepage:    "https://www.brighteon.com",
		ChannelURLs: []string{"https://www.brighteon.com/channels/%s"},
		Format:      DefaultFormat,
	},
}

// Lookup returns the variant for a source.
func Lookup(src models.Source) (Variant, error) {
	v, ok := variants[src]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", models.ErrUnknownSource, src)
	}
	return v, nil
}

// MustLookup returns the variant for a source known to be valid.
func MustLookup(src models.Source) Variant {
	v, err := Lookup(src)
	if err != nil {
		panic(err)
	}
	return v
}

// NormalizeID applies the platform's handle convention.
func (v Variant) NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if v.HandleSigil == "" || strings.Contains(id, "http") || strings.HasPrefix(id, v.HandleSigil) {
		return id
	}
	return v.HandleSigil + id
}

// ChannelURL expands a channel identifier into its listing URL.
//
// Identifiers that already carry a scheme are returned unchanged. Platforms
// with several URL shapes are probed in order with p.
func (v Variant) ChannelURL(ctx context.Context, p Prober, id string) (string, error) {
	id = v.NormalizeID(id)
	if strings.Contains(id, "http") {
		return id, nil
	}
	if len(v.ChannelURLs) == 1 {
		return fmt.Sprintf(v.ChannelURLs[0], id), nil
	}
	if p == nil {
		return "", fmt.Errorf("%s channel %q needs a prober to resolve", v.Source, id)
	}

	var lastErr error
	for _, tmpl := range v.ChannelURLs {
		candidate := fmt.Sprintf(tmpl, id)
		if err := p.Probe(ctx, candidate); err != nil {
			lastErr = err
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("could not find %s channel or user %q: %w", v.Source, id, lastErr)
}

// Domain returns the registrable domain of the platform homepage.
func (v Variant) Domain() string {
	return BaseDomain(v.Homepage)
}

// BaseDomain extracts the eTLD+1 of a URL or host.
//
// e.g., https://www.youtube.com -> youtube.com.
func BaseDomain(raw string) string {
	host := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return strings.ToLower(d)
	}
	return strings.ToLower(host)
}
