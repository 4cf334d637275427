package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chansync/internal/models"
)

// Cookie is the persisted form of one session cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}

// Bundle is the credential set for one platform.
type Bundle struct {
	Source    models.Source `json:"source"`
	CreatedAt time.Time     `json:"created_at"`
	Cookies   []Cookie      `json:"cookies"`
	// TxtPath is the Netscape-format copy consumed by yt-dlp.
	TxtPath string `json:"-"`
}

// Fresh reports whether the bundle is younger than refresh at now.
func (b *Bundle) Fresh(now time.Time, refresh time.Duration) bool {
	return b != nil && now.Sub(b.CreatedAt) < refresh
}

// HTTPCookies converts the bundle for use with net/http.
func (b *Bundle) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, len(b.Cookies))
	for i, c := range b.Cookies {
		out[i] = &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
	}
	return out
}

// FromHTTP converts net/http cookies into a bundle created at now.
func FromHTTP(src models.Source, httpCookies []*http.Cookie, now time.Time) *Bundle {
	b := &Bundle{Source: src, CreatedAt: now, Cookies: make([]Cookie, 0, len(httpCookies))}
	for _, c := range httpCookies {
		b.Cookies = append(b.Cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		})
	}
	return b
}

const netscapeHeader = "# Netscape HTTP Cookie File\n# https://curl.haxx.se/rfc/cookie_spec.html\n# This is a generated file! Do not edit.\n\n"

// WriteNetscape writes the bundle in the cookies.txt format.
func (b *Bundle) WriteNetscape(w io.Writer, fallbackDomain string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(netscapeHeader); err != nil {
		return err
	}

	for _, c := range b.Cookies {
		domain := c.Domain
		if domain == "" {
			domain = fallbackDomain
		}
		if !strings.HasPrefix(domain, ".") && strings.Count(domain, ".") > 1 {
			domain = "." + domain
		}
		if c.HTTPOnly {
			domain = "#HttpOnly_" + domain
		}

		includeSub := "FALSE"
		if strings.Contains(domain, ".") && strings.HasPrefix(strings.TrimPrefix(domain, "#HttpOnly_"), ".") {
			includeSub = "TRUE"
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		expires := int64(0)
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}

		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, includeSub, path, secure, expires, c.Name, c.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}
