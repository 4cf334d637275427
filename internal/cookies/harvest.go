package cookies

import (
	"context"
	"fmt"
	"net/http"

	"chansync/internal/domain/logger"
	"chansync/internal/sources"

	"github.com/browserutils/kooky"
	// Use all browsers for Kooky:
	_ "github.com/browserutils/kooky/browser/all"
)

// Harvester obtains fresh session cookies for a platform homepage.
type Harvester interface {
	Harvest(ctx context.Context, homepage string) ([]*http.Cookie, error)
}

// KookyHarvester reads cookies from the local browsers' cookie stores.
type KookyHarvester struct{}

// Harvest implements Harvester.
func (KookyHarvester) Harvest(ctx context.Context, homepage string) ([]*http.Cookie, error) {
	domain := sources.BaseDomain(homepage)

	kookyCookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil && len(kookyCookies) == 0 {
		return nil, fmt.Errorf("failed reading browser cookies for %s: %w", domain, err)
	}
	if err != nil {
		logger.Pl.D(2, "Some cookie stores could not be read for %s: %v", domain, err)
	}
	if len(kookyCookies) == 0 {
		return nil, fmt.Errorf("no browser cookies found for %s", domain)
	}

	logger.Pl.I("Found %d cookies for %s", len(kookyCookies), domain)
	return convertToHTTPCookies(kookyCookies), nil
}

// convertToHTTPCookies converts kooky cookies to http.Cookie format.
func convertToHTTPCookies(kookyCookies []*kooky.Cookie) []*http.Cookie {
	httpCookies := make([]*http.Cookie, len(kookyCookies))
	for i, c := range kookyCookies {
		httpCookies[i] = &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
	return httpCookies
}
