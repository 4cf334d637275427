package sources

import (
	"context"
	"fmt"
	"time"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"

	"github.com/gocolly/colly"
)

// Prober checks whether a candidate page exists.
type Prober interface {
	Probe(ctx context.Context, pageURL string) error
}

// CollyProber probes pages with a colly collector.
type CollyProber struct {
	Timeout   time.Duration
	UserAgent string
}

// NewCollyProber returns a prober with default timeouts.
func NewCollyProber() *CollyProber {
	return &CollyProber{Timeout: consts.ProbeTimeout}
}

// Probe implements Prober. Any non-2xx response is an error.
func (p *CollyProber) Probe(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	if p.Timeout > 0 {
		c.SetRequestTimeout(p.Timeout)
	}
	if p.UserAgent != "" {
		c.UserAgent = p.UserAgent
	}

	var status int
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		logger.Pl.D(2, "Probe of %q failed (status %d): %v", pageURL, status, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return fmt.Errorf("probe %q: %w", pageURL, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("probe %q: unexpected status %d", pageURL, status)
	}
	return nil
}
