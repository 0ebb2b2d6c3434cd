// Package scraper implements discovery: it finds champions on the wiki
// category page and extracts Original-skin voice-line audio from each
// champion's audio page.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"voxcrawl/internal/config"
	"voxcrawl/internal/services"
)

// Client wraps HTTP access to the wiki with a politeness delay between
// requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	delay      time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient builds a wiki client from the source configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.Source.RequestTimeout) * time.Second},
		baseURL:    cfg.Source.BaseURL,
		userAgent:  cfg.Source.UserAgent,
		delay:      time.Duration(cfg.Source.RequestDelay * float64(time.Second)),
	}
}

// BaseURL returns the configured wiki root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetDocument fetches a page and parses it. The politeness delay is applied
// before the request goes out.
func (c *Client) GetDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scraper", "fetch page", pageURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scraper", "fetch page", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "scraper", "fetch page",
			fmt.Sprintf("%s returned %s", pageURL, resp.Status), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scraper", "parse page", pageURL, err)
	}
	return doc, nil
}

func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.delay - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
