package scraper

import (
	"context"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"voxcrawl/internal/catalog"
	"voxcrawl/internal/services"
	"voxcrawl/internal/textutil"
)

const categoryPath = "/en-us/Category:LoL_Champion_audio"

var audioHrefPattern = regexp.MustCompile(`^/en-us/([^/]+)/Audio$`)

// ChampionList scrapes the wiki category page for champion audio pages.
// Returns every champion with its audio page URL, or ErrNothingFound when
// the page yields no matching links.
func (c *Client) ChampionList(ctx context.Context) ([]catalog.Champion, error) {
	pageURL := c.baseURL + categoryPath
	doc, err := c.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var champions []catalog.Champion
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		match := audioHrefPattern.FindStringSubmatch(href)
		if match == nil {
			return
		}
		name, err := url.PathUnescape(match[1])
		if err != nil {
			name = match[1]
		}
		id := textutil.Slug(name)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		champions = append(champions, catalog.Champion{
			ID:       id,
			Name:     name,
			AudioURL: c.baseURL + href,
		})
	})

	if len(champions) == 0 {
		return nil, services.Wrap(services.ErrNothingFound, "scraper", "champion list",
			"category page has no champion audio links", nil)
	}
	return champions, nil
}

// AudioPageURL constructs the audio page location for a champion name, used
// when the catalog holds no cached URL.
func (c *Client) AudioPageURL(name string) string {
	return c.baseURL + "/en-us/" + url.PathEscape(name) + "/Audio"
}
