package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/textutil"
)

// Extractor pulls voice-line sub-items out of a champion's audio page. The
// wiki markup has shifted over time, so the heuristic is pluggable; Handler
// uses PageScanExtractor unless told otherwise.
type Extractor interface {
	Extract(doc *goquery.Document, championName string) []checkpoint.SubItem
}

// PageScanExtractor scans every <li> on the page and keeps Original-skin
// dialogue audio:
//   - the list entry must contain quotation marks (dialogue, not SFX)
//   - the filename must start with the champion id (no announcer or
//     cross-champion files)
//   - champions with skin variants contribute only audio whose adjacent
//     play button carries data-skin="Original"
//   - filenames naming a non-Original skin are dropped
type PageScanExtractor struct {
	// BaseURL resolves relative audio sources.
	BaseURL string
}

// Extract implements Extractor.
func (e PageScanExtractor) Extract(doc *goquery.Document, championName string) []checkpoint.SubItem {
	championID := textutil.Slug(championName)

	// Collect every non-Original skin name on the page up front so each
	// list entry filters against the full set.
	skinSet := make(map[string]struct{})
	doc.Find("span[data-skin]").Each(func(_ int, sel *goquery.Selection) {
		if skin, _ := sel.Attr("data-skin"); skin != "" && skin != "Original" {
			skinSet[skin] = struct{}{}
		}
	})
	otherSkins := make([]string, 0, len(skinSet))
	for skin := range skinSet {
		otherSkins = append(otherSkins, skin)
	}

	seen := make(map[string]struct{})
	var subItems []checkpoint.SubItem
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		for _, sub := range e.extractFromEntry(li, championID, otherSkins) {
			if _, dup := seen[sub.Filename]; dup {
				continue
			}
			seen[sub.Filename] = struct{}{}
			subItems = append(subItems, sub)
		}
	})
	return subItems
}

func (e PageScanExtractor) extractFromEntry(li *goquery.Selection, championID string, otherSkins []string) []checkpoint.SubItem {
	text := li.Text()
	if !strings.ContainsAny(text, `"'`) {
		return nil
	}

	transcript := strings.TrimSpace(li.Find("i").First().Text())

	hasSkins := li.Find("span[data-skin]").Length() > 0
	var subItems []checkpoint.SubItem
	if !hasSkins {
		// No skin variants: every audio element in the entry qualifies.
		li.Find("audio").Each(func(_ int, audio *goquery.Selection) {
			if sub, ok := e.subItemFromAudio(audio, championID, otherSkins, transcript); ok {
				subItems = append(subItems, sub)
			}
		})
		return subItems
	}

	// Skin variants present: keep only audio whose following play button is
	// the Original skin's.
	li.Find("span.inline-audio").Each(func(_ int, inline *goquery.Selection) {
		button := inline.NextAllFiltered("span.skin-play-button").First()
		if skin, _ := button.Attr("data-skin"); skin != "Original" {
			return
		}
		if sub, ok := e.subItemFromAudio(inline.Find("audio").First(), championID, otherSkins, transcript); ok {
			subItems = append(subItems, sub)
		}
	})
	return subItems
}

func (e PageScanExtractor) subItemFromAudio(audio *goquery.Selection, championID string, otherSkins []string, transcript string) (checkpoint.SubItem, bool) {
	src, ok := audio.Find("source").First().Attr("src")
	if !ok || src == "" {
		return checkpoint.SubItem{}, false
	}

	filename := filenameFromSource(src)
	lower := strings.ToLower(filename)
	if !strings.HasPrefix(lower, championID) {
		return checkpoint.SubItem{}, false
	}
	if namesOtherSkin(lower[len(championID):], otherSkins) {
		return checkpoint.SubItem{}, false
	}

	return checkpoint.SubItem{
		URL:        e.resolveURL(src),
		Filename:   filename,
		Transcript: transcript,
	}, true
}

func filenameFromSource(src string) string {
	name := src
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// namesOtherSkin reports whether the filename suffix mentions any
// non-Original skin. The Original marker is stripped first so a skin name
// containing "original" cannot false-positive.
func namesOtherSkin(suffix string, otherSkins []string) bool {
	cleaned := strings.ReplaceAll(suffix, "_original_", "_")
	cleaned = strings.ReplaceAll(cleaned, "original", "")
	cleaned = strings.NewReplacer("_", "", "-", "").Replace(cleaned)
	for _, skin := range otherSkins {
		normalized := strings.NewReplacer(" ", "", "-", "").Replace(strings.ToLower(skin))
		if normalized != "" && strings.Contains(cleaned, normalized) {
			return true
		}
	}
	return false
}

func (e PageScanExtractor) resolveURL(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	base := strings.TrimRight(e.BaseURL, "/")
	if !strings.HasPrefix(src, "/") {
		src = "/" + src
	}
	return base + src
}
