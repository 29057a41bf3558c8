package collect

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mkurosawa/kaiji/internal/event"
)

const maxPerFeed = 50

// FeedConfig is a single disclosure or press-release feed with the
// trust tier assigned to everything it publishes.
type FeedConfig struct {
	ID   string
	Name string
	URL  string
	Tier event.Tier
}

// FeedParser parses the configured RSS/Atom feeds into raw records.
type FeedParser struct {
	feeds []FeedConfig
}

// NewFeedParser creates a new FeedParser.
func NewFeedParser(feeds []FeedConfig) *FeedParser {
	return &FeedParser{feeds: feeds}
}

// ParseAll parses all configured feeds and returns records published
// within daysBack of now.
func (fp *FeedParser) ParseAll(daysBack int, now time.Time) []event.RawRecord {
	cutoff := now.AddDate(0, 0, -daysBack)
	var all []event.RawRecord

	parser := gofeed.NewParser()
	for _, fc := range fp.feeds {
		records, err := parseFeed(parser, fc, cutoff, now)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		all = append(all, records...)
		log.Printf("Parsed %d records from %s (within %d days)", len(records), fc.Name, daysBack)
	}

	return all
}

func parseFeed(parser *gofeed.Parser, fc FeedConfig, cutoff, now time.Time) ([]event.RawRecord, error) {
	feed, err := parser.ParseURL(fc.URL)
	if err != nil {
		return nil, err
	}

	var records []event.RawRecord
	for _, item := range feed.Items {
		if len(records) >= maxPerFeed {
			break
		}

		r := parseItem(item, fc, now)
		if r == nil {
			continue
		}
		if r.PublishedAt.Before(cutoff) {
			continue
		}
		records = append(records, *r)
	}

	return records, nil
}

func parseItem(item *gofeed.Item, fc FeedConfig, now time.Time) *event.RawRecord {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	published := now
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	var excerpt string
	if item.Description != "" {
		excerpt = stripHTML(item.Description)
	} else if item.Content != "" {
		excerpt = stripHTML(item.Content)
	}

	return &event.RawRecord{
		ID:          recordID(fc.ID, item.GUID, itemURL),
		SourceID:    fc.ID,
		SourceName:  fc.Name,
		Tier:        fc.Tier,
		Title:       title,
		URL:         itemURL,
		PublishedAt: published,
		FetchedAt:   now,
		Tickers:     declaredTickers(title + " " + excerpt),
		Excerpt:     excerpt,
	}
}

// recordID derives a stable record id from the source and the item's
// GUID (or URL when the feed has no GUID), so re-fetching the same
// feed yields the same ids cycle after cycle.
func recordID(sourceID, guid, itemURL string) string {
	key := guid
	if key == "" {
		key = itemURL
	}
	h := sha256.Sum256([]byte(sourceID + "|" + key))
	return hex.EncodeToString(h[:])[:16]
}

// Securities codes as disclosure wires embed them: either bracketed
// after the company name or labeled explicitly.
var (
	bracketCodeRe = regexp.MustCompile(`[（(](\d{4})[）)]`)
	labeledCodeRe = regexp.MustCompile(`(?:証券コード|銘柄コード|コード番号)[：:]?\s*(\d{4})`)
)

// declaredTickers extracts securities codes the wire itself declares
// in the title or excerpt. Validation happens in the normalizer; this
// just collects candidates.
func declaredTickers(text string) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, re := range []*regexp.Regexp{labeledCodeRe, bracketCodeRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				codes = append(codes, m[1])
			}
		}
	}
	return codes
}

func stripHTML(text string) string {
	// Simple HTML tag removal
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	// Decode common entities
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	// Normalize whitespace
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
