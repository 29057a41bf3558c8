package normalize

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/mkurosawa/kaiji/internal/event"
)

// maxTitleLen caps cleaned titles. This is looser than the
// notification display limit, which the notifier enforces separately.
const maxTitleLen = 200

// Normalizer turns raw feed records into canonical events. Its lookup
// tables are injected so tests and config can substitute fixtures; it
// performs no I/O and keeps no per-call state.
type Normalizer struct {
	companies map[string]string
	keywords  map[event.Category][]string
}

// New creates a Normalizer. Nil tables fall back to the package
// defaults.
func New(companies map[string]string, keywords map[event.Category][]string) *Normalizer {
	if companies == nil {
		companies = DefaultCompanies
	}
	if keywords == nil {
		keywords = DefaultKeywords
	}
	return &Normalizer{companies: companies, keywords: keywords}
}

// Normalize converts a single RawRecord into a NormalizedEvent.
// Malformed pieces degrade to safe defaults; it never fails a record.
func (n *Normalizer) Normalize(r event.RawRecord) event.NormalizedEvent {
	return event.NormalizedEvent{
		ID:          r.ID,
		SourceID:    r.SourceID,
		SourceName:  r.SourceName,
		Tier:        r.Tier,
		Title:       CleanTitle(r.Title),
		URL:         NormalizeURL(r.URL),
		PublishedAt: r.PublishedAt,
		Tickers:     n.ResolveTickers(r),
		Category:    n.Classify(r.Title + " " + r.Excerpt),
	}
}

// NormalizeAll maps Normalize over a batch. Records are independent;
// there is no cross-record state.
func (n *Normalizer) NormalizeAll(records []event.RawRecord) []event.NormalizedEvent {
	events := make([]event.NormalizedEvent, len(records))
	for i, r := range records {
		events[i] = n.Normalize(r)
	}
	return events
}

// CleanTitle trims, collapses whitespace runs (including line breaks
// and tabs) to single spaces, drops control characters, and caps the
// result at maxTitleLen runes.
func CleanTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(cleaned)
	if len(runes) > maxTitleLen {
		cleaned = string(runes[:maxTitleLen])
	}
	return cleaned
}

// NormalizeURL strips tracking query parameters and the fragment and
// upgrades http to https. Unparseable input is returned unchanged.
// Idempotent: normalizing an already-normalized URL is a no-op.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}

	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if trackingParams[key] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ValidTicker validates a securities code: strip non-digit characters,
// require exactly four digits, require a value in [1000, 9999].
// Returns the cleaned code and whether it is valid.
func ValidTicker(code string) (string, bool) {
	var digits strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != 4 {
		return "", false
	}
	if d[0] == '0' {
		// Values below 1000 always start with a leading zero here.
		return "", false
	}
	return d, true
}

// ResolveTickers combines the record's declared codes with codes found
// by scanning title and excerpt for known company names. Invalid codes
// are dropped, not passed through; the result is deduplicated and
// sorted ascending. An empty result is legal — ticker-relevance
// filtering happens downstream.
func (n *Normalizer) ResolveTickers(r event.RawRecord) []string {
	seen := make(map[string]bool)
	for _, code := range r.Tickers {
		if c, ok := ValidTicker(code); ok {
			seen[c] = true
		}
	}

	text := r.Title + " " + r.Excerpt
	for name, code := range n.companies {
		if !strings.Contains(text, name) {
			continue
		}
		if c, ok := ValidTicker(code); ok {
			seen[c] = true
		}
	}

	tickers := make([]string, 0, len(seen))
	for c := range seen {
		tickers = append(tickers, c)
	}
	sort.Strings(tickers)
	return tickers
}

// Classify assigns an event category by case-insensitive keyword match
// against the given text. Categories are tried in the order of
// event.Categories and the first match wins; ties never depend on map
// iteration order. No match yields CategoryOther.
func (n *Normalizer) Classify(text string) event.Category {
	lower := strings.ToLower(text)
	for _, cat := range event.Categories {
		for _, kw := range n.keywords[cat] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return cat
			}
		}
	}
	return event.CategoryOther
}
