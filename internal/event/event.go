package event

import "time"

// Tier is the trust tier of a disclosure source.
// A is primary (regulatory filings), B is semi-primary (PR wires),
// C is news coverage. Lower letters are more trusted.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Rank returns the sort rank of a tier, A before B before C.
// Unknown tiers sort last.
func (t Tier) Rank() int {
	switch t {
	case TierA:
		return 0
	case TierB:
		return 1
	case TierC:
		return 2
	}
	return 3
}

// Category classifies what kind of disclosure an event describes.
type Category string

const (
	CategoryUpwardRevision Category = "upward-revision"
	CategoryCapitalPolicy  Category = "capital-policy"
	CategoryPartnership    Category = "partnership"
	CategoryIncident       Category = "incident"
	CategoryRegulation     Category = "regulation"
	CategoryEarnings       Category = "earnings"
	CategoryGuidance       Category = "guidance"
	CategoryNewProduct     Category = "new-product"
	CategoryOrderWin       Category = "order-win"
	CategoryOther          Category = "other"
)

// Categories lists all categories in classification precedence order.
// When keywords from several categories match a title, the earliest
// category in this list wins.
var Categories = []Category{
	CategoryUpwardRevision,
	CategoryCapitalPolicy,
	CategoryPartnership,
	CategoryIncident,
	CategoryRegulation,
	CategoryEarnings,
	CategoryGuidance,
	CategoryNewProduct,
	CategoryOrderWin,
	CategoryOther,
}

// Impact is the delivery impact level of a cluster, ordered
// weak < medium < strong.
type Impact string

const (
	ImpactWeak   Impact = "weak"
	ImpactMedium Impact = "medium"
	ImpactStrong Impact = "strong"
)

// Rank returns the ordinal rank of an impact level, weak lowest.
func (i Impact) Rank() int {
	switch i {
	case ImpactWeak:
		return 0
	case ImpactMedium:
		return 1
	case ImpactStrong:
		return 2
	}
	return -1
}

// Score maps an impact level to its numeric score used by both
// personalization and ranking.
func (i Impact) Score() int {
	switch i {
	case ImpactStrong:
		return 100
	case ImpactMedium:
		return 60
	case ImpactWeak:
		return 30
	}
	return 0
}

// RawRecord is a disclosure or press release as fetched from a feed,
// before any normalization. Immutable once created.
type RawRecord struct {
	ID          string
	SourceID    string
	SourceName  string
	Tier        Tier
	Title       string
	URL         string
	PublishedAt time.Time
	FetchedAt   time.Time
	Tickers     []string
	Excerpt     string
}

// NormalizedEvent is the canonical form of a RawRecord: cleaned title,
// normalized URL, validated tickers, classified category.
type NormalizedEvent struct {
	ID          string
	SourceID    string
	SourceName  string
	Tier        Tier
	Title       string
	URL         string
	PublishedAt time.Time
	Tickers     []string
	Category    Category
}

// ClusteredEvent aggregates normalized events believed to describe the
// same real-world disclosure. Built by the clusterer; a cooldown merge
// always produces a new ClusteredEvent, never mutates one in place.
type ClusteredEvent struct {
	ID            string
	Members       []NormalizedEvent
	PrimaryTicker string
	AllTickers    []string
	Title         string
	Category      Category
	Impact        Impact
	PublishedAt   time.Time
	Sources       []string
}

// MemberIDs returns the ids of all member events.
func (c ClusteredEvent) MemberIDs() []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return ids
}

// PersonalizedEvent is a ClusteredEvent scored against one user's
// profile. PersonalImpact is never below Impact on the ordinal scale.
type PersonalizedEvent struct {
	ClusteredEvent
	Relevance      int
	PersonalImpact Impact
	Reasons        []string
}

// UserProfile holds one user's watchlist, optional position sizes,
// category preference overrides, and read history. Single-writer:
// callers must not mark reads concurrently on the same profile.
type UserProfile struct {
	Watchlist       []string
	Positions       map[string]float64
	CategoryWeights map[Category]float64
	ReadIDs         map[string]bool
}

// NewUserProfile creates an empty profile watching the given tickers.
func NewUserProfile(watchlist ...string) *UserProfile {
	return &UserProfile{
		Watchlist:       watchlist,
		Positions:       make(map[string]float64),
		CategoryWeights: make(map[Category]float64),
		ReadIDs:         make(map[string]bool),
	}
}

// Watches reports whether the profile's watchlist contains the ticker.
func (p *UserProfile) Watches(ticker string) bool {
	for _, t := range p.Watchlist {
		if t == ticker {
			return true
		}
	}
	return false
}

// MarkRead records cluster or member event ids as read.
// The read set only grows until ResetRead.
func (p *UserProfile) MarkRead(ids ...string) {
	if p.ReadIDs == nil {
		p.ReadIDs = make(map[string]bool)
	}
	for _, id := range ids {
		p.ReadIDs[id] = true
	}
}

// ResetRead clears the read history (daily rollover).
func (p *UserProfile) ResetRead() {
	p.ReadIDs = make(map[string]bool)
}

// RankingConfig weights the composite ranking score. Weights are in
// [0,1] and need not sum to 1; MultiSourceBoost multiplies the score of
// clusters citing at least two distinct sources. Values are trusted
// tuning knobs, not validated input.
type RankingConfig struct {
	RelevanceWeight  float64
	RecencyWeight    float64
	ImpactWeight     float64
	MultiSourceBoost float64
}
