package digest

import (
	"fmt"
	"log"
	"strings"

	"github.com/mkurosawa/kaiji/internal/database"
	"github.com/mkurosawa/kaiji/internal/event"
)

const maxTLDRBullets = 5

// Composer assembles the stored digest for a period from the ranked,
// personalized feed. Assembly is deterministic: same ranked input,
// same markdown. Natural-language summarization is deliberately not
// done here; only titles, sources, and scores are laid out.
type Composer struct {
	db *database.DB
}

// NewComposer creates a new digest composer.
func NewComposer(db *database.DB) *Composer {
	return &Composer{db: db}
}

// ComposeDigest builds and stores the digest for a period from
// already-ranked events. Ranked order is preserved throughout.
func (c *Composer) ComposeDigest(periodID string, ranked []event.PersonalizedEvent) (*database.Digest, error) {
	if len(ranked) == 0 {
		log.Printf("No events for digest %s", periodID)
		return c.storeEmptyDigest(periodID)
	}

	tldr := buildTLDR(ranked)
	body := buildBody(ranked)

	memberCount := 0
	for _, e := range ranked {
		memberCount += len(e.Members)
	}

	if _, err := c.db.InsertDigest(periodID, tldr, body, memberCount, len(ranked)); err != nil {
		return nil, err
	}
	if _, err := c.db.InsertReport(periodID, memberCount, len(ranked)); err != nil {
		return nil, err
	}

	d, err := c.db.GetDigest(periodID)
	if err != nil {
		return nil, err
	}
	log.Printf("Digest composed for %s: %d clusters from %d reports", periodID, len(ranked), memberCount)
	return d, nil
}

func buildTLDR(ranked []event.PersonalizedEvent) string {
	n := len(ranked)
	if n > maxTLDRBullets {
		n = maxTLDRBullets
	}
	var bullets []string
	for _, e := range ranked[:n] {
		bullet := "- "
		if e.PrimaryTicker != "" {
			bullet += fmt.Sprintf("**%s** ", e.PrimaryTicker)
		}
		bullet += e.Title
		bullets = append(bullets, bullet)
	}
	return strings.Join(bullets, "\n")
}

func buildBody(ranked []event.PersonalizedEvent) string {
	// Group by primary ticker, first appearance in ranked order wins.
	grouped := make(map[string][]event.PersonalizedEvent)
	var order []string
	for _, e := range ranked {
		if _, ok := grouped[e.PrimaryTicker]; !ok {
			order = append(order, e.PrimaryTicker)
		}
		grouped[e.PrimaryTicker] = append(grouped[e.PrimaryTicker], e)
	}

	var sections []string
	for _, ticker := range order {
		sections = append(sections, buildSection(ticker, grouped[ticker]))
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func buildSection(ticker string, events []event.PersonalizedEvent) string {
	heading := "## " + ticker
	if ticker == "" {
		heading = "## その他"
	}

	var parts []string
	parts = append(parts, heading)
	for _, e := range events {
		var b strings.Builder
		fmt.Fprintf(&b, "### %s\n\n", e.Title)
		fmt.Fprintf(&b, "- 重要度: %s / 関連度: %d\n", e.PersonalImpact, e.Relevance)
		fmt.Fprintf(&b, "- カテゴリ: %s\n", e.Category)
		for _, m := range e.Members {
			fmt.Fprintf(&b, "- [%s](%s)\n", m.SourceName, m.URL)
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func (c *Composer) storeEmptyDigest(periodID string) (*database.Digest, error) {
	if _, err := c.db.InsertDigest(periodID, "- 本日の対象開示はありません。", "この期間に配信対象のイベントはありません。", 0, 0); err != nil {
		return nil, err
	}
	return c.db.GetDigest(periodID)
}
