package rank

import "github.com/mkurosawa/kaiji/internal/event"

// Named presets layered over the default weighting. The same event set
// is presented differently per delivery context: a push-worthy live
// feed favors freshness, an end-of-period digest favors personal
// relevance, and an alert-only view favors raw impact.

// DefaultConfig is the baseline weighting.
func DefaultConfig() event.RankingConfig {
	return event.RankingConfig{
		RelevanceWeight:  0.5,
		RecencyWeight:    0.3,
		ImpactWeight:     0.2,
		MultiSourceBoost: 1.15,
	}
}

// MorningDigestConfig over-weights relevance and under-weights recency
// for the scheduled digest, where everything is hours old anyway.
func MorningDigestConfig() event.RankingConfig {
	cfg := DefaultConfig()
	cfg.RelevanceWeight = 0.7
	cfg.RecencyWeight = 0.1
	return cfg
}

// LiveFeedConfig over-weights recency for the continuously refreshed
// feed view.
func LiveFeedConfig() event.RankingConfig {
	cfg := DefaultConfig()
	cfg.RelevanceWeight = 0.3
	cfg.RecencyWeight = 0.6
	cfg.ImpactWeight = 0.1
	return cfg
}

// ImpactFirstConfig over-weights impact and raises the multi-source
// boost for alert-only contexts.
func ImpactFirstConfig() event.RankingConfig {
	cfg := DefaultConfig()
	cfg.RelevanceWeight = 0.2
	cfg.RecencyWeight = 0.2
	cfg.ImpactWeight = 0.6
	cfg.MultiSourceBoost = 1.3
	return cfg
}

// Preset resolves a preset by name, falling back to the default.
func Preset(name string) event.RankingConfig {
	switch name {
	case "morning-digest":
		return MorningDigestConfig()
	case "live-feed":
		return LiveFeedConfig()
	case "impact-first":
		return ImpactFirstConfig()
	default:
		return DefaultConfig()
	}
}
