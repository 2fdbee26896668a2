// Package antispam scores ingested news items for advertising/spam content
// before they enter the enrichment pipeline (C2, §4.2).
package antispam

// Rule is a single scoring rule: it fires (adds Weight to the running
// score) when any of its Keywords appear, or — for url_rules — when
// Pattern matches. Disabled rules are kept in the set but never fire, so
// an operator can turn one off without deleting its tuning history.
type Rule struct {
	Name    string   `yaml:"name"`
	Keywords []string `yaml:"keywords,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`
	Weight  float64  `yaml:"weight"`
	Enabled bool     `yaml:"enabled"`
}

// RuleSet is the full tunable configuration the scorer evaluates against.
type RuleSet struct {
	Threshold        float64 `yaml:"threshold"`
	TrustedThreshold float64 `yaml:"trusted_threshold"`

	HashtagRules    []Rule `yaml:"hashtag_rules"`
	KeywordRules    []Rule `yaml:"keyword_rules"`
	URLRules        []Rule `yaml:"url_rules"`
	StructuralRules []Rule `yaml:"structural_rules"`

	WhitelistedDomains  []string `yaml:"whitelisted_domains"`
	BlacklistedChannels []string `yaml:"blacklisted_channels"`
	TrustedChannels     []string `yaml:"trusted_channels"`
}

// structural rule names looked up by weight rather than by keyword match.
const (
	ruleManyURLs       = "many_urls"
	ruleForwardedAd    = "forwarded_ad"
	rulePollOrGame     = "poll_or_game"
	ruleShortWithLinks = "short_with_links"
)

// DefaultRuleSet mirrors the thresholds and rule weights the Telegram
// ingestion used before this rework; an operator overrides it via
// AntispamConfig.RulesFile.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Threshold:        5.0,
		TrustedThreshold: 8.0,
		HashtagRules: []Rule{
			{Name: "ad_hashtags", Keywords: []string{"#реклама", "#ad", "#promo", "#промо", "#спонсор"}, Weight: 3.0, Enabled: true},
			{Name: "partner_hashtags", Keywords: []string{"#партнер", "#partner", "#collab"}, Weight: 2.0, Enabled: true},
		},
		KeywordRules: []Rule{
			{Name: "casino_keywords", Keywords: []string{"казино", "ставки", "букмекер", "1xbet", "бонус на депозит"}, Weight: 5.0, Enabled: true},
			{Name: "discount_keywords", Keywords: []string{"скидка", "промокод", "распродажа", "акция", "выгодное предложение"}, Weight: 2.0, Enabled: true},
			{Name: "urgency_keywords", Keywords: []string{"только сегодня", "осталось мест", "успей купить", "последний день"}, Weight: 1.5, Enabled: true},
			{Name: "crypto_scam", Keywords: []string{"криптовалюта заработок", "пассивный доход", "финансовая свобода"}, Weight: 3.0, Enabled: true},
		},
		URLRules: []Rule{
			{Name: "utm_params", Pattern: `[?&](utm_|ref=|partner=)`, Weight: 2.0, Enabled: true},
			{Name: "shorteners", Pattern: `(bit\.ly|tinyurl|clck\.ru|vk\.cc)`, Weight: 1.5, Enabled: true},
			{Name: "suspicious_tld", Pattern: `\.(tk|ml|ga|cf)`, Weight: 2.0, Enabled: true},
		},
		StructuralRules: []Rule{
			{Name: ruleManyURLs, Weight: 2.0, Enabled: true},
			{Name: ruleForwardedAd, Weight: 3.0, Enabled: true},
			{Name: rulePollOrGame, Weight: 2.0, Enabled: true},
			{Name: ruleShortWithLinks, Weight: 1.5, Enabled: true},
		},
		WhitelistedDomains: []string{
			"gov.ru", "cbr.ru", "moex.com", "e-disclosure.ru", "interfax.ru",
			"rbc.ru", "vedomosti.ru", "kommersant.ru", "tass.ru", "ria.ru",
		},
	}
}

func (r *RuleSet) structuralWeight(name string) float64 {
	for _, rule := range r.StructuralRules {
		if rule.Name == name && rule.Enabled {
			return rule.Weight
		}
	}
	return 0
}

// ThresholdFor returns the score at or above which an item is marked as
// advertising, using the higher trusted_threshold for sources with
// TrustLevel >= 7 (§4.2: trusted sources get more benefit of the doubt).
func (r *RuleSet) ThresholdFor(trustLevel int) float64 {
	if trustLevel >= 7 {
		return r.TrustedThreshold
	}
	return r.Threshold
}
