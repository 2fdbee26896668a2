package antispam

import (
	"regexp"
	"strings"

	"github.com/cegradar/cegradar/internal/models"
)

var (
	hashtagPattern = regexp.MustCompile(`#[\p{L}\w]+`)
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
)

// ScoreResult is the outcome of running a RawNews item through a RuleSet.
type ScoreResult struct {
	IsAd    bool
	Score   float64
	Reasons []string
}

// Score evaluates a RawNews item against rules, using trustLevel to pick
// the applicable threshold (§4.2). A trustLevel of 9 or above skips
// scoring entirely — a fully trusted wire source is never flagged.
func Score(raw models.RawNews, trustLevel int, rules *RuleSet) ScoreResult {
	if trustLevel >= 9 {
		return ScoreResult{}
	}

	var score float64
	var reasons []string

	text := raw.Title + "\n" + raw.Text
	textLower := strings.ToLower(text)

	for _, hashtag := range hashtagPattern.FindAllString(text, -1) {
		hashtagLower := strings.ToLower(hashtag)
		for _, rule := range rules.HashtagRules {
			if !rule.Enabled {
				continue
			}
			if containsAny(hashtagLower, rule.Keywords) {
				score += rule.Weight
				reasons = append(reasons, "hashtag:"+rule.Name)
			}
		}
	}

	for _, rule := range rules.KeywordRules {
		if !rule.Enabled {
			continue
		}
		if containsAny(textLower, rule.Keywords) {
			score += rule.Weight
			reasons = append(reasons, "keyword:"+rule.Name)
		}
	}

	urls := extractURLs(raw.Text, raw.HTML)
	if len(urls) > 0 {
		for _, url := range urls {
			for _, rule := range rules.URLRules {
				if !rule.Enabled || rule.Pattern == "" {
					continue
				}
				if matched, _ := regexp.MatchString(rule.Pattern, url); matched {
					score += rule.Weight
					reasons = append(reasons, "url_pattern:"+rule.Name)
				}
			}
			if containsAny(url, rules.WhitelistedDomains) {
				score -= 2.0
			}
		}

		if len(urls) > 3 {
			score += rules.structuralWeight(ruleManyURLs)
			reasons = append(reasons, "structural:"+ruleManyURLs)
		}
	}

	if len(text) < 50 && len(urls) > 0 {
		score += rules.structuralWeight(ruleShortWithLinks)
		reasons = append(reasons, "structural:"+ruleShortWithLinks)
	}

	threshold := rules.ThresholdFor(trustLevel)
	return ScoreResult{
		IsAd:    score >= threshold,
		Score:   score,
		Reasons: reasons,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func extractURLs(text, html string) []string {
	seen := map[string]struct{}{}
	var urls []string
	for _, u := range urlPattern.FindAllString(text+" "+html, -1) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}
