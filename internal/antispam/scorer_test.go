package antispam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cegradar/cegradar/internal/models"
)

func TestScore_CasinoKeywordTriggersAd(t *testing.T) {
	rules := DefaultRuleSet()
	raw := models.RawNews{
		Title: "Большой бонус на депозит в нашем казино",
		Text:  "Только сегодня успей купить доступ к лучшим ставкам!",
	}

	result := Score(raw, 5, rules)
	assert.True(t, result.IsAd)
	assert.Greater(t, result.Score, rules.Threshold)
	assert.Contains(t, result.Reasons, "keyword:casino_keywords")
}

func TestScore_TrustedSourceSkipped(t *testing.T) {
	rules := DefaultRuleSet()
	raw := models.RawNews{Title: "казино ставки бонус на депозит"}

	result := Score(raw, 9, rules)
	assert.False(t, result.IsAd)
	assert.Zero(t, result.Score)
}

func TestScore_WhitelistedDomainReducesScore(t *testing.T) {
	rules := DefaultRuleSet()
	raw := models.RawNews{
		Title: "Газпром отчитался о прибыли",
		Text:  "Подробнее на https://www.interfax.ru/business/123456",
	}

	result := Score(raw, 5, rules)
	assert.False(t, result.IsAd)
	assert.Less(t, result.Score, 0.0)
}

func TestScore_TrustedThresholdIsHigher(t *testing.T) {
	rules := DefaultRuleSet()
	raw := models.RawNews{Text: "скидка промокод распродажа акция"}

	lowTrust := Score(raw, 5, rules)
	highTrust := Score(raw, 7, rules)

	assert.Equal(t, lowTrust.Score, highTrust.Score)
	assert.True(t, lowTrust.IsAd || !highTrust.IsAd)
}

func TestScore_ManyURLsStructuralRule(t *testing.T) {
	rules := DefaultRuleSet()
	raw := models.RawNews{
		Title: "Ссылки",
		Text: "https://a.example.com https://b.example.com " +
			"https://c.example.com https://d.example.com",
	}

	result := Score(raw, 5, rules)
	assert.Contains(t, result.Reasons, "structural:many_urls")
}
