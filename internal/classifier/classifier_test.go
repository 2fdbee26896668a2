package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cegradar/cegradar/internal/models"
)

func TestClassify_SingleIssuerEarningsIsOneCompany(t *testing.T) {
	news := &models.News{
		Title: "Сбербанк отчитался о рекордной прибыли",
		Text:  "ПАО Сбербанк объявил о росте чистой прибыли на 25% в третьем квартале.",
	}
	issuers := []*models.Issuer{{ID: "sber", SectorID: "9010"}}

	result := Classify(news, issuers, "ru")

	assert.Equal(t, NewsTypeOneCompany, result.NewsType)
	assert.Equal(t, SubtypeEarnings, result.NewsSubtype)
	assert.Equal(t, "9010", result.Sector)
	assert.Equal(t, "RU", result.Country)
	assert.Contains(t, result.Tags, "quarterly")
}

func TestClassify_NoIssuersMarketWide(t *testing.T) {
	news := &models.News{Title: "Рынок акций вырос на фоне торгов", Text: "Индекс Мосбиржи показал рост."}

	result := Classify(news, nil, "ru")

	assert.Equal(t, NewsTypeMarket, result.NewsType)
}

func TestClassify_SanctionsOverridesRegulatorySubtype(t *testing.T) {
	news := &models.News{Title: "Новые санкции против банка", Text: "Регулятор ввел ограничения."}

	result := Classify(news, nil, "ru")

	assert.Equal(t, NewsTypeRegulatory, result.NewsType)
	assert.Equal(t, SubtypeSanctions, result.NewsSubtype)
}

func TestClassify_HackKeywordOverridesAnyBranch(t *testing.T) {
	news := &models.News{Title: "Компания пострадала от взлома", Text: "Хакеры получили доступ к данным."}
	issuers := []*models.Issuer{{ID: "x"}}

	result := Classify(news, issuers, "")

	assert.Equal(t, SubtypeHack, result.NewsSubtype)
}

func TestClassify_SectorPrefersLinkedIssuerOverKeywords(t *testing.T) {
	news := &models.News{Title: "Компания объявила дивиденды", Text: "Выплата акционерам утверждена."}
	issuers := []*models.Issuer{{ID: "a", SectorID: "9510"}}

	result := Classify(news, issuers, "")

	assert.Equal(t, "9510", result.Sector)
}

func TestClassify_TagsCapAtThree(t *testing.T) {
	news := &models.News{
		Title: "Годовой квартальный отчет",
		Text:  "Выплата дивидендов, облигации и акции компании за год и квартал.",
	}

	result := Classify(news, nil, "")

	assert.LessOrEqual(t, len(result.Tags), 3)
}

func TestClassify_UnknownLanguageNoCountryFallback(t *testing.T) {
	news := &models.News{Title: "Some headline", Text: "Body text with no country markers."}

	result := Classify(news, nil, "xx")

	assert.Empty(t, result.Country)
}
