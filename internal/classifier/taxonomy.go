// Package classifier is the Topic/Sector/Country/Type Classifier (C8): a
// deterministic, keyword- and lexicon-driven tagger. Grounded on the
// original topic_classifier.py / sector_mapper.py pair, replacing their
// Neo4j/Redis side effects with the plain struct result the enrichment
// pipeline persists onto the News row and TopicStorage.
package classifier

import (
	"sort"
	"strings"
)

// sectorKeywords maps a lowercase keyword fragment to an ICB-style sector
// code, ported from sector_mapper.py's get_sector_by_keywords table.
var sectorKeywords = map[string]string{
	"нефть": "1010", "газ": "1010", "нефтегаз": "1010",
	"oil": "1010", "petroleum": "1010",

	"банк": "9010", "кредит": "9010", "банковский": "9010",
	"bank": "9010", "lending": "9010",

	"технологии": "9510", "софт": "9510", "интернет": "9510", "цифровой": "9510",
	"technology": "9510", "software": "9510", "internet": "9510", "digital": "9510",

	"ритейл": "6010", "торговля": "6010", "магазин": "6010",
	"retail": "6010", "store": "6010",

	"металлы": "2030", "металлургия": "2030", "сталь": "2030",
	"metals": "2030", "steel": "2030",

	"добыча": "2040", "шахта": "2040", "mining": "2040",

	"связь": "7020", "телеком": "7020", "мобильный": "7020",
	"telecom": "7020", "mobile": "7020",

	"электроэнергия": "8010", "энергетика": "8010", "электричество": "8010",
	"electricity": "8010", "utility": "8010",

	"недвижимость": "9040", "девелопмент": "9040",
	"real estate": "9040", "property": "9040",
}

// sectorByKeywords returns the sector code of the first keyword, in sorted
// keyword order, found in text. There is no competing-count tiebreak: when
// keywords of several sectors match, the sorted order alone decides, so the
// result never depends on map iteration order.
func sectorByKeywords(text string) string {
	lower := strings.ToLower(text)
	keywords := make([]string, 0, len(sectorKeywords))
	for keyword := range sectorKeywords {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return sectorKeywords[keyword]
		}
	}
	return ""
}

// countryPatterns ports _extract_countries_from_text's word lists, dropped
// down from regex word-boundaries to substring checks since the original's
// \b anchors do little against Cyrillic case-ending variants anyway.
var countryPatterns = map[string][]string{
	"RU": {"росси", "российск", "рф "},
	"US": {"сша", "америк", "usa"},
	"CN": {"кита", "китайск", "china"},
	"DE": {"германи", "немецк", "germany"},
	"GB": {"великобритани", "британи", "англи", " uk "},
	"FR": {"франци", "французск", "france"},
	"JP": {"япони", "японск", "japan"},
	"CA": {"канад", "canada"},
	"IN": {"инди", "индийск", "india"},
	"BR": {"бразили", "бразильск", "brazil"},
}

// langToCountry ports _get_country_from_language.
var langToCountry = map[string]string{
	"ru": "RU", "en": "US", "zh": "CN", "de": "DE",
	"fr": "FR", "ja": "JP", "es": "ES", "pt": "BR",
	"it": "IT", "ko": "KR", "ar": "SA", "hi": "IN",
}

// countriesFromText returns every matching country code in alphabetical
// order.
func countriesFromText(text string) []string {
	lower := " " + strings.ToLower(text) + " "
	codes := make([]string, 0, len(countryPatterns))
	for code := range countryPatterns {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	var out []string
	for _, code := range codes {
		for _, p := range countryPatterns[code] {
			if strings.Contains(lower, p) {
				out = append(out, code)
				break
			}
		}
	}
	return out
}

// News type and subtype keyword tables, ported from _classify_news_type and
// _extract_additional_tags.
var (
	earningsKeywords         = []string{"прибыл", "убыток", "выручка", "earnings", "revenue"}
	guidanceKeywords         = []string{"прогноз", "forecast", "guidance", "ожидания"}
	mnaKeywords              = []string{"слияние", "поглощение", "m&a", "acquisition"}
	defaultKeywords          = []string{"дефолт", "банкротство", "default", "bankruptcy"}
	managementChangeKeywords = []string{"руководство", "менеджмент смен", "ceo", "cfo"}

	marketKeywords     = []string{"рынок", "индекс", "market", "index", "торги"}
	regulatoryKeywords = []string{"цб рф", "банк россии", "регулятор", "санкции"}
	sanctionsKeywords  = []string{"санкции", "sanctions"}

	hackKeywords        = []string{"хак", "взлом", "hack", "breach", "кибератака"}
	legalKeywords       = []string{"суд", "иск", "court", "lawsuit"}
	esgKeywords         = []string{"экология", "esg", "устойчивость", "sustainability"}
	supplyChainKeywords = []string{"логистика", "поставки", "supply chain", "цепочка поставок"}
	techOutageKeywords  = []string{"технический сбой", "outage", "сбой системы"}

	tagKeywords = map[string][]string{
		"dividends": {"дивиденды", "dividend", "выплата"},
		"bonds":     {"облигации", "bonds", "долг"},
		"equity":    {"акции", "shares", "equity"},
		"ai":        {"искусственный интеллект", " ии ", "ai ", "машинное обучение"},
		"crypto":    {"блокчейн", "криптовалюта", "blockchain", "crypto"},
		"green":     {"зеленые", "green", "renewable"},
		"social":    {"социальная ответственность", "social responsibility"},
		"quarterly": {"квартал", "quarter", "q1", "q2", "q3", "q4"},
		"annual":    {"годовой", "annual"},
	}
	// tagOrder fixes iteration order so results are deterministic, since Go
	// map iteration order is randomized.
	tagOrder = []string{"dividends", "bonds", "equity", "ai", "crypto", "green", "social", "quarterly", "annual"}
)

func anyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
