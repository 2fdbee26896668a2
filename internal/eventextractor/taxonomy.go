// Package eventextractor is the event extractor (C9): it scans a News
// item's text for one of a fixed set of causal event-type marker families
// and turns each match into a models.Event. Grounded on the original
// EventExtractor's CAUSAL_MARKERS_RU/EN tables and priority ordering,
// generalized to the spec's 20-type taxonomy (drops the original's ad-hoc
// "regulatory"/"m&a" keys in favour of "mna", adds earnings_beat/earnings_miss
// as first-class types alongside earnings rather than leaving them
// English-only).
package eventextractor

import "regexp"

// family is one event type's marker set, compiled once at construction.
type family struct {
	eventType string
	priority  int
	pattern   *regexp.Regexp
}

// markerTable lists, in the original's declaration order, the keyword
// families that drive detection. Russian markers dominate (this is a
// Russian-language financial news system); a handful of English analogues
// are folded into the same family rather than kept in a parallel table, so
// one regex per type covers both languages.
var markerTable = []struct {
	eventType string
	priority  int
	markers   []string
}{
	{"sanctions", 10, []string{
		"санкции", "санкц", "ограничени", "запрет", "включить в список",
		"задержать", "наложить штраф", "инициировать расследование",
		"sanctions", "restrict", "embargo",
	}},
	{"rate_hike", 9, []string{
		"ключевая ставка повышена", "повысил ставку", "рост ставки", "повышение ставки",
		"цб повысил", "центральный банк повысил", "rate hike", "raised rate",
	}},
	{"rate_cut", 9, []string{
		"снижение ставки", "снизил ставку", "понижение ставки",
		"ставка снижена", "снижена ставка", "rate cut", "lowered rate",
	}},
	{"earnings_miss", 8, []string{"убыток", "снижение прибыли", "падение прибыли", "earnings miss", "loss"}},
	{"earnings_beat", 8, []string{"рост прибыли", "увеличение прибыли", "рекордная прибыль", "earnings beat", "record profit"}},
	{"earnings", 7, []string{
		"прибыль", "выручка", "отчетность", "результаты", "финансовые результаты",
		"квартальная отчетность", "годовая отчетность", "earnings", "revenue",
	}},
	{"guidance", 6, []string{"прогноз", "ожидания", "планы", "намерен", "планирует", "guidance", "outlook"}},
	{"guidance_cut", 7, []string{"снизил прогноз", "ухудшил прогноз", "пересмотрел прогноз в сторону снижения", "guidance cut"}},
	{"mna", 8, []string{"слияние", "поглощение", "сделка по приобретению", "приобрет", "купил долю", "merger", "acquisition", "takeover"}},
	{"ipo", 8, []string{"ipo", "размещение акций", "первичное размещение"}},
	{"dividends", 6, []string{"дивиденды", "дивиденд", "выплата дивидендов", "dividend"}},
	{"dividend_cut", 7, []string{"сократил дивиденды", "снизил дивиденды", "dividend cut"}},
	{"buyback", 6, []string{"обратный выкуп", "байбэк", "buyback"}},
	{"default", 9, []string{"дефолт", "банкротство", "невыплата", "технический дефолт", "default", "bankruptcy"}},
	{"management_change", 6, []string{
		"новый директор", "смена руководства", "назначен на должность", "ушел в отставку",
		"покинул пост", "сменил директора", "management change", "stepped down",
	}},
	{"supply_chain", 5, []string{
		"цепочка поставок", "поставк", "логистик", "перебои в поставках",
		"задержка поставок", "supply chain",
	}},
	{"production", 5, []string{"производство", "выпуск продукции", "мощност", "завод остановлен", "production halt"}},
	{"accident", 6, []string{"авария", "инцидент", "катастроф", "чп на производстве", "accident", "explosion"}},
	{"strike", 6, []string{"забастовка", "протест", "остановка работы", "strike", "walkout"}},
	{"legal", 5, []string{"суд", "судебн", "иск", "арбитраж", "судебное решение", "lawsuit", "litigation"}},
}

func compileFamilies() []family {
	families := make([]family, 0, len(markerTable))
	for _, row := range markerTable {
		pattern := ""
		for i, m := range row.markers {
			if i > 0 {
				pattern += "|"
			}
			pattern += regexp.QuoteMeta(m)
		}
		families = append(families, family{
			eventType: row.eventType,
			priority:  row.priority,
			pattern:   regexp.MustCompile("(?i)" + pattern),
		})
	}
	return families
}
