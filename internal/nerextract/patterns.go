// Package nerextract is the "external extractor" collaborator of the
// enrichment pipeline's step 1 (C6 §4.4): pulls raw person/org/money/date/
// metric mentions out of a news item's title and body. Grounded on
// original_source/Parser/src/services/enricher/ner_extractor.py's
// NERExtractor, whose Natasha/DeepPavlov ML backends have no equivalent in
// this module's dependency pack, so only its regex-based financial-entity
// extraction (money, percentages, amounts, dates) survives; organisation and
// person mentions fall back to the quoted-name and capitalised-run
// heuristics the original used as its non-ML path.
package nerextract

import "regexp"

// moneyPattern ports NERExtractor.money_pattern: an amount, an optional
// scale word, and a currency marker.
var moneyPattern = regexp.MustCompile(
	`(?i)([\d\s,.]+)\s*(млрд|млн|тыс\.?|миллиард|миллион|тысяч|billion|million|thousand)?\s*(руб\.?|рубл\w*|долл\w*|€|₽|\$|USD|EUR|RUB)`,
)

// percentPattern ports percent_pattern.
var percentPattern = regexp.MustCompile(
	`(?i)([+-])?([\d,.]+)\s*(%|процент\w*|п\.?п\.?|bps?)`,
)

// amountPattern ports amount_pattern (quantities with physical units).
var amountPattern = regexp.MustCompile(
	`(?i)([\d\s,.]+)\s*(млрд|млн|тыс\.?)?\s*(тонн\w*|баррел\w*|куб\.?м|МВт|ГВт|кВт|штук\w*|единиц\w*)`,
)

// datePattern ports date_pattern's three date shapes.
var datePattern = regexp.MustCompile(
	`(?i)(\d{1,2}[\s\-/.]\d{1,2}[\s\-/.]\d{2,4})|(\d{4}[\s\-/.]\d{1,2}[\s\-/.]\d{1,2})|(\d{1,2}\s+(?:янв|фев|мар|апр|мая|июн|июл|авг|сен|окт|ноя|дек)\w*\s+\d{4})`,
)

// quotedNamePattern catches the Russian convention of quoting a company's
// trade name, e.g. «Газпром» or "Лукойл" — the cheapest available signal
// for an organisation mention absent an ML NER backend.
var quotedNamePattern = regexp.MustCompile(`[«"]([^»"]{2,60})[»"]`)

// capitalizedRunPattern catches runs of 2-3 capitalised words as a stand-in
// for a person name (e.g. "Герман Греф"), mirroring Natasha's NamesExtractor
// at a much cruder precision.
var capitalizedRunPattern = regexp.MustCompile(
	`([A-ZА-ЯЁ][a-zа-яё]+(?:\s+[A-ZА-ЯЁ][a-zа-яё]+){1,2})`,
)

// nonNameCapitalizedWords excludes common capitalized sentence-starters the
// capitalizedRunPattern would otherwise misfire on.
var nonNameCapitalizedWords = map[string]bool{
	"Сегодня": true, "Вчера": true, "Также": true, "Кроме": true,
	"Однако": true, "После": true, "Ранее": true,
}
