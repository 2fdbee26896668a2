// Package ceg is the CMNLN Causal Engine (C10): it maintains the CAUSES
// edge set over the event graph by forward-, internal-, and retroactive-
// linking newly extracted events against history. Grounded on
// original_source/Parser/src/services/events/cmnln_engine.py's CMLNEngine,
// keeping its domain-prior lookup keyed by cause type alone (effect_type is
// not part of the key; see findDomainPrior) and generalized from its
// two-factor confidence (prior, text) to the three-factor
// prior/text/market blend §4.8 specifies.
package ceg

import "strings"

// DomainPrior is one row of the causal prior table: a belief about how
// strongly a cause event type precedes an effect event type, plus the
// expected lag window used for the lag-mismatch penalty.
type DomainPrior struct {
	CauseType    string
	EffectType   string
	Sign         string
	ExpectedLag  string
	ConfPrior    float64
	Description  string
}

// domainPriors ports CMLNEngine.DOMAIN_PRIORS, with "m&a" renamed to "mna"
// and "market_drop"/"bank_stock_up"-style effect types kept as free-form
// effect tags (this module's Event.Type taxonomy covers causes; broad
// market reactions are outcomes an event-study call measures directly,
// not a second event type, so effect_type here is descriptive metadata
// rather than a key that must match another Event.Type).
var domainPriors = []DomainPrior{
	{"sanctions", "market_drop", "-", "0-1d", 0.75, "sanctions depress the broad market"},
	{"rate_hike", "rub_appreciation", "+", "1h-1d", 0.65, "a rate hike strengthens the ruble"},
	{"rate_hike", "bank_stock_up", "+", "0-3d", 0.60, "a rate hike lifts bank equities"},
	{"rate_cut", "rub_depreciation", "-", "1h-1d", 0.60, "a rate cut weakens the ruble"},
	{"earnings_beat", "stock_rally", "+", "0-1d", 0.70, "beating estimates rallies the stock"},
	{"earnings_miss", "stock_drop", "-", "0-1d", 0.75, "missing estimates drops the stock"},
	{"guidance_cut", "stock_drop", "-", "0-1d", 0.70, "cut guidance drops the stock"},
	{"mna", "target_stock_up", "+", "0-1d", 0.80, "an M&A announcement lifts the target"},
	{"default", "bond_crash", "-", "0-1h", 0.90, "a default crashes the bonds"},
	{"dividend_cut", "stock_drop", "-", "0-1d", 0.65, "a dividend cut drops the stock"},
	{"buyback", "stock_up", "+", "0-3d", 0.60, "a buyback lifts the stock"},
	{"regulatory", "sector_drop", "-", "1-7d", 0.55, "new regulation drops the sector"},
	{"supply_chain", "production_down", "-", "1-4w", 0.50, "a supply disruption cuts production"},
	{"accident", "stock_drop", "-", "0-1d", 0.65, "an accident drops the stock"},
	{"management_change", "stock_volatility", "±", "0-3d", 0.45, "a management change adds volatility"},
}

// findDomainPrior is a lookup by cause type alone: it returns the first row
// whose cause type matches and ignores the effect event's type. For a cause
// type with several rows (rate_hike has two) only the first row is ever
// returned.
func findDomainPrior(causeType string) (DomainPrior, bool) {
	for _, p := range domainPriors {
		if p.CauseType == causeType {
			return p, true
		}
	}
	return DomainPrior{}, false
}

// causalTextMarker is one weighted connector phrase.
type causalTextMarker struct {
	phrase string
	weight float64
}

// causalTextMarkers ports CAUSAL_TEXT_MARKERS verbatim.
var causalTextMarkers = []causalTextMarker{
	{"из-за", 0.8}, {"в результате", 0.85}, {"вследствие", 0.8},
	{"в связи с", 0.7}, {"на фоне", 0.6}, {"после", 0.5},
	{"привело к", 0.9}, {"вызвало", 0.9}, {"стало причиной", 0.9},
	{"повлекло", 0.8}, {"спровоцировало", 0.8}, {"следствие", 0.7},
	{"due to", 0.8}, {"because of", 0.8}, {"as a result of", 0.8},
	{"caused by", 0.9}, {"led to", 0.9}, {"resulted in", 0.8},
}

// confText returns the highest weight of any causal connector found in
// either event's source text (§4.8 scoring, conf_text).
func confText(textA, textB string) float64 {
	best := 0.0
	for _, text := range []string{strings.ToLower(textA), strings.ToLower(textB)} {
		for _, marker := range causalTextMarkers {
			if strings.Contains(text, marker.phrase) && marker.weight > best {
				best = marker.weight
			}
		}
	}
	return best
}

// lagRange is an inclusive (min, max) window of seconds.
type lagRange struct {
	min, max float64
}

// lagRanges ports _check_lag_match's lookup table.
var lagRanges = map[string]lagRange{
	"0-1h":  {0, 3600},
	"1h-1d": {3600, 86400},
	"0-1d":  {0, 86400},
	"0-3d":  {0, 259200},
	"1-7d":  {86400, 604800},
	"1-4w":  {604800, 2419200},
}

// lagMatches reports whether diffSeconds falls within expectedLag's range.
// An unknown lag label is treated as always matching, per the original's
// "unknown lag, accept it" fallback.
func lagMatches(diffSeconds float64, expectedLag string) bool {
	r, ok := lagRanges[expectedLag]
	if !ok {
		return true
	}
	return diffSeconds >= r.min && diffSeconds <= r.max
}
