package classifier

import (
	"strings"

	"github.com/cegradar/cegradar/internal/models"
)

// Result is the classifier's output, mirroring the News columns it fills
// and the secondary Topic rows it writes.
type Result struct {
	Sector      string
	Country     string
	Countries   []string
	NewsType    string
	NewsSubtype string
	Tags        []string
}

const (
	NewsTypeOneCompany = "OneCompany"
	NewsTypeMarket     = "Market"
	NewsTypeRegulatory = "Regulatory"

	SubtypeEarnings         = "Earnings"
	SubtypeGuidance         = "Guidance"
	SubtypeMnA              = "MnA"
	SubtypeDefault          = "Default"
	SubtypeSanctions        = "Sanctions"
	SubtypeHack             = "Hack"
	SubtypeLegal            = "Legal"
	SubtypeESG              = "ESG"
	SubtypeSupplyChain      = "SupplyChain"
	SubtypeTechOutage       = "TechOutage"
	SubtypeManagementChange = "ManagementChange"
	SubtypeOther            = "Other"
)

// Classify implements §4.6: Sector/Country/NewsType/NewsSubtype plus up to
// three secondary tags, given the News item, the issuers the linker
// resolved for it, and the detected language.
func Classify(news *models.News, linkedIssuers []*models.Issuer, lang string) Result {
	text := strings.ToLower(news.Title + " " + news.Text)

	result := Result{
		Sector:      classifySector(text, linkedIssuers),
		NewsType:    "",
		NewsSubtype: SubtypeOther,
	}

	countries := countriesFromText(text)
	if lang != "" {
		if code, ok := langToCountry[strings.ToLower(lang)]; ok {
			countries = appendUnique(countries, code)
		}
	}
	result.Countries = countries
	if len(countries) > 0 {
		result.Country = countries[0]
	}

	newsType, newsSubtype := classifyType(text, len(linkedIssuers))
	result.NewsType = newsType
	if newsSubtype != "" {
		result.NewsSubtype = newsSubtype
	}

	result.Tags = extractTags(text)

	return result
}

// classifySector follows §4.6's priority: linked issuers' own sector wins,
// falling back to keyword buckets only when no issuer carries one.
func classifySector(text string, linkedIssuers []*models.Issuer) string {
	counts := map[string]int{}
	for _, issuer := range linkedIssuers {
		if issuer.SectorID != "" {
			counts[issuer.SectorID]++
		}
	}

	best, bestCount := "", 0
	for sector, count := range counts {
		if count > bestCount || (count == bestCount && sector < best) {
			best, bestCount = sector, count
		}
	}
	if best != "" {
		return best
	}

	return sectorByKeywords(text)
}

// classifyType implements _classify_news_type's three-branch precedence:
// single-company news first, then market-wide, then regulatory. The
// sanctions subtype is only set inside the regulatory branch; the
// hack/legal/esg/supply-chain/outage subtypes are layered on top regardless
// of which branch set the primary type.
func classifyType(text string, linkedIssuerCount int) (newsType, subtype string) {
	switch {
	case linkedIssuerCount == 1:
		newsType = NewsTypeOneCompany
		switch {
		case anyKeyword(text, earningsKeywords):
			subtype = SubtypeEarnings
		case anyKeyword(text, guidanceKeywords):
			subtype = SubtypeGuidance
		case anyKeyword(text, mnaKeywords):
			subtype = SubtypeMnA
		case anyKeyword(text, defaultKeywords):
			subtype = SubtypeDefault
		case anyKeyword(text, managementChangeKeywords):
			subtype = SubtypeManagementChange
		}
	case anyKeyword(text, marketKeywords):
		newsType = NewsTypeMarket
	case anyKeyword(text, regulatoryKeywords):
		newsType = NewsTypeRegulatory
		if anyKeyword(text, sanctionsKeywords) {
			subtype = SubtypeSanctions
		}
	default:
		newsType = NewsTypeMarket
	}

	// Cross-cutting subtypes override the branch-specific guess, exactly as
	// the final if/elif chain in _classify_news_type does.
	switch {
	case anyKeyword(text, hackKeywords):
		subtype = SubtypeHack
	case anyKeyword(text, legalKeywords):
		subtype = SubtypeLegal
	case anyKeyword(text, esgKeywords):
		subtype = SubtypeESG
	case anyKeyword(text, supplyChainKeywords):
		subtype = SubtypeSupplyChain
	case anyKeyword(text, techOutageKeywords):
		subtype = SubtypeTechOutage
	}

	return newsType, subtype
}

// extractTags caps at three secondary tags per §4.6, in tagOrder's fixed
// priority so output is deterministic regardless of map iteration.
func extractTags(text string) []string {
	var tags []string
	for _, tag := range tagOrder {
		if len(tags) >= 3 {
			break
		}
		if anyKeyword(text, tagKeywords[tag]) {
			tags = append(tags, tag)
		}
	}
	return tags
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}
