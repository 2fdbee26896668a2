package common

import "strings"

// Ticker is a parsed, exchange-qualified security symbol. The linker (C7)
// and event-study analyser (C11) both need to go from "free text mentions
// SBER" to a symbol the price API understands.
//
// Format: EXCHANGE:CODE (e.g. "MOEX:SBER"), with MOEX assumed when no
// exchange prefix is present since this pipeline's securities master is
// MOEX-rooted.
type Ticker struct {
	Exchange string
	Code     string
	Raw      string
}

// DefaultExchange is used when a ticker carries no exchange prefix.
var DefaultExchange = "MOEX"

// SetDefaultExchange overrides DefaultExchange, normally from config at
// startup.
func SetDefaultExchange(exchange string) {
	if exchange != "" {
		DefaultExchange = strings.ToUpper(exchange)
	}
}

// ParseTicker accepts "MOEX:SBER", "MOEX.SBER", or bare "SBER" (which is
// assigned DefaultExchange).
func ParseTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{
			Exchange: strings.ToUpper(ticker[:idx]),
			Code:     strings.ToUpper(ticker[idx+1:]),
			Raw:      ticker,
		}
	}
	if idx := strings.Index(ticker, "."); idx > 0 {
		return Ticker{
			Exchange: strings.ToUpper(ticker[:idx]),
			Code:     strings.ToUpper(ticker[idx+1:]),
			Raw:      ticker,
		}
	}

	return Ticker{
		Exchange: DefaultExchange,
		Code:     strings.ToUpper(ticker),
		Raw:      ticker,
	}
}

// ParseTickers parses every entry, silently skipping any that produce an
// empty code.
func ParseTickers(tickers []string) []Ticker {
	result := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if parsed := ParseTicker(t); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}

// String returns the canonical EXCHANGE:CODE form.
func (t Ticker) String() string {
	if t.Exchange == "" || t.Code == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// PriceAPISymbol returns the symbol form the Price API client (C11) sends
// on the wire, which for MOEX instruments is the bare code.
func (t Ticker) PriceAPISymbol() string {
	if t.Exchange == "" || t.Exchange == "MOEX" {
		return t.Code
	}
	return t.Code + "." + t.Exchange
}
