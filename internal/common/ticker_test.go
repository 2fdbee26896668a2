package common

import "testing"

func TestParseTicker(t *testing.T) {
	originalDefault := DefaultExchange
	DefaultExchange = "MOEX"
	defer func() { DefaultExchange = originalDefault }()

	tests := []struct {
		input        string
		wantExchange string
		wantCode     string
		wantString   string
	}{
		{"MOEX:SBER", "MOEX", "SBER", "MOEX:SBER"},
		{"MOEX.SBER", "MOEX", "SBER", "MOEX:SBER"},
		{"NASDAQ:AAPL", "NASDAQ", "AAPL", "NASDAQ:AAPL"},
		{"sber", "MOEX", "SBER", "MOEX:SBER"},
		{"  SBER  ", "MOEX", "SBER", "MOEX:SBER"},
		{"", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseTicker(tt.input)
			if result.Exchange != tt.wantExchange {
				t.Errorf("Exchange = %q, want %q", result.Exchange, tt.wantExchange)
			}
			if result.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", result.Code, tt.wantCode)
			}
			if result.String() != tt.wantString {
				t.Errorf("String() = %q, want %q", result.String(), tt.wantString)
			}
		})
	}
}

func TestTicker_PriceAPISymbol(t *testing.T) {
	tests := []struct {
		ticker string
		want   string
	}{
		{"MOEX:SBER", "SBER"},
		{"SBER", "SBER"},
		{"NASDAQ:AAPL", "AAPL.NASDAQ"},
	}

	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			parsed := ParseTicker(tt.ticker)
			if got := parsed.PriceAPISymbol(); got != tt.want {
				t.Errorf("PriceAPISymbol() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTickers(t *testing.T) {
	input := []string{"MOEX:SBER", "MOEX:GAZP", "LKOH", "  ", ""}
	result := ParseTickers(input)

	if len(result) != 3 {
		t.Fatalf("ParseTickers returned %d tickers, want 3", len(result))
	}

	expected := []string{"SBER", "GAZP", "LKOH"}
	for i, ticker := range result {
		if ticker.Code != expected[i] {
			t.Errorf("result[%d].Code = %q, want %q", i, ticker.Code, expected[i])
		}
	}
}
