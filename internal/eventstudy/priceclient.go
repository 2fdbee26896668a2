// Package eventstudy is the Event-Study Analyser (C11): it measures how
// much an instrument's price and volume moved around an event timestamp
// relative to a trailing baseline, grounded on internal/eodhd.Client for
// the OHLCV fetch (§4.9, §6.4).
package eventstudy

import (
	"context"
	"time"

	"github.com/cegradar/cegradar/internal/eodhd"
	"github.com/cegradar/cegradar/internal/interfaces"
)

// EODHDPriceClient adapts internal/eodhd.Client to interfaces.PriceAPIClient.
// Tickers are expected in EODHD's TICKER.EXCHANGE form already; callers
// owning a bare ticker should append the exchange suffix before calling.
type EODHDPriceClient struct {
	client *eodhd.Client
}

// NewEODHDPriceClient wraps an eodhd.Client.
func NewEODHDPriceClient(client *eodhd.Client) *EODHDPriceClient {
	return &EODHDPriceClient{client: client}
}

// GetDailyCandles implements interfaces.PriceAPIClient.
func (c *EODHDPriceClient) GetDailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]interfaces.PriceCandle, error) {
	eod, err := c.client.GetEOD(ctx, ticker,
		eodhd.WithDateRange(from, to),
		eodhd.WithPeriod("d"),
		eodhd.WithOrder("a"),
	)
	if err != nil {
		return nil, err
	}
	candles := make([]interfaces.PriceCandle, 0, len(eod))
	for _, d := range eod {
		candles = append(candles, interfaces.PriceCandle{
			Date:   d.Date,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: float64(d.Volume),
		})
	}
	return candles, nil
}
