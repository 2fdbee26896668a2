package eventstudy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
)

type fakePriceClient struct {
	byRange func(from, to time.Time) []interfaces.PriceCandle
}

func (f *fakePriceClient) GetDailyCandles(ctx context.Context, ticker string, from, to time.Time) ([]interfaces.PriceCandle, error) {
	return f.byRange(from, to), nil
}

func testEventStudyConfig() common.EventStudyConfig {
	return common.EventStudyConfig{EstimationWindowDays: 30, EventWindowDays: 1, MinBaselineObs: 20}
}

func flatCandles(start time.Time, n int, close float64, volume float64) []interfaces.PriceCandle {
	out := make([]interfaces.PriceCandle, n)
	for i := 0; i < n; i++ {
		out[i] = interfaces.PriceCandle{Date: start.AddDate(0, 0, i), Close: close, Volume: volume}
	}
	return out
}

func TestAnalyzeImpact_InsufficientBaselineReturnsZeroConfidence(t *testing.T) {
	eventTS := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	client := &fakePriceClient{byRange: func(from, to time.Time) []interfaces.PriceCandle {
		return flatCandles(from, 5, 100, 1000)
	}}
	analyzer := New(client, testEventStudyConfig(), arbor.NewLogger())

	result, err := analyzer.AnalyzeImpact(context.Background(), "GAZP.ME", eventTS)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.ConfMarket)
	assert.False(t, result.Significant)
}

func oscillatingCandles(start time.Time, n int, base float64, volume float64) []interfaces.PriceCandle {
	out := make([]interfaces.PriceCandle, n)
	price := base
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			price = base * 1.01
		} else {
			price = base * 0.99
		}
		out[i] = interfaces.PriceCandle{Date: start.AddDate(0, 0, i), Close: price, Volume: volume}
	}
	return out
}

func TestAnalyzeImpact_LargeEventMoveIsSignificant(t *testing.T) {
	eventTS := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	estStart := eventTS.AddDate(0, 0, -30)
	client := &fakePriceClient{byRange: func(from, to time.Time) []interfaces.PriceCandle {
		if from.Before(eventTS) && to.Before(eventTS) {
			return oscillatingCandles(estStart, 25, 100, 1000)
		}
		return []interfaces.PriceCandle{
			{Date: eventTS, Close: 100, Volume: 1000},
			{Date: eventTS.AddDate(0, 0, 1), Close: 130, Volume: 5000},
		}
	}}
	analyzer := New(client, testEventStudyConfig(), arbor.NewLogger())

	result, err := analyzer.AnalyzeImpact(context.Background(), "GAZP.ME", eventTS)
	require.NoError(t, err)
	assert.True(t, result.Significant)
	assert.Greater(t, result.ConfMarket, 0.0)
	assert.LessOrEqual(t, result.ConfMarket, 1.0)
}

func TestConfMarket_MirrorsAnalyzeImpact(t *testing.T) {
	eventTS := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	client := &fakePriceClient{byRange: func(from, to time.Time) []interfaces.PriceCandle {
		return flatCandles(from, 3, 100, 1000)
	}}
	analyzer := New(client, testEventStudyConfig(), arbor.NewLogger())

	confMarket, err := analyzer.ConfMarket(context.Background(), "GAZP.ME", eventTS)
	require.NoError(t, err)
	assert.Equal(t, 0.0, confMarket)
}
