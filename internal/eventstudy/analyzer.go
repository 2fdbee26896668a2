package eventstudy

import (
	"context"
	"math"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/interfaces"
)

// Result is the output of AnalyzeImpact (§4.9 step 5).
type Result struct {
	AR          float64
	CAR         float64
	VolumeRatio float64
	Significant bool
	ConfMarket  float64
}

// Analyzer computes abnormal-return and volume statistics for an
// instrument around an event timestamp, against a trailing mean-return
// baseline (§4.9). Implements ceg.MarketScorer via ConfMarket.
type Analyzer struct {
	prices interfaces.PriceAPIClient
	cfg    common.EventStudyConfig
	logger arbor.ILogger
}

// New creates an Analyzer.
func New(prices interfaces.PriceAPIClient, cfg common.EventStudyConfig, logger arbor.ILogger) *Analyzer {
	return &Analyzer{prices: prices, cfg: cfg, logger: logger}
}

// AnalyzeImpact fits a mean-return baseline over the estimation window
// [eventTS-estimationDays, eventTS-1d), then measures abnormal return and
// volume over [eventTS, eventTS+eventWindowDays]. Fewer than MinBaselineObs
// daily returns in the estimation window is not a pipeline failure — it
// yields a zero-confidence Result (§4.9 step 5).
func (a *Analyzer) AnalyzeImpact(ctx context.Context, ticker string, eventTS time.Time) (Result, error) {
	estFrom := eventTS.AddDate(0, 0, -a.cfg.EstimationWindowDays)
	estTo := eventTS.AddDate(0, 0, -1)
	estimation, err := a.prices.GetDailyCandles(ctx, ticker, estFrom, estTo)
	if err != nil {
		return Result{}, err
	}

	estReturns := dailyReturns(estimation)
	if len(estReturns) < a.cfg.MinBaselineObs {
		a.logger.Debug().Str("ticker", ticker).Int("observations", len(estReturns)).
			Msg("eventstudy: insufficient baseline history, conf_market=0")
		return Result{}, nil
	}
	baseline := mean(estReturns)
	sigma := stddev(estReturns, baseline)
	avgVolEstimation := meanVolume(estimation)

	windowTo := eventTS.AddDate(0, 0, a.cfg.EventWindowDays)
	window, err := a.prices.GetDailyCandles(ctx, ticker, eventTS, windowTo)
	if err != nil {
		return Result{}, err
	}
	windowReturns := dailyReturns(window)
	if len(windowReturns) == 0 || sigma == 0 {
		return Result{}, nil
	}

	car := 0.0
	arPeak := 0.0
	for _, r := range windowReturns {
		ar := r - baseline
		car += ar
		if math.Abs(ar) > math.Abs(arPeak) {
			arPeak = ar
		}
	}

	volEvent := meanVolume(window)
	volumeRatio := 0.0
	if avgVolEstimation > 0 {
		volumeRatio = volEvent / avgVolEstimation
	}

	significant := math.Abs(arPeak) > 2*sigma || volumeRatio > 2
	confMarket := math.Min(1, math.Abs(arPeak)/(2*sigma))
	if !significant {
		confMarket = 0
	}

	return Result{
		AR:          arPeak,
		CAR:         car,
		VolumeRatio: volumeRatio,
		Significant: significant,
		ConfMarket:  confMarket,
	}, nil
}

// ConfMarket implements ceg.MarketScorer, reducing the full Result down to
// the single term the causal score needs.
func (a *Analyzer) ConfMarket(ctx context.Context, ticker string, eventTS time.Time) (float64, error) {
	result, err := a.AnalyzeImpact(ctx, ticker, eventTS)
	if err != nil {
		return 0, err
	}
	return result.ConfMarket, nil
}

func dailyReturns(candles []interfaces.PriceCandle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev)
	}
	return returns
}

func meanVolume(candles []interfaces.PriceCandle) float64 {
	if len(candles) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range candles {
		total += c.Volume
	}
	return total / float64(len(candles))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		d := v - m
		total += d * d
	}
	return math.Sqrt(total / float64(len(values)))
}
