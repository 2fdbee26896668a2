package eventextractor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cegradar/cegradar/internal/common"
	"github.com/cegradar/cegradar/internal/models"
)

func testExtractor() *Extractor {
	cfg := common.NewDefaultConfig().CEG
	return New(cfg)
}

func TestExtract_DetectsSanctionsType(t *testing.T) {
	e := testExtractor()
	news := &models.News{ID: "n1", Title: "ЕС ввел новые санкции против банка", Text: "Санкции вступают в силу немедленно.", PublishedAt: time.Now()}

	events := e.Extract(Input{News: news, SourceTrust: 9})
	require.NotEmpty(t, events)
	assert.Equal(t, "sanctions", events[0].Type)
	assert.True(t, events[0].IsAnchor, "sanctions is anchor-eligible, confidence and trust both high enough")
}

func TestExtract_CapsAtMaxEventsPerNews(t *testing.T) {
	e := testExtractor()
	news := &models.News{
		ID: "n1",
		Title: "Компания объявила дивиденды, байбэк, IPO, слияние и санкции",
		Text: "Прибыль выросла, выручка увеличилась, отчетность подтверждает рост. " +
			"Также компания планирует обратный выкуп акций и первичное размещение.",
		PublishedAt: time.Now(),
	}

	events := e.Extract(Input{News: news, SourceTrust: 5})
	assert.LessOrEqual(t, len(events), 5)
}

func TestExtract_NoMarkersReturnsNoEvents(t *testing.T) {
	e := testExtractor()
	news := &models.News{ID: "n1", Title: "Сегодня солнечная погода", Text: "Ничего особенного не произошло.", PublishedAt: time.Now()}

	events := e.Extract(Input{News: news, SourceTrust: 9})
	assert.Empty(t, events)
}

func TestExtract_LowTrustSourceNeverAnchors(t *testing.T) {
	e := testExtractor()
	news := &models.News{ID: "n1", Title: "Банк объявил дефолт по облигациям", Text: "Технический дефолт подтвержден регулятором.", PublishedAt: time.Now()}

	events := e.Extract(Input{News: news, SourceTrust: 2})
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.False(t, ev.IsAnchor)
	}
}
