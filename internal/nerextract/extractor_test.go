package nerextract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cegradar/cegradar/internal/models"
)

func TestExtractEntities_FindsQuotedOrgAndMoney(t *testing.T) {
	e := New()
	entities := e.ExtractEntities(
		"«Газпром» увеличил выручку",
		"«Газпром» сообщил о росте выручки на 120 млрд руб. в третьем квартале.",
	)

	var gotOrg, gotMoney bool
	for _, ent := range entities {
		if ent.Kind == models.EntityOrg && ent.Text == "Газпром" {
			gotOrg = true
		}
		if ent.Kind == models.EntityMoney {
			gotMoney = true
		}
	}
	assert.True(t, gotOrg)
	assert.True(t, gotMoney)
}

func TestExtractEntities_DedupesRepeatedMention(t *testing.T) {
	e := New()
	entities := e.ExtractEntities("«Лукойл»", "«Лукойл» отчитался. «Лукойл» также сообщил о новом проекте.")

	count := 0
	for _, ent := range entities {
		if ent.Kind == models.EntityOrg && ent.Text == "Лукойл" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractEntities_SkipsKnownNonNameSentenceStarters(t *testing.T) {
	e := New()
	entities := e.ExtractEntities("", "Сегодня Компания Роста объявила о партнерстве.")

	for _, ent := range entities {
		assert.NotEqual(t, "Сегодня Компания", ent.Text)
	}
}

func TestExtract_BundlesEntitiesIntoSinglePayload(t *testing.T) {
	e := New()
	payloads, err := e.Extract(nil, "«Сбербанк»", "«Сбербанк» сообщил рост выручки на 15%.")

	assert.NoError(t, err)
	assert.Len(t, payloads, 1)
	assert.Contains(t, payloads[0].Companies, "Сбербанк")
}
