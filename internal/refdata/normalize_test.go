package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"ПАО «Газпром»":  "газпром",
		"Газпром":        "газпром",
		"ООО Лукойл":     "лукойл",
		"  Сбербанк  ":   "сбербанк",
		"Яндекс N.V.":    "яндекс n v",
	}

	for input, want := range cases {
		assert.Equal(t, want, Normalize(input), "input: %s", input)
	}
}
