package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		point []float64
		bbox  []float64
	}{
		{
			name:  "plain point",
			raw:   `{"label":"submit","point":[500,500]}`,
			point: []float64{500, 500},
		},
		{
			name: "fenced bbox",
			raw:  "```json\n{\"label\":\"search\",\"bbox\":[10,20,30,40]}\n```",
			bbox: []float64{10, 20, 30, 40},
		},
		{
			name:  "comments and trailing commas",
			raw:   "Here you go:\n{\n  // the button\n  \"label\": \"ok\",\n  \"point\": [0.5, 0.25,],\n}",
			point: []float64{0.5, 0.25},
		},
		{
			name:  "both",
			raw:   `/* model */ {"label":"x","point":[1,2],"bbox":[0,0,4,4],"confidence":0.9}`,
			point: []float64{1, 2},
			bbox:  []float64{0, 0, 4, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocation(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.point, loc.Point)
			assert.Equal(t, tt.bbox, loc.BBox)
			assert.Equal(t, tt.point != nil, loc.HasPoint())
			assert.Equal(t, tt.bbox != nil, loc.HasBBox())
		})
	}
}

func TestParseLocationErrors(t *testing.T) {
	_, err := ParseLocation("I cannot see a submit button.")
	assert.ErrorIs(t, err, ErrNoLocation)

	_, err = ParseLocation(`{"label":"nothing"}`)
	assert.ErrorIs(t, err, ErrNoLocation)

	_, err = ParseLocation(`{"label":"short","point":[1]}`)
	assert.ErrorIs(t, err, ErrNoLocation)

	_, err = ParseLocation(`{"label": }`)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoLocation)
}

func TestSanitizeModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, SanitizeModelJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":[1,2]}`, SanitizeModelJSON(`{"a":[1,2,]}`))
	assert.Equal(t, "no json", SanitizeModelJSON("  no json  "))
}
