package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name         string
		title        string
		wantEntities []string
		wantNumbers  []string
		wantWords    []string
	}{
		{
			name:         "election title with year",
			title:        "Will Trump win the 2028 Republican nomination?",
			wantEntities: []string{"trump"},
			wantNumbers:  []string{"year_2028"},
			wantWords:    []string{"win", "republican", "nomination"},
		},
		{
			name:         "price target with shorthand",
			title:        "Bitcoin to hit $100K by 2025?",
			wantEntities: []string{"bitcoin"},
			wantNumbers:  []string{"year_2025", "price_100000"},
			wantWords:    []string{"hit"},
		},
		{
			name:         "price target spelled out",
			title:        "Will BTC reach $100,000 in 2025?",
			wantEntities: []string{"bitcoin"},
			wantNumbers:  []string{"year_2025", "price_100000"},
			wantWords:    []string{"reach"},
		},
		{
			name:         "percentage",
			title:        "Will inflation exceed 3.5% in 2026?",
			wantEntities: nil,
			wantNumbers:  []string{"year_2026", "percent_35"},
			wantWords:    []string{"inflation", "exceed"},
		},
		{
			name:         "entity aliases stay distinct",
			title:        "ETH flips BTC by 2030?",
			wantEntities: []string{"ethereum", "bitcoin"},
			wantNumbers:  []string{"year_2030"},
			wantWords:    []string{"flips"},
		},
		{
			name:         "stop words and short tokens dropped",
			title:        "Who will be the next president of the US?",
			wantEntities: nil,
			wantNumbers:  nil,
			wantWords:    []string{"next", "president"},
		},
		{
			name:         "pure digit remnants dropped",
			title:        "Top 100 artist of 2024",
			wantEntities: nil,
			wantNumbers:  []string{"year_2024"},
			wantWords:    []string{"top", "artist"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kw := Extract(tt.title)

			assert.Len(t, kw.Entities, len(tt.wantEntities))
			for _, e := range tt.wantEntities {
				assert.Contains(t, kw.Entities, e)
			}

			assert.Len(t, kw.Numbers, len(tt.wantNumbers))
			for _, n := range tt.wantNumbers {
				assert.Contains(t, kw.Numbers, n)
			}

			assert.Len(t, kw.Words, len(tt.wantWords))
			for _, w := range tt.wantWords {
				assert.Contains(t, kw.Words, w)
			}
		})
	}
}

func TestExtract_SetsAreDisjoint(t *testing.T) {
	kw := Extract("Will Bitcoin trade above $150,000 in 2026?")

	for word := range kw.Words {
		assert.NotContains(t, kw.Entities, word)
		assert.NotContains(t, kw.Numbers, word)
	}
	for entity := range kw.Entities {
		assert.NotContains(t, kw.Numbers, entity)
	}
}

func TestExtract_EquivalentPricesCollide(t *testing.T) {
	a := Extract("BTC above $100K?")
	b := Extract("Bitcoin above $100,000?")
	c := Extract("Bitcoin above $150K?")

	require.Len(t, a.prices, 1)
	require.Len(t, b.prices, 1)
	assert.Equal(t, a.prices, b.prices)
	assert.NotEqual(t, a.prices, c.prices)
}

func TestExtract_Idempotent(t *testing.T) {
	title := "Will Trump remain president through 2025?"

	first := Extract(title)
	second := Extract(title)

	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Numbers, second.Numbers)
	assert.Equal(t, first.Words, second.Words)
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$100k", "100000"},
		{"$100,000", "100000"},
		{"$1.5m", "1500000"},
		{"$2b", "2000000000"},
		{"100 million", "100000000"},
		{"$3.50", "35"},
		{"$42", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAmount(tt.in))
		})
	}
}

func TestIndexTokens(t *testing.T) {
	kw := Extract("Bitcoin above $100K in 2025?")

	tokens := kw.indexTokens()

	assert.ElementsMatch(t, []string{"bitcoin", "above", "year_2025", "price_100000"}, tokens)
}
