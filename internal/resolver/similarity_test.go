package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringSimilarityExact(t *testing.T) {
	assert.Equal(t, 1.0, StringSimilarity("asthma", "Asthma"))
	assert.Equal(t, 1.0, StringSimilarity("IL-6", "il 6"))
}

func TestStringSimilarityPrefix(t *testing.T) {
	s := StringSimilarity("asth", "asthma")
	assert.InDelta(t, 0.84+0.10*4.0/6.0, s, 0.001)
}

func TestStringSimilarityInitials(t *testing.T) {
	s := StringSimilarity("nsclc", "non small cell lung carcinoma")
	assert.GreaterOrEqual(t, s, 0.80)
}

func TestStringSimilarityTokenOverlap(t *testing.T) {
	s := StringSimilarity("lung cancer", "small cell lung cancer")
	assert.GreaterOrEqual(t, s, 0.6)
	assert.Less(t, s, 1.0)
}

func TestStringSimilarityUnrelated(t *testing.T) {
	assert.Less(t, StringSimilarity("asthma", "zebra"), 0.5)
	assert.Equal(t, 0.0, StringSimilarity("", "asthma"))
	assert.Equal(t, 0.0, StringSimilarity("asthma", ""))
}

func TestStringSimilarityBounded(t *testing.T) {
	pairs := [][2]string{
		{"asthma", "asthma"},
		{"IL6", "interleukin 6"},
		{"metformin", "METFORMIN HYDROCHLORIDE"},
		{"x", "y"},
	}
	for _, p := range pairs {
		s := StringSimilarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
