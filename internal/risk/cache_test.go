package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssessment(address string, score float64) *RiskAssessment {
	return &RiskAssessment{
		ID:           "asmt_test",
		Address:      address,
		RiskScore:    score,
		RiskCategory: Categorize(score),
		Timestamp:    time.Now(),
		Tier:         TierMock,
	}
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	_, ok := c.Get("0xabc")
	assert.False(t, ok)

	c.Set("0xabc", testAssessment("0xabc", 42))

	got, ok := c.Get("0xabc")
	require.True(t, ok)
	assert.Equal(t, 42.0, got.RiskScore)
}

func TestMemoryCache_CaseInsensitiveKeys(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Set("0xABCDEF", testAssessment("0xabcdef", 10))

	_, ok := c.Get("0xabcdef")
	assert.True(t, ok)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	c.Set("0xabc", testAssessment("0xabc", 42))

	_, ok := c.Get("0xabc")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = c.Get("0xabc")
	assert.False(t, ok, "stale entry must not be returned")
}

func TestMemoryCache_OverwriteSupersedes(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Set("0xabc", testAssessment("0xabc", 42))
	c.Set("0xabc", testAssessment("0xabc", 77))

	got, ok := c.Get("0xabc")
	require.True(t, ok)
	assert.Equal(t, 77.0, got.RiskScore)
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Set("0xabc", testAssessment("0xabc", 42))

	first, _ := c.Get("0xabc")
	first.RiskScore = 99

	second, _ := c.Get("0xabc")
	assert.Equal(t, 42.0, second.RiskScore, "caller mutation must not leak into the cache")
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Set("0xabc", testAssessment("0xabc", 42))
	c.Clear()

	_, ok := c.Get("0xabc")
	assert.False(t, ok)
}

func TestMemoryCache_DefaultTTL(t *testing.T) {
	c := NewMemoryCache(0)
	assert.Equal(t, DefaultCacheTTL, c.ttl)
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		score float64
		want  Category
	}{
		{0, CategoryLow},
		{24.9, CategoryLow},
		{25, CategoryMedium},
		{49.9, CategoryMedium},
		{50, CategoryHigh},
		{74.9, CategoryHigh},
		{75, CategoryVeryHigh},
		{100, CategoryVeryHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Categorize(tc.score), "score %v", tc.score)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-5))
	assert.Equal(t, 100.0, ClampScore(120))
	assert.Equal(t, 55.5, ClampScore(55.5))
}
