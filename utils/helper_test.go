package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	cases := []struct {
		name        string
		part, whole string
		want        string
	}{
		{"half", "50", "100", "50"},
		{"zero whole", "10", "0", "0"},
		{"rounded", "1", "3", "33.33"},
		{"over", "150", "100", "150"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Percentage(decimal.RequireFromString(tc.part), decimal.RequireFromString(tc.whole))
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestAddMonthsClamped(t *testing.T) {
	jan31 := time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		months int
		want   time.Time
	}{
		{1, time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC)},
		{2, time.Date(2024, time.March, 31, 9, 0, 0, 0, time.UTC)},
		{13, time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AddMonthsClamped(jan31, tc.months, 31))
	}
}

func TestUniqueSlice(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, UniqueSlice([]int{3, 1, 3, 2, 1}))
	assert.Nil(t, UniqueSlice[int](nil))
}

func TestParseDateParam(t *testing.T) {
	d, err := ParseDateParam("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDateParam("")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseDateParam("05/03/2024")
	assert.Error(t, err)
}

func TestYearRange(t *testing.T) {
	from, to := YearRange(2023)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestNormalizePhone(t *testing.T) {
	t.Setenv("DEFAULT_PHONE_REGION", "US")

	got, err := NormalizePhone("(650) 253-0000")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", got)

	got, err = NormalizePhone("  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NormalizePhone("12")
	assert.Error(t, err)
}

func TestRankByDistance(t *testing.T) {
	names := []string{"Jonathan Smith", "Joan Smyth", "John Smith", "Mary Jones"}
	got := RankByDistance(names, "john smith", func(s string) string { return s })
	assert.Equal(t, "John Smith", got[0])
	assert.Equal(t, "Mary Jones", got[len(got)-1])
}
