package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertmeta/pricewatch/model"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"3m", 90 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"", 0, true},
		{"7", 0, true},
		{"d7", 0, true},
		{"7h", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, got, "input %q", tt.input)
	}
}

func TestFilterSince(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	samples := []model.PriceSample{
		{Date: "2024-01-01", Price: "10.00"},
		{Date: "2024-03-05", Price: "9.50"},
		{Date: "2024-03-09", Price: "9.00"},
	}

	filtered, err := FilterSince(samples, "7d", now)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "2024-03-05", filtered[0].Date)
	assert.Equal(t, "2024-03-09", filtered[1].Date)
}

func TestFilterSince_EmptyKeepsAll(t *testing.T) {
	samples := []model.PriceSample{{Date: "2024-01-01", Price: "10.00"}}

	filtered, err := FilterSince(samples, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, samples, filtered)
}

func TestFilterSince_InvalidDuration(t *testing.T) {
	_, err := FilterSince(nil, "nope", time.Now())
	assert.Error(t, err)
}

func TestFilterSince_DropsUnparseableDates(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	samples := []model.PriceSample{
		{Date: "yesterday", Price: "1.00"},
		{Date: "2024-03-09", Price: "2.00"},
	}

	filtered, err := FilterSince(samples, "1w", now)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "2024-03-09", filtered[0].Date)
}
