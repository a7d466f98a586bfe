package store

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robertmeta/pricewatch/model"
)

// durationPattern matches lookback strings like "7d", "2w", "3m", "1y"
var durationPattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

// ParseDuration parses a lookback string like "7d", "2w", "3m", "1y".
// Returns the duration or an error if the format is invalid.
//
// Supported units:
//   - d: days
//   - w: weeks (7 days)
//   - m: months (30 days, approximation)
//   - y: years (365 days, approximation)
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration string is empty")
	}

	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format: %s (expected format: <number><unit>, e.g., 7d, 2w, 3m, 1y)", s)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid number in duration: %s", matches[1])
	}

	var duration time.Duration
	switch matches[2] {
	case "d":
		duration = time.Duration(num) * 24 * time.Hour
	case "w":
		duration = time.Duration(num) * 7 * 24 * time.Hour
	case "m":
		duration = time.Duration(num) * 30 * 24 * time.Hour
	case "y":
		duration = time.Duration(num) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration unit: %s (expected d, w, m, or y)", matches[2])
	}

	return duration, nil
}

// FilterSince returns the samples dated within the given lookback from now.
// Samples with an unparseable date are dropped. An empty since string keeps
// the whole series.
func FilterSince(samples []model.PriceSample, since string, now time.Time) ([]model.PriceSample, error) {
	if since == "" {
		return samples, nil
	}

	d, err := ParseDuration(since)
	if err != nil {
		return nil, fmt.Errorf("failed to parse since: %w", err)
	}

	cutoff := now.Add(-d)
	var out []model.PriceSample
	for _, sample := range samples {
		day, err := time.Parse(dateLayout, sample.Date)
		if err != nil {
			continue
		}
		if !day.Before(cutoff.Truncate(24 * time.Hour)) {
			out = append(out, sample)
		}
	}
	return out, nil
}
