package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
)

func newTestStore(t *testing.T) (*ItemStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, "abc123def4", logger.NewNop())
	require.NoError(t, err)
	return s, dir
}

func fixedClock(day string) func() time.Time {
	return func() time.Time {
		ts, _ := time.Parse("2006-01-02", day)
		return ts
	}
}

func TestNew_CreatesBackingFiles(t *testing.T) {
	s, dir := newTestStore(t)

	data, err := os.ReadFile(filepath.Join(dir, "abc123def4_prices.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Date,Price\n", string(data), "new price file should hold only the header")

	_, err = os.Stat(filepath.Join(dir, "abc123def4_metadata.json"))
	require.NoError(t, err)
	assert.True(t, s.LoadMetadata().IsEmpty())
}

func TestNew_Idempotent(t *testing.T) {
	s, dir := newTestStore(t)
	s.Now = fixedClock("2024-01-01")

	price := decimal.RequireFromString("9.99")
	s.SavePrice(&price)

	// Reopening the store must not clobber existing data.
	s2, err := New(dir, "abc123def4", logger.NewNop())
	require.NoError(t, err)

	history := s2.LoadPriceHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "9.99", history[0].Price)
}

func TestSavePrice_DailyDedup(t *testing.T) {
	s, _ := newTestStore(t)
	s.Now = fixedClock("2024-01-01")

	first := decimal.RequireFromString("9.99")
	second := decimal.RequireFromString("12.34")
	s.SavePrice(&first)
	s.SavePrice(&second)

	history := s.LoadPriceHistory()
	require.Len(t, history, 1, "second save on the same day must be a no-op")
	assert.Equal(t, "2024-01-01", history[0].Date)
	assert.Equal(t, "9.99", history[0].Price, "the first value written wins")
}

func TestSavePrice_SeparateDays(t *testing.T) {
	s, _ := newTestStore(t)

	s.Now = fixedClock("2024-01-01")
	p1 := decimal.RequireFromString("9.99")
	s.SavePrice(&p1)

	s.Now = fixedClock("2024-01-02")
	p2 := decimal.RequireFromString("8.49")
	s.SavePrice(&p2)

	history := s.LoadPriceHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "9.99", history[0].Price)
	assert.Equal(t, "8.49", history[1].Price)
}

func TestSavePrice_TwoDecimalPlaces(t *testing.T) {
	s, _ := newTestStore(t)
	s.Now = fixedClock("2024-01-01")

	price := decimal.RequireFromString("1299.5")
	s.SavePrice(&price)

	history := s.LoadPriceHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "1299.50", history[0].Price)
}

func TestSavePrice_NilIsNoOp(t *testing.T) {
	s, _ := newTestStore(t)

	s.SavePrice(nil)

	assert.Empty(t, s.LoadPriceHistory())
}

func TestLoadPriceHistory_MissingFile(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "abc123def4_prices.csv")))

	assert.Empty(t, s.LoadPriceHistory(), "missing file must yield an empty series, not an error")
}

func TestLoadPriceHistory_CorruptFile(t *testing.T) {
	s, dir := newTestStore(t)
	err := os.WriteFile(filepath.Join(dir, "abc123def4_prices.csv"),
		[]byte("Date,Price,Extra\n1,2,3\n"), 0o644)
	require.NoError(t, err)

	assert.Empty(t, s.LoadPriceHistory())
}

func TestLoadPriceHistory_SortsByDate(t *testing.T) {
	s, dir := newTestStore(t)
	content := "Date,Price\n2024-03-01,3.00\n2024-01-01,1.00\n2024-02-01,2.00\n"
	err := os.WriteFile(filepath.Join(dir, "abc123def4_prices.csv"), []byte(content), 0o644)
	require.NoError(t, err)

	history := s.LoadPriceHistory()
	require.Len(t, history, 3)
	assert.Equal(t, "2024-01-01", history[0].Date)
	assert.Equal(t, "2024-02-01", history[1].Date)
	assert.Equal(t, "2024-03-01", history[2].Date)
}

func TestSaveMetadata_Overwrites(t *testing.T) {
	s, _ := newTestStore(t)

	s.SaveMetadata(model.Metadata{
		Price:      decimal.RequireFromString("9.99"),
		Title:      "Widget",
		URL:        "https://example.com/widget.html",
		LastUpdate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	s.SaveMetadata(model.Metadata{
		Price:      decimal.RequireFromString("8.49"),
		Title:      "Widget v2",
		URL:        "https://example.com/widget.html",
		LastUpdate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	md := s.LoadMetadata()
	assert.Equal(t, "Widget v2", md.Title, "metadata is fully replaced, never merged")
	assert.Equal(t, "8.49", md.Price.StringFixed(2))
}

func TestLoadMetadata_CorruptFile(t *testing.T) {
	s, dir := newTestStore(t)
	err := os.WriteFile(filepath.Join(dir, "abc123def4_metadata.json"), []byte("{not json"), 0o644)
	require.NoError(t, err)

	assert.True(t, s.LoadMetadata().IsEmpty())
}
