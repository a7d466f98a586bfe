// Package store persists a single tracked item's price series and latest
// metadata snapshot as flat files, so the data stays readable by external
// tools (spreadsheets, shell scripts) while the process runs.
package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
)

// dateLayout is the calendar-day format used in the CSV series.
const dateLayout = "2006-01-02"

// header is the first row of every price file.
var header = []string{"Date", "Price"}

// ItemStore manages the on-disk files for one item identifier:
// <id>_prices.csv (append-only, at most one row per calendar day) and
// <id>_metadata.json (fully replaced on every successful fetch).
//
// Read methods never fail outward: a missing or unreadable file yields an
// empty result and an error log, so callers degrade gracefully instead of
// erroring out.
type ItemStore struct {
	id           string
	priceFile    string
	metadataFile string
	log          logger.Logger

	// Now is the clock used to date new samples. For testing; defaults to time.Now.
	Now func() time.Time
}

// New creates an ItemStore for the given identifier, creating the backing
// files with an empty series / empty snapshot if they do not exist yet.
// Safe to call at every process start; existing data is never clobbered.
func New(dataDir, id string, log logger.Logger) (*ItemStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &ItemStore{
		id:           id,
		priceFile:    filepath.Join(dataDir, id+"_prices.csv"),
		metadataFile: filepath.Join(dataDir, id+"_metadata.json"),
		log:          log,
		Now:          time.Now,
	}
	s.ensureFiles()
	return s, nil
}

// ensureFiles creates the price CSV (header only) and an empty metadata
// snapshot when missing.
func (s *ItemStore) ensureFiles() {
	if _, err := os.Stat(s.priceFile); errors.Is(err, fs.ErrNotExist) {
		f, err := os.Create(s.priceFile)
		if err != nil {
			s.log.Error("failed to create price file",
				logger.String("item", s.id), logger.Error(err))
		} else {
			w := csv.NewWriter(f)
			_ = w.Write(header)
			w.Flush()
			f.Close()
			s.log.Info("created new price file", logger.String("path", s.priceFile))
		}
	}

	if _, err := os.Stat(s.metadataFile); errors.Is(err, fs.ErrNotExist) {
		s.SaveMetadata(model.Metadata{})
	}
}

// SavePrice appends (today, price) to the series unless a sample already
// exists for today; a second save on the same calendar day is a silent no-op.
// The series is re-read before every write so the file stays a consistent
// append-only log even if something else inspected or repaired it.
// A nil price is ignored with a warning.
func (s *ItemStore) SavePrice(price *decimal.Decimal) {
	if price == nil {
		s.log.Warn("attempted to save absent price", logger.String("item", s.id))
		return
	}

	date := s.Now().Format(dateLayout)
	for _, sample := range s.LoadPriceHistory() {
		if sample.Date == date {
			return
		}
	}

	f, err := os.OpenFile(s.priceFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.log.Error("failed to open price file for append",
			logger.String("item", s.id), logger.Error(err))
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write([]string{date, price.StringFixed(2)})
	w.Flush()
	if err := w.Error(); err != nil {
		s.log.Error("failed to append price",
			logger.String("item", s.id), logger.Error(err))
		return
	}

	s.log.Info("saved new price",
		logger.String("item", s.id),
		logger.String("date", date),
		logger.String("price", price.StringFixed(2)))
}

// SaveMetadata replaces the metadata snapshot. Write failures are logged,
// not propagated; the worst case is a stale snapshot, never a crashed batch.
func (s *ItemStore) SaveMetadata(md model.Metadata) {
	data, err := json.Marshal(md)
	if err != nil {
		s.log.Error("failed to encode metadata",
			logger.String("item", s.id), logger.Error(err))
		return
	}
	if err := os.WriteFile(s.metadataFile, data, 0o644); err != nil {
		s.log.Error("failed to save metadata",
			logger.String("item", s.id), logger.Error(err))
		return
	}
	s.log.Debug("saved metadata", logger.String("item", s.id))
}

// LoadPriceHistory returns the price series sorted by date. A missing or
// unreadable file yields an empty series.
func (s *ItemStore) LoadPriceHistory() []model.PriceSample {
	f, err := os.Open(s.priceFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Error("failed to open price file",
				logger.String("item", s.id), logger.Error(err))
		}
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		s.log.Error("failed to read price history",
			logger.String("item", s.id), logger.Error(err))
		return nil
	}

	var samples []model.PriceSample
	for i, row := range rows {
		if i == 0 && row[0] == header[0] {
			continue
		}
		samples = append(samples, model.PriceSample{Date: row[0], Price: row[1]})
	}

	// Date is the sort key, not row position; the file may have been
	// reordered by external edits.
	sort.Slice(samples, func(i, j int) bool { return samples[i].Date < samples[j].Date })
	return samples
}

// LoadMetadata returns the latest snapshot, or an empty one if the file is
// missing or unreadable.
func (s *ItemStore) LoadMetadata() model.Metadata {
	data, err := os.ReadFile(s.metadataFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Error("failed to read metadata",
				logger.String("item", s.id), logger.Error(err))
		}
		return model.Metadata{}
	}

	var md model.Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		s.log.Error("failed to decode metadata",
			logger.String("item", s.id), logger.Error(err))
		return model.Metadata{}
	}
	return md
}
