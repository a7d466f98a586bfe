// Package fetch retrieves current price, title and image for a product page.
// It is the external-capability boundary the tracker drives: a fetch either
// fully succeeds or fails as a unit, and bounds its own wait with a fixed
// timeout.
package fetch

import (
	"errors"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/robertmeta/pricewatch/ident"
	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
)

// ErrPriceNotFound means the page loaded but no extraction strategy yielded
// a parseable price.
var ErrPriceNotFound = errors.New("price element not found")

// Fetcher is the capability contract consumed by the tracker.
type Fetcher interface {
	Fetch(url string) (*model.ItemResult, error)
}

// PageFetcher fetches retail product pages with colly and extracts item data
// through the prioritized strategies in strategies.go. As a side effect it
// saves a write-once thumbnail keyed by the item's identifier.
type PageFetcher struct {
	userAgent string
	timeout   time.Duration
	thumbs    *ThumbnailSaver // nil disables thumbnails
	log       logger.Logger
}

// NewPageFetcher creates a PageFetcher. thumbs may be nil.
func NewPageFetcher(userAgent string, timeout time.Duration, thumbs *ThumbnailSaver, log logger.Logger) *PageFetcher {
	return &PageFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		thumbs:    thumbs,
		log:       log,
	}
}

// Fetch visits the page once and extracts the item data. There is no retry;
// the caller decides what a failed cycle means.
func (f *PageFetcher) Fetch(url string) (*model.ItemResult, error) {
	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	c.SetRequestTimeout(f.timeout)

	var (
		result     *model.ItemResult
		extractErr error
	)

	c.OnHTML("html", func(e *colly.HTMLElement) {
		doc := e.DOM

		price, ok := ExtractPrice(doc)
		if !ok {
			extractErr = ErrPriceNotFound
			return
		}

		res := &model.ItemResult{
			Price: price,
			Title: ExtractTitle(doc),
			URL:   url,
		}

		if f.thumbs != nil {
			if imgURL, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && imgURL != "" {
				res.Thumbnail = f.thumbs.Save(ident.Derive(url), e.Request.AbsoluteURL(imgURL))
			}
		}

		result = res
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if extractErr != nil {
		return nil, fmt.Errorf("%s: %w", url, extractErr)
	}
	if result == nil {
		return nil, fmt.Errorf("no parseable document at %s", url)
	}

	f.log.Debug("fetched item",
		logger.String("url", url),
		logger.String("price", result.Price.StringFixed(2)))
	return result, nil
}
