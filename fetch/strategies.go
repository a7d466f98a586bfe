package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// priceStrategy tries to pull a price out of the document. ok is false when
// the strategy does not apply to this page, in which case the next one in
// priority order is tried.
type priceStrategy func(doc *goquery.Selection) (decimal.Decimal, bool)

// strategies in priority order: the structured product meta tag first, then
// the common storefront price selectors. First success wins.
var strategies = []priceStrategy{
	metaPriceAmount,
	bySelector(".price"),
	bySelector(".regular-price"),
	bySelector(`span[data-price-type="finalPrice"]`),
	bySelector(".product-price"),
}

// ExtractPrice runs the strategies in order and returns the first price found.
func ExtractPrice(doc *goquery.Selection) (decimal.Decimal, bool) {
	for _, strategy := range strategies {
		if price, ok := strategy(doc); ok {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

// ExtractTitle returns the page's display title: the og:title meta when
// present, otherwise the document title.
func ExtractTitle(doc *goquery.Selection) string {
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func metaPriceAmount(doc *goquery.Selection) (decimal.Decimal, bool) {
	content, ok := doc.Find(`meta[property="product:price:amount"]`).Attr("content")
	if !ok {
		return decimal.Decimal{}, false
	}
	return parsePrice(content)
}

// bySelector extracts the price from the first element matching the CSS
// selector, preferring its text over its content attribute.
func bySelector(selector string) priceStrategy {
	return func(doc *goquery.Selection) (decimal.Decimal, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return decimal.Decimal{}, false
		}

		text := strings.TrimSpace(sel.Text())
		if text == "" {
			text, _ = sel.Attr("content")
		}
		return parsePrice(text)
	}
}

// parsePrice normalizes a raw price string (currency symbol, thousands
// separators, surrounding whitespace) and parses it as a decimal.
func parsePrice(raw string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer("$", "", "€", "", "£", "", "R", "", ",", "").Replace(raw)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}
