package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertmeta/pricewatch/ident"
	"github.com/robertmeta/pricewatch/logger"
)

func productPage(price string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<title>Fallback Title</title>
	<meta property="og:title" content="Test Widget"/>
	<meta property="product:price:amount" content="%s"/>
	<meta property="og:image" content="/img.png"/>
</head>
<body><h1>Test Widget</h1></body>
</html>`, price)
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newProductServer(t *testing.T, price string, img []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/product.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, productPage(price))
	})
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	})
	return httptest.NewServer(mux)
}

func TestPageFetcher_Fetch(t *testing.T) {
	ts := newProductServer(t, "19.99", pngBytes(t, color.White))
	defer ts.Close()

	f := NewPageFetcher("pricewatch-test", 5*time.Second, nil, logger.NewNop())
	res, err := f.Fetch(ts.URL + "/product.html")
	require.NoError(t, err)

	assert.Equal(t, "19.99", res.Price.StringFixed(2))
	assert.Equal(t, "Test Widget", res.Title)
	assert.Equal(t, ts.URL+"/product.html", res.URL)
	assert.Empty(t, res.Thumbnail, "no thumbnail saver configured")
}

func TestPageFetcher_PriceNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/empty.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>nothing for sale</p></body></html>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	f := NewPageFetcher("pricewatch-test", 5*time.Second, nil, logger.NewNop())
	_, err := f.Fetch(ts.URL + "/empty.html")
	assert.True(t, errors.Is(err, ErrPriceNotFound))
}

func TestPageFetcher_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	f := NewPageFetcher("pricewatch-test", 5*time.Second, nil, logger.NewNop())
	_, err := f.Fetch(ts.URL + "/gone.html")
	assert.Error(t, err)
}

func TestPageFetcher_SavesThumbnail(t *testing.T) {
	ts := newProductServer(t, "19.99", pngBytes(t, color.White))
	defer ts.Close()

	dir := t.TempDir()
	thumbs, err := NewThumbnailSaver(dir, 5*time.Second, logger.NewNop())
	require.NoError(t, err)

	f := NewPageFetcher("pricewatch-test", 5*time.Second, thumbs, logger.NewNop())
	url := ts.URL + "/product.html"
	res, err := f.Fetch(url)
	require.NoError(t, err)

	id := ident.Derive(url)
	assert.Equal(t, "/thumbnails/"+id+".jpg", res.Thumbnail)
	_, err = os.Stat(filepath.Join(dir, id+".jpg"))
	assert.NoError(t, err)
}

func TestThumbnailSaver_WriteOnce(t *testing.T) {
	img := pngBytes(t, color.White)
	ts := newProductServer(t, "19.99", img)
	defer ts.Close()

	dir := t.TempDir()
	thumbs, err := NewThumbnailSaver(dir, 5*time.Second, logger.NewNop())
	require.NoError(t, err)

	ref := thumbs.Save("abc123def4", ts.URL+"/img.png")
	require.Equal(t, "/thumbnails/abc123def4.jpg", ref)

	original, err := os.ReadFile(filepath.Join(dir, "abc123def4.jpg"))
	require.NoError(t, err)

	// A later save for the same identifier must not regenerate the file,
	// even though the source image changed.
	ts2 := newProductServer(t, "19.99", pngBytes(t, color.Black))
	defer ts2.Close()
	ref = thumbs.Save("abc123def4", ts2.URL+"/img.png")
	assert.Equal(t, "/thumbnails/abc123def4.jpg", ref)

	after, err := os.ReadFile(filepath.Join(dir, "abc123def4.jpg"))
	require.NoError(t, err)
	assert.Equal(t, original, after)
}

func TestThumbnailSaver_DownloadFailure(t *testing.T) {
	dir := t.TempDir()
	thumbs, err := NewThumbnailSaver(dir, time.Second, logger.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	ref := thumbs.Save("abc123def4", ts.URL+"/img.png")
	assert.Empty(t, ref, "a failed download yields an empty reference, not an error")
	assert.Empty(t, thumbs.Ref("abc123def4"))
}
