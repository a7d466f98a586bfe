package fetch

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/robertmeta/pricewatch/logger"
)

// thumbWidth bounds the stored image width; smaller images are kept as-is.
const thumbWidth = 320

// ThumbnailSaver downloads product images and stores one thumbnail per item
// identifier. A thumbnail is written at most once: if the file already
// exists it is never regenerated, even if the source page changes.
type ThumbnailSaver struct {
	dir    string
	client *http.Client
	log    logger.Logger
}

// NewThumbnailSaver creates the thumbnail directory if needed.
func NewThumbnailSaver(dir string, timeout time.Duration, log logger.Logger) (*ThumbnailSaver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	return &ThumbnailSaver{
		dir:    dir,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}, nil
}

// Ref returns the reference under which an item's thumbnail is served, or ""
// if none has been stored yet.
func (t *ThumbnailSaver) Ref(id string) string {
	if _, err := os.Stat(t.path(id)); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return "/thumbnails/" + id + ".jpg"
}

// Save fetches imgURL, scales it down and writes it for the identifier
// unless a thumbnail already exists. Failures are logged and yield an empty
// reference; they never fail the surrounding fetch.
func (t *ThumbnailSaver) Save(id, imgURL string) string {
	if ref := t.Ref(id); ref != "" {
		return ref
	}

	resp, err := t.client.Get(imgURL)
	if err != nil {
		t.log.Warn("failed to download thumbnail",
			logger.String("item", id), logger.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.log.Warn("thumbnail download returned non-200",
			logger.String("item", id), logger.Int("status", resp.StatusCode))
		return ""
	}

	img, err := imaging.Decode(resp.Body)
	if err != nil {
		t.log.Warn("failed to decode thumbnail image",
			logger.String("item", id), logger.Error(err))
		return ""
	}

	if img.Bounds().Dx() > thumbWidth {
		img = imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, t.path(id)); err != nil {
		t.log.Warn("failed to save thumbnail",
			logger.String("item", id), logger.Error(err))
		return ""
	}

	t.log.Info("saved thumbnail", logger.String("item", id))
	return t.Ref(id)
}

// Dir returns the directory thumbnails are stored in.
func (t *ThumbnailSaver) Dir() string {
	return t.dir
}

func (t *ThumbnailSaver) path(id string) string {
	return filepath.Join(t.dir, id+".jpg")
}
