package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"propwatch/models"
	"propwatch/storage"
)

const (
	maxImageBytes    = 20 * 1024 * 1024
	maxImageAttempts = 3
)

// S3Uploader is the slice of storage.S3Uploader the worker needs; tests swap
// in a no-op.
type S3Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// ImageWorker archives listing images. Portals delete their CDN copies when
// a listing goes down, so each pending image is downloaded once, keyed by
// content hash and uploaded to S3. Failures burn an attempt; after three
// the listing is marked failed and left alone.
type ImageWorker struct {
	store      *storage.PostgresStore
	uploader   S3Uploader
	httpClient *http.Client
}

func NewImageWorker(store *storage.PostgresStore, uploader S3Uploader, client *http.Client) *ImageWorker {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ImageWorker{
		store:      store,
		uploader:   uploader,
		httpClient: client,
	}
}

// Run processes pending images in batches on a ticker until ctx is done.
func (w *ImageWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Image worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx, batchSize)
		}
	}
}

func (w *ImageWorker) ProcessBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.GetPendingImageListings(ctx, batchSize)
	if err != nil {
		log.Printf("Image worker: query error: %v", err)
		return
	}
	if len(listings) == 0 {
		return
	}

	var archived, failed int
	for i := range listings {
		l := &listings[i]

		key, err := w.archive(ctx, l)
		if err != nil {
			attempts := l.ImageAttempts + 1
			status := models.ImageStatusPending
			if attempts >= maxImageAttempts {
				status = models.ImageStatusFailed
			}
			if uerr := w.store.UpdateListingImage(ctx, l.ID, status, nil, attempts); uerr != nil {
				log.Printf("Image worker: update %s: %v", l.ID, uerr)
			}
			log.Printf("Image worker: %s attempt %d failed: %v", l.ID, attempts, err)
			failed++
			continue
		}

		if err := w.store.UpdateListingImage(ctx, l.ID, models.ImageStatusArchived, &key, l.ImageAttempts+1); err != nil {
			log.Printf("Image worker: update %s: %v", l.ID, err)
			failed++
			continue
		}
		archived++

		// browse, don't burst
		time.Sleep(200 * time.Millisecond)
	}

	log.Printf("Image worker: archived %d, failed %d of %d", archived, failed, len(listings))
}

// archive downloads one image and uploads it under a content-hash key, so
// the same photo reposted across portals is stored once.
func (w *ImageWorker) archive(ctx context.Context, l *models.Listing) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.ImageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty body")
	}

	hash := sha256.Sum256(data)
	hexHash := hex.EncodeToString(hash[:])

	contentType := resp.Header.Get("Content-Type")
	ext := imageExtension(l.ImageURL, contentType)
	key := fmt.Sprintf("images/%s/%s%s", hexHash[:2], hexHash, ext)

	if contentType == "" {
		contentType = "image/jpeg"
	}
	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return key, nil
}

func imageExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}

	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

// NoOpUploader drains uploads without storing them. Used when S3 is not
// configured and in tests.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := io.Copy(io.Discard, data)
	return err
}
