// Package fetch downloads a work item's audio files into the scratch
// directory. Downloads are at-least-once with checksum verification:
// a file already on disk with a matching digest is never re-downloaded,
// and a mismatching one is fetched again.
package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/services"
	"voxcrawl/internal/stage"
)

// Handler is the download stage. Per-sub-item failures are recorded on the
// sub-items; the batch always runs to completion unless the context is
// cancelled.
type Handler struct {
	cfg        *config.Config
	store      *checkpoint.Store
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	lastCall time.Time
}

// NewHandler constructs the download stage handler.
func NewHandler(cfg *config.Config, store *checkpoint.Store, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Source.RequestTimeout) * time.Second},
		logger:     logging.NewComponentLogger(logger, "fetch"),
	}
}

// RawDir returns the directory downloads for an item land in.
func (h *Handler) RawDir(item *checkpoint.WorkItem) string {
	return filepath.Join(h.cfg.Paths.WorkDir, item.ID, "raw")
}

func (h *Handler) Prepare(ctx context.Context, item *checkpoint.WorkItem) error {
	if len(item.Files) == 0 {
		return services.Wrap(services.ErrValidation, "downloading", "validate inputs",
			"work item has no files to download; run discovery first", nil)
	}
	if err := os.MkdirAll(h.RawDir(item), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "downloading", "create raw directory", item.ID, err)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, item *checkpoint.WorkItem) error {
	logger := logging.WithContext(ctx, h.logger)
	rawDir := h.RawDir(item)

	// Re-verify previously fetched files; corrupt or missing ones rejoin
	// the download set.
	if _, err := h.store.VerifyFetched(item, rawDir); err != nil {
		return err
	}

	logger.Info("downloading audio files",
		logging.Int("total", item.Stats.Total),
		logging.Int("already_fetched", item.Stats.Fetched))

	for i := range item.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		sub := &item.Files[i]
		if sub.Fetched {
			continue
		}

		size, checksum, err := h.download(ctx, sub.URL, filepath.Join(rawDir, sub.Filename))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("download failed",
				logging.String("filename", sub.Filename),
				logging.Error(err))
			if markErr := h.store.MarkSubItemFailed(item, sub.Filename, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		if err := h.store.MarkSubItemFetched(item, sub.Filename, checksum, size); err != nil {
			return err
		}
	}

	logger.Info("download batch finished",
		logging.Int("fetched", item.Stats.Fetched),
		logging.Int("total", item.Stats.Total))
	return nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.httpClient == nil {
		return stage.Unhealthy("fetch", "no HTTP client")
	}
	return stage.Healthy("fetch")
}

// download streams the URL to destPath via a temp file and rename, returning
// the byte size and MD5 digest. No partial file survives a failure.
func (h *Handler) download(ctx context.Context, sourceURL, destPath string) (int64, string, error) {
	if err := h.throttle(ctx); err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", h.cfg.Source.UserAgent)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("%s returned %s", sourceURL, resp.Status)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}

	hasher := md5.New()
	size, err := io.Copy(io.MultiWriter(out, hasher), resp.Body)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return 0, "", fmt.Errorf("stream body: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, "", fmt.Errorf("rename into place: %w", err)
	}

	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *Handler) throttle(ctx context.Context) error {
	delay := time.Duration(h.cfg.Source.RequestDelay * float64(time.Second))
	h.mu.Lock()
	wait := delay - time.Since(h.lastCall)
	h.lastCall = time.Now().Add(wait)
	h.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
