// Package transform converts a work item's downloaded audio into clean
// training-ready WAV clips. Each clip is denoised and loudness-normalized
// with ffmpeg; outputs are written to a temporary file and renamed so a
// failed conversion never leaves a partial WAV behind.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/services"
	"voxcrawl/internal/stage"
)

// CommandRunner executes an external command and returns an error describing
// its failure, if any. Tests inject a stub to avoid requiring ffmpeg.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Handler is the audio processing stage. Per-sub-item failures are recorded
// on the sub-items and never abort the batch; only context cancellation does.
type Handler struct {
	cfg    *config.Config
	store  *checkpoint.Store
	logger *slog.Logger
	run    CommandRunner
}

// NewHandler constructs the audio processing stage handler.
func NewHandler(cfg *config.Config, store *checkpoint.Store, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "transform"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner replaces the ffmpeg invoker. Intended for tests.
func (h *Handler) WithCommandRunner(r CommandRunner) *Handler {
	if r != nil {
		h.run = r
	}
	return h
}

// RawDir returns the directory an item's downloaded files live in.
func (h *Handler) RawDir(item *checkpoint.WorkItem) string {
	return filepath.Join(h.cfg.Paths.WorkDir, item.ID, "raw")
}

// WavDir returns the directory an item's converted clips land in.
func (h *Handler) WavDir(item *checkpoint.WorkItem) string {
	return filepath.Join(h.cfg.Paths.WorkDir, item.ID, "wav")
}

// WavName maps a source audio filename to its converted clip name.
func WavName(filename string) string {
	ext := filepath.Ext(filename)
	return strings.TrimSuffix(filename, ext) + ".wav"
}

func (h *Handler) Prepare(ctx context.Context, item *checkpoint.WorkItem) error {
	if item.Stats.Fetched == 0 {
		return services.Wrap(services.ErrValidation, "processing", "validate inputs",
			"work item has no downloaded files to process", nil)
	}
	if err := os.MkdirAll(h.WavDir(item), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "processing", "create wav directory", item.ID, err)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, item *checkpoint.WorkItem) error {
	logger := logging.WithContext(ctx, h.logger)
	rawDir := h.RawDir(item)
	wavDir := h.WavDir(item)

	logger.Info("processing audio files",
		logging.Int("fetched", item.Stats.Fetched),
		logging.Int("already_transformed", item.Stats.Transformed))

	for i := range item.Files {
		sub := &item.Files[i]
		if !sub.Fetched || sub.Transformed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrTimeout, "processing", "convert audio", item.ID, err)
		}

		src := filepath.Join(rawDir, sub.Filename)
		dst := filepath.Join(wavDir, WavName(sub.Filename))
		if err := h.convert(ctx, src, dst); err != nil {
			logger.Warn("audio conversion failed",
				logging.String("filename", sub.Filename),
				logging.Error(err))
			if markErr := h.store.MarkSubItemFailed(item, sub.Filename, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		if err := h.store.MarkSubItemTransformed(item, sub.Filename); err != nil {
			return err
		}
		logger.Debug("converted audio file", logging.String("filename", sub.Filename))
	}

	logger.Info("audio processing finished",
		logging.Int("transformed", item.Stats.Transformed),
		logging.Int("total", item.Stats.Total))
	return nil
}

// convert runs ffmpeg to produce a mono PCM WAV at the configured sample
// rate, denoised and normalized toward the target loudness. The output is
// staged under a temporary name and renamed only after ffmpeg succeeds.
func (h *Handler) convert(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("source audio missing: %w", err)
	}

	tmp := dst + ".tmp"
	args := h.ffmpegArgs(src, tmp)
	if err := h.run(ctx, h.cfg.FFmpegBinary(), args...); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, "processing", "run ffmpeg", filepath.Base(src), err)
	}
	if _, err := os.Stat(tmp); err != nil {
		return services.Wrap(services.ErrExternalTool, "processing", "run ffmpeg",
			"no output produced for "+filepath.Base(src), nil)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize converted audio: %w", err)
	}
	return nil
}

// ffmpegArgs builds the conversion command line. The explicit -f wav keeps
// ffmpeg from guessing the container from the temporary file's extension.
func (h *Handler) ffmpegArgs(src, dst string) []string {
	filter := fmt.Sprintf("afftdn,loudnorm=I=%.1f:TP=-1.5", h.cfg.Audio.TargetRMSDb)
	return []string{
		"-y", "-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", src,
		"-ac", "1",
		"-ar", strconv.Itoa(h.cfg.Audio.SampleRate),
		"-af", filter,
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dst,
	}
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(h.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy("transform", fmt.Sprintf("%s not found in PATH", h.cfg.FFmpegBinary()))
	}
	return stage.Healthy("transform")
}
