// Package assemble builds the final voice-reference artifacts for a work
// item: a single reference clip with its transcription, a concatenated
// training track with silence gaps between clips, and a metadata document.
// Clips without a usable transcript are excluded from every artifact.
package assemble

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/ffprobe"
	"voxcrawl/internal/fileutil"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/services"
	"voxcrawl/internal/stage"
	"voxcrawl/internal/textutil"
	"voxcrawl/internal/transform"
)

// Artifact file names written into the item's output directory.
const (
	ReferenceWav = "reference.wav"
	ReferenceTxt = "reference.txt"
	TrainWav     = "train.wav"
	TrainTxt     = "train.txt"
	MetadataJSON = "metadata.json"
)

// CommandRunner executes an external command. Tests inject a stub.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Prober reports the duration of an audio file in seconds.
type Prober func(ctx context.Context, path string) (float64, error)

// Metadata is the document written alongside the audio artifacts.
type Metadata struct {
	ChampionID     string  `json:"champion_id"`
	Name           string  `json:"name"`
	TotalClips     int     `json:"total_clips"`
	TotalDuration  float64 `json:"total_duration"`
	SampleRate     int     `json:"sample_rate"`
	ProcessingDate string  `json:"processing_date"`
}

type clip struct {
	path       string
	transcript string
	duration   float64
}

// Handler is the finalize stage.
type Handler struct {
	cfg    *config.Config
	store  *checkpoint.Store
	logger *slog.Logger
	run    CommandRunner
	probe  Prober
}

// NewHandler constructs the finalize stage handler.
func NewHandler(cfg *config.Config, store *checkpoint.Store, logger *slog.Logger) *Handler {
	h := &Handler{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "assemble"),
	}
	h.run = func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
		}
		return nil
	}
	h.probe = func(ctx context.Context, path string) (float64, error) {
		result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		if err != nil {
			return 0, err
		}
		return result.DurationSeconds(), nil
	}
	return h
}

// WithCommandRunner replaces the ffmpeg invoker. Intended for tests.
func (h *Handler) WithCommandRunner(r CommandRunner) *Handler {
	if r != nil {
		h.run = r
	}
	return h
}

// WithProber replaces the duration prober. Intended for tests.
func (h *Handler) WithProber(p Prober) *Handler {
	if p != nil {
		h.probe = p
	}
	return h
}

// OutputDir returns the directory an item's final artifacts land in.
func (h *Handler) OutputDir(item *checkpoint.WorkItem) string {
	return filepath.Join(h.cfg.Paths.OutputDir, item.ID)
}

func (h *Handler) scratchDir(item *checkpoint.WorkItem) string {
	return filepath.Join(h.cfg.Paths.WorkDir, item.ID, "assemble")
}

func (h *Handler) Prepare(ctx context.Context, item *checkpoint.WorkItem) error {
	if item.Stats.Transformed == 0 {
		return services.Wrap(services.ErrValidation, "concatenating", "validate inputs",
			"work item has no processed files to assemble", nil)
	}
	if err := os.MkdirAll(h.OutputDir(item), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "concatenating", "create output directory", item.ID, err)
	}
	if err := os.MkdirAll(h.scratchDir(item), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "concatenating", "create scratch directory", item.ID, err)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, item *checkpoint.WorkItem) error {
	logger := logging.WithContext(ctx, h.logger)

	clips, skipped, err := h.collectClips(ctx, item, logger)
	if err != nil {
		return err
	}
	logger.Info("assembling reference artifacts",
		logging.Int("clips", len(clips)),
		logging.Int("skipped", skipped))

	outDir := h.OutputDir(item)

	reference, err := h.selectReference(clips)
	if err != nil {
		return err
	}
	if err := h.writeReference(reference, outDir); err != nil {
		return err
	}
	logger.Info("selected reference clip",
		logging.String("clip", filepath.Base(reference.path)),
		logging.Float64("duration", reference.duration))

	if err := h.concatenate(ctx, item, clips, outDir); err != nil {
		return err
	}
	if err := h.writeTrainText(clips, outDir); err != nil {
		return err
	}

	totalDuration := trainDuration(clips, h.cfg.Audio.SilenceDuration)
	if err := h.writeMetadata(item, len(clips), totalDuration, outDir); err != nil {
		return err
	}

	logger.Info("artifacts written",
		logging.String("output_dir", outDir),
		logging.Int("clips", len(clips)),
		logging.Float64("train_duration", totalDuration))
	return nil
}

// collectClips gathers the converted clips that carry a usable transcript,
// probing each one for its duration. Clips that fail probing are dropped
// the same way unreadable files are dropped from the training set.
func (h *Handler) collectClips(ctx context.Context, item *checkpoint.WorkItem, logger *slog.Logger) ([]clip, int, error) {
	wavDir := filepath.Join(h.cfg.Paths.WorkDir, item.ID, "wav")
	clips := make([]clip, 0, len(item.Files))
	skipped := 0

	for i := range item.Files {
		sub := &item.Files[i]
		if !sub.Transformed {
			continue
		}
		if !textutil.ValidTranscript(sub.Transcript) {
			skipped++
			continue
		}
		path := filepath.Join(wavDir, transform.WavName(sub.Filename))
		if _, err := os.Stat(path); err != nil {
			logger.Warn("converted clip missing on disk", logging.String("filename", sub.Filename))
			skipped++
			continue
		}
		duration, err := h.probe(ctx, path)
		if err != nil {
			logger.Warn("clip probe failed",
				logging.String("filename", sub.Filename),
				logging.Error(err))
			skipped++
			continue
		}
		clips = append(clips, clip{
			path:       path,
			transcript: textutil.QuotedDialogue(sub.Transcript),
			duration:   duration,
		})
	}

	if len(clips) == 0 {
		return nil, skipped, services.Wrap(services.ErrValidation, "concatenating", "collect clips",
			"no files with valid transcripts found", nil)
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].path < clips[j].path })
	return clips, skipped, nil
}

// selectReference picks the longest clip under the configured ceiling.
func (h *Handler) selectReference(clips []clip) (clip, error) {
	maxSeconds := h.cfg.Audio.MaxReferenceSeconds
	best := -1
	for i, c := range clips {
		if c.duration >= maxSeconds {
			continue
		}
		if best < 0 || c.duration > clips[best].duration {
			best = i
		}
	}
	if best < 0 {
		return clip{}, services.Wrap(services.ErrValidation, "concatenating", "select reference",
			fmt.Sprintf("no clip shorter than %gs available for reference", maxSeconds), nil)
	}
	return clips[best], nil
}

func (h *Handler) writeReference(reference clip, outDir string) error {
	dst := filepath.Join(outDir, ReferenceWav)
	tmp := dst + ".tmp"
	if err := fileutil.CopyFile(reference.path, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy reference clip: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize reference clip: %w", err)
	}
	return fileutil.WriteFileAtomic(filepath.Join(outDir, ReferenceTxt), []byte(reference.transcript), 0o644)
}

// concatenate joins the clips into a single training track, inserting a
// generated silence gap between consecutive clips.
func (h *Handler) concatenate(ctx context.Context, item *checkpoint.WorkItem, clips []clip, outDir string) error {
	scratch := h.scratchDir(item)
	sampleRate := h.cfg.Audio.SampleRate

	silencePath := filepath.Join(scratch, "silence.wav")
	silenceArgs := []string{
		"-y", "-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", sampleRate),
		"-t", fmt.Sprintf("%.3f", h.cfg.Audio.SilenceDuration),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		silencePath,
	}
	if err := h.run(ctx, h.cfg.FFmpegBinary(), silenceArgs...); err != nil {
		return services.Wrap(services.ErrExternalTool, "concatenating", "generate silence", item.ID, err)
	}

	listPath := filepath.Join(scratch, "concat.txt")
	var list strings.Builder
	for i, c := range clips {
		if i > 0 {
			fmt.Fprintf(&list, "file '%s'\n", silencePath)
		}
		fmt.Fprintf(&list, "file '%s'\n", c.path)
	}
	if err := fileutil.WriteFileAtomic(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	dst := filepath.Join(outDir, TrainWav)
	tmp := dst + ".tmp"
	concatArgs := []string{
		"-y", "-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		tmp,
	}
	if err := h.run(ctx, h.cfg.FFmpegBinary(), concatArgs...); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, "concatenating", "concatenate clips", item.ID, err)
	}
	if _, err := os.Stat(tmp); err != nil {
		return services.Wrap(services.ErrExternalTool, "concatenating", "concatenate clips",
			"no training track produced for "+item.ID, nil)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize training track: %w", err)
	}
	return nil
}

func (h *Handler) writeTrainText(clips []clip, outDir string) error {
	lines := make([]string, 0, len(clips))
	for _, c := range clips {
		lines = append(lines, c.transcript)
	}
	return fileutil.WriteFileAtomic(filepath.Join(outDir, TrainTxt), []byte(strings.Join(lines, "\n")), 0o644)
}

func (h *Handler) writeMetadata(item *checkpoint.WorkItem, totalClips int, totalDuration float64, outDir string) error {
	meta := Metadata{
		ChampionID:     item.ID,
		Name:           item.Name,
		TotalClips:     totalClips,
		TotalDuration:  totalDuration,
		SampleRate:     h.cfg.Audio.SampleRate,
		ProcessingDate: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return fileutil.WriteFileAtomic(filepath.Join(outDir, MetadataJSON), payload, 0o644)
}

// trainDuration sums clip durations plus the silence gaps between them.
func trainDuration(clips []clip, silence float64) float64 {
	total := 0.0
	for _, c := range clips {
		total += c.duration
	}
	if len(clips) > 1 {
		total += silence * float64(len(clips)-1)
	}
	return total
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	for _, binary := range []string{h.cfg.FFmpegBinary(), h.cfg.FFprobeBinary()} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy("assemble", fmt.Sprintf("%s not found in PATH", binary))
		}
	}
	return stage.Healthy("assemble")
}
