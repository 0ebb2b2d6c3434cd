package assemble_test

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxcrawl/internal/assemble"
	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/testsupport"
)

type fixture struct {
	handler   *assemble.Handler
	store     *checkpoint.Store
	cfg       *config.Config
	durations map[string]float64
	calls     [][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := &fixture{cfg: cfg, store: store, durations: map[string]float64{}}
	f.handler = assemble.NewHandler(cfg, store, logging.NewNop())
	f.handler.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		f.calls = append(f.calls, args)
		out := args[len(args)-1]
		return os.WriteFile(out, []byte("wav data"), 0o644)
	})
	f.handler.WithProber(func(ctx context.Context, path string) (float64, error) {
		return f.durations[filepath.Base(path)], nil
	})
	return f
}

type clipSpec struct {
	filename   string
	transcript string
	duration   float64
}

func newTransformedItem(t *testing.T, f *fixture, id string, specs ...clipSpec) *checkpoint.WorkItem {
	t.Helper()
	item, err := f.store.CreateItem(id, id)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	wavDir := filepath.Join(f.cfg.Paths.WorkDir, id, "wav")
	for _, spec := range specs {
		item.Files = append(item.Files, checkpoint.SubItem{
			URL:        "https://example.test/audio/" + spec.filename,
			Filename:   spec.filename,
			Transcript: spec.transcript,
		})
		wavName := strings.TrimSuffix(spec.filename, ".ogg") + ".wav"
		testsupport.WriteFile(t, filepath.Join(wavDir, wavName), []byte("clip "+wavName))
		f.durations[wavName] = spec.duration
	}
	item.RecomputeStats()
	if err := f.store.SaveItem(item); err != nil {
		t.Fatalf("SaveItem: %v", err)
	}
	for _, spec := range specs {
		if err := f.store.MarkSubItemFetched(item, spec.filename, "digest", 8); err != nil {
			t.Fatalf("MarkSubItemFetched: %v", err)
		}
		if err := f.store.MarkSubItemTransformed(item, spec.filename); err != nil {
			t.Fatalf("MarkSubItemTransformed: %v", err)
		}
	}
	return item
}

func TestExecuteWritesAllArtifacts(t *testing.T) {
	f := newFixture(t)
	item := newTransformedItem(t, f, "jhin",
		clipSpec{"Jhin_1.ogg", `"Art is worth the pain."`, 5.0},
		clipSpec{"Jhin_2.ogg", `"Behold, a grand performance!"`, 12.0},
		clipSpec{"Jhin_3.ogg", `"Smile! Everything is about to be beautiful."`, 25.0},
	)

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := f.handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	outDir := f.handler.OutputDir(item)
	for _, name := range []string{
		assemble.ReferenceWav, assemble.ReferenceTxt,
		assemble.TrainWav, assemble.TrainTxt, assemble.MetadataJSON,
	} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}

	// The 25s clip exceeds the reference ceiling; the 12s clip wins.
	reference, err := os.ReadFile(filepath.Join(outDir, assemble.ReferenceWav))
	if err != nil {
		t.Fatalf("read reference: %v", err)
	}
	if string(reference) != "clip Jhin_2.wav" {
		t.Fatalf("reference.wav holds %q, want the 12s clip", reference)
	}
	refText, err := os.ReadFile(filepath.Join(outDir, assemble.ReferenceTxt))
	if err != nil {
		t.Fatalf("read reference text: %v", err)
	}
	if string(refText) != "Behold, a grand performance!" {
		t.Fatalf("reference.txt = %q", refText)
	}

	trainText, err := os.ReadFile(filepath.Join(outDir, assemble.TrainTxt))
	if err != nil {
		t.Fatalf("read train text: %v", err)
	}
	lines := strings.Split(string(trainText), "\n")
	if len(lines) != 3 || lines[0] != "Art is worth the pain." {
		t.Fatalf("train.txt lines = %q", lines)
	}

	var meta assemble.Metadata
	payload, err := os.ReadFile(filepath.Join(outDir, assemble.MetadataJSON))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.ChampionID != "jhin" || meta.TotalClips != 3 || meta.SampleRate != 22050 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	wantDuration := 5.0 + 12.0 + 25.0 + 2*0.3
	if math.Abs(meta.TotalDuration-wantDuration) > 1e-9 {
		t.Fatalf("TotalDuration = %v, want %v", meta.TotalDuration, wantDuration)
	}

	var sawConcat bool
	for _, args := range f.calls {
		joined := strings.Join(args, " ")
		if strings.Contains(joined, "-f concat") {
			sawConcat = true
		}
	}
	if !sawConcat {
		t.Fatal("expected an ffmpeg concat invocation")
	}
}

func TestExecuteSkipsUnusableTranscripts(t *testing.T) {
	f := newFixture(t)
	item := newTransformedItem(t, f, "jhin",
		clipSpec{"Jhin_1.ogg", `"Art is worth the pain."`, 5.0},
		clipSpec{"Jhin_2.ogg", "", 8.0},
		clipSpec{"Jhin_3.ogg", "[]", 9.0},
	)

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := f.handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	outDir := f.handler.OutputDir(item)
	trainText, err := os.ReadFile(filepath.Join(outDir, assemble.TrainTxt))
	if err != nil {
		t.Fatalf("read train text: %v", err)
	}
	if string(trainText) != "Art is worth the pain." {
		t.Fatalf("train.txt = %q, want only the transcribed clip", trainText)
	}

	var meta assemble.Metadata
	payload, err := os.ReadFile(filepath.Join(outDir, assemble.MetadataJSON))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if meta.TotalClips != 1 {
		t.Fatalf("TotalClips = %d, want 1", meta.TotalClips)
	}
}

func TestExecuteFailsWithoutUsableTranscripts(t *testing.T) {
	f := newFixture(t)
	item := newTransformedItem(t, f, "jhin",
		clipSpec{"Jhin_1.ogg", "", 5.0},
		clipSpec{"Jhin_2.ogg", "[]", 8.0},
	)

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := f.handler.Execute(context.Background(), item)
	if err == nil || !strings.Contains(err.Error(), "no files with valid transcripts") {
		t.Fatalf("Execute err = %v, want no-valid-transcripts failure", err)
	}
}

func TestExecuteRequiresClipUnderReferenceCeiling(t *testing.T) {
	f := newFixture(t)
	item := newTransformedItem(t, f, "jhin",
		clipSpec{"Jhin_1.ogg", `"Art is worth the pain."`, 30.0},
		clipSpec{"Jhin_2.ogg", `"Behold!"`, 45.0},
	)

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := f.handler.Execute(context.Background(), item)
	if err == nil || !strings.Contains(err.Error(), "no clip shorter than") {
		t.Fatalf("Execute err = %v, want reference-selection failure", err)
	}
}

func TestPrepareRequiresTransformedFiles(t *testing.T) {
	f := newFixture(t)
	item := testsupport.NewItem(t, f.store, "jhin", "Jhin", "Jhin_1.ogg")

	if err := f.handler.Prepare(context.Background(), item); err == nil {
		t.Fatal("expected Prepare to reject item with nothing transformed")
	}
}
