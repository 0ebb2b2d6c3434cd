package transform_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/testsupport"
	"voxcrawl/internal/transform"

	"voxcrawl/internal/logging"
)

type fixture struct {
	handler *transform.Handler
	store   *checkpoint.Store
	cfg     *config.Config

	calls [][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := &fixture{cfg: cfg, store: store}
	f.handler = transform.NewHandler(cfg, store, logging.NewNop())
	return f
}

// stubRunner records each invocation and, unless the source file is listed
// in failFiles, writes the output path ffmpeg would have produced.
func (f *fixture) stubRunner(failFiles ...string) transform.CommandRunner {
	failSet := make(map[string]bool, len(failFiles))
	for _, name := range failFiles {
		failSet[name] = true
	}
	return func(ctx context.Context, name string, args ...string) error {
		f.calls = append(f.calls, args)
		src := argAfter(args, "-i")
		if failSet[filepath.Base(src)] {
			return errors.New("ffmpeg: decode error")
		}
		out := args[len(args)-1]
		return os.WriteFile(out, []byte("wav "+filepath.Base(src)), 0o644)
	}
}

func argAfter(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newFetchedItem(t *testing.T, f *fixture, id string, filenames ...string) *checkpoint.WorkItem {
	t.Helper()
	item := testsupport.NewItem(t, f.store, id, id, filenames...)
	rawDir := f.handler.RawDir(item)
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, filename := range filenames {
		testsupport.WriteFile(t, filepath.Join(rawDir, filename), []byte("ogg "+filename))
		if err := f.store.MarkSubItemFetched(item, filename, "digest", 16); err != nil {
			t.Fatalf("MarkSubItemFetched: %v", err)
		}
	}
	return item
}

func TestExecuteConvertsFetchedFiles(t *testing.T) {
	f := newFixture(t)
	f.handler.WithCommandRunner(f.stubRunner())
	item := newFetchedItem(t, f, "jhin", "Jhin_1.ogg", "Jhin_2.ogg")

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := f.handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Stats.Transformed != 2 {
		t.Fatalf("Transformed = %d, want 2", item.Stats.Transformed)
	}
	for _, name := range []string{"Jhin_1.wav", "Jhin_2.wav"} {
		if _, err := os.Stat(filepath.Join(f.handler.WavDir(item), name)); err != nil {
			t.Fatalf("expected converted clip %s: %v", name, err)
		}
	}
	if len(f.calls) != 2 {
		t.Fatalf("ffmpeg invoked %d times, want 2", len(f.calls))
	}

	args := strings.Join(f.calls[0], " ")
	if !strings.Contains(args, "-ac 1") {
		t.Fatalf("expected mono downmix in args: %s", args)
	}
	if !strings.Contains(args, "-ar 22050") {
		t.Fatalf("expected configured sample rate in args: %s", args)
	}
	if !strings.Contains(args, "afftdn") || !strings.Contains(args, "loudnorm") {
		t.Fatalf("expected denoise and normalize filters in args: %s", args)
	}
}

func TestExecuteRecordsPerFileFailures(t *testing.T) {
	f := newFixture(t)
	f.handler.WithCommandRunner(f.stubRunner("Jhin_2.ogg"))
	item := newFetchedItem(t, f, "jhin", "Jhin_1.ogg", "Jhin_2.ogg", "Jhin_3.ogg")

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := f.handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Stats.Transformed != 2 {
		t.Fatalf("Transformed = %d, want 2", item.Stats.Transformed)
	}
	sub := item.SubItem("Jhin_2.ogg")
	if sub == nil || sub.Transformed {
		t.Fatalf("failed file should not be marked transformed: %+v", sub)
	}
	if !strings.Contains(sub.Error, "decode error") {
		t.Fatalf("sub-item error = %q, want decode error recorded", sub.Error)
	}
	if _, err := os.Stat(filepath.Join(f.handler.WavDir(item), "Jhin_2.wav")); !os.IsNotExist(err) {
		t.Fatalf("failed conversion must leave no output, stat err = %v", err)
	}
	if item.Stage != checkpoint.StagePending {
		t.Fatalf("handler must not advance stage, got %s", item.Stage)
	}
}

func TestExecuteSkipsTransformedFiles(t *testing.T) {
	f := newFixture(t)
	f.handler.WithCommandRunner(f.stubRunner())
	item := newFetchedItem(t, f, "jhin", "Jhin_1.ogg", "Jhin_2.ogg")

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := f.handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := f.handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if len(f.calls) != 2 {
		t.Fatalf("ffmpeg invoked %d times across both runs, want 2", len(f.calls))
	}
}

func TestExecuteTreatsMissingOutputAsFailure(t *testing.T) {
	f := newFixture(t)
	f.handler.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})
	item := newFetchedItem(t, f, "jhin", "Jhin_1.ogg")

	if err := f.handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := f.handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	sub := item.SubItem("Jhin_1.ogg")
	if sub.Transformed {
		t.Fatal("sub-item marked transformed despite missing output")
	}
	if !strings.Contains(sub.Error, "no output produced") {
		t.Fatalf("sub-item error = %q, want missing-output failure", sub.Error)
	}
}

func TestPrepareRequiresFetchedFiles(t *testing.T) {
	f := newFixture(t)
	item := testsupport.NewItem(t, f.store, "jhin", "Jhin", "Jhin_1.ogg")

	err := f.handler.Prepare(context.Background(), item)
	if err == nil {
		t.Fatal("expected Prepare to reject item with no downloaded files")
	}
}

func TestHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	handler := transform.NewHandler(cfg, store, logging.NewNop())

	health := handler.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy with stubbed ffmpeg: %+v", health)
	}
}

func TestWavName(t *testing.T) {
	if got := transform.WavName("Jhin_Original_1.ogg"); got != "Jhin_Original_1.wav" {
		t.Fatalf("WavName = %q", got)
	}
}
