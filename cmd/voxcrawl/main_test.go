package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig seeds a minimal configuration rooted in a temp directory
// and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	body := fmt.Sprintf(`[paths]
state_dir = %q
work_dir = %q
output_dir = %q
log_dir = %q

[source]
request_delay = 0.0

[catalog]
enabled = false

[logging]
format = "console"
level = "error"
`,
		filepath.Join(base, "state"),
		filepath.Join(base, "work"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"),
	)
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
}

func TestStatusJSONOnFreshStore(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, "status", "--json", "--config", cfgPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, `"total": 0`)
	requireContains(t, out, `"session_id"`)
}

func TestResetRequiresForce(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := runCLI(t, "reset", "--config", cfgPath); err == nil {
		t.Fatal("expected reset without --force to fail")
	}

	out, err := runCLI(t, "reset", "--force", "--config", cfgPath)
	if err != nil {
		t.Fatalf("reset --force: %v", err)
	}
	requireContains(t, out, "Crawl state cleared")
}

func TestRetryUnknownChampionFails(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := runCLI(t, "retry", "nosuch", "--config", cfgPath); err == nil {
		t.Fatal("expected retry of unknown champion to fail")
	}
}

func TestCatalogCommandsRequireEnabledCache(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := runCLI(t, "catalog", "list", "--config", cfgPath); err == nil {
		t.Fatal("expected catalog list to fail with cache disabled")
	}
}

func TestResumeWithNothingPending(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, "resume", "--config", cfgPath)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "Nothing to resume")
}

func TestReadChampionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "champions.txt")
	body := "Jhin\n\n# roster additions\nMiss Fortune\n  Ahri  \n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := readChampionsFile(path)
	if err != nil {
		t.Fatalf("readChampionsFile: %v", err)
	}
	want := []string{"Jhin", "Miss Fortune", "Ahri"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d: %v", len(names), len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], name)
		}
	}

	if _, err := readChampionsFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
