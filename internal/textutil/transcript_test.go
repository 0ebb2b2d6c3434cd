package textutil_test

import (
	"testing"

	"voxcrawl/internal/textutil"
)

func TestValidTranscript(t *testing.T) {
	if textutil.ValidTranscript("") {
		t.Fatal("empty transcript should be invalid")
	}
	if textutil.ValidTranscript("   ") {
		t.Fatal("whitespace transcript should be invalid")
	}
	if textutil.ValidTranscript("[]") {
		t.Fatal("placeholder transcript should be invalid")
	}
	if !textutil.ValidTranscript(`"Now hear the silence of annihilation!"`) {
		t.Fatal("real dialogue should be valid")
	}
}

func TestQuotedDialogue(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			"strips narration",
			`"Come!" Aatrox grunts. "Destiny awaits!"`,
			"Come! Destiny awaits!",
		},
		{
			"single quote fallback",
			`'I will show you pain' she whispers`,
			"I will show you pain",
		},
		{
			"no quotes returns trimmed input",
			"  A wolf howls in the distance  ",
			"A wolf howls in the distance",
		},
		{
			"empty quoted sections are skipped",
			`"" sound effect "Onward!"`,
			"Onward!",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.QuotedDialogue(tc.input); got != tc.expected {
				t.Fatalf("QuotedDialogue(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := textutil.SanitizeFileName("a/b:c*d?.ogg"); got != "a-b-c-d.ogg" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := textutil.SanitizeFileName("  plain.ogg "); got != "plain.ogg" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}
