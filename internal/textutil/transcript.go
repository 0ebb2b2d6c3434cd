package textutil

import (
	"regexp"
	"strings"
)

var (
	doubleQuoted = regexp.MustCompile(`"([^"]*)"`)
	singleQuoted = regexp.MustCompile(`'([^']*)'`)
)

// ValidTranscript reports whether a transcript carries usable dialogue text.
// Empty strings and the wiki's "[]" placeholder are rejected.
func ValidTranscript(transcript string) bool {
	cleaned := strings.TrimSpace(transcript)
	return cleaned != "" && cleaned != "[]"
}

// QuotedDialogue extracts only the text inside quotation marks from a raw
// transcript, dropping narrator text and sound-effect descriptions. Double
// quotes win over single quotes; when neither is present the trimmed input is
// returned unchanged.
//
//	QuotedDialogue(`"Come!" Aatrox grunts. "Destiny awaits!"`) == "Come! Destiny awaits!"
func QuotedDialogue(text string) string {
	parts := matchGroups(doubleQuoted, text)
	if len(parts) == 0 {
		parts = matchGroups(singleQuoted, text)
	}
	if len(parts) == 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func matchGroups(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
