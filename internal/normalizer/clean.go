// Package normalizer cleans raw sheet headers and matches them against the
// target schema using embedding similarity.
package normalizer

import (
	"regexp"
	"strings"
)

// cleanPatterns are applied in order. Order matters: control characters
// become spaces before runs of whitespace are collapsed.
var cleanPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`[\n\r\t]`), " "},    // newlines and tabs
	{regexp.MustCompile(`\s+`), " "},         // whitespace runs
	{regexp.MustCompile(`[()（）]`), ""},       // brackets, incl. full-width
	{regexp.MustCompile(`[①②③④⑤⑥⑦⑧⑨⑩]`), ""}, // circled numerals
	{regexp.MustCompile(`[#@$%^&*]`), ""},    // symbol noise
}

var cjkRun = regexp.MustCompile(`[\x{4e00}-\x{9fff}]+`)

// Clean normalizes a raw header. If cleaning strips the text to nothing it
// falls back to the longest contiguous CJK run of the original, then to the
// first 20 characters, so a non-empty input never cleans to empty.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}

	cleaned := raw
	for _, p := range cleanPatterns {
		cleaned = p.re.ReplaceAllString(cleaned, p.replacement)
	}
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		runs := cjkRun.FindAllString(raw, -1)
		for _, run := range runs {
			if len(run) > len(cleaned) {
				cleaned = run
			}
		}
		if cleaned == "" {
			r := []rune(raw)
			if len(r) > 20 {
				r = r[:20]
			}
			cleaned = string(r)
		}
	}

	return cleaned
}

// CleanAll cleans every header in order.
func CleanAll(raw []string) []string {
	cleaned := make([]string, len(raw))
	for i, h := range raw {
		cleaned[i] = Clean(h)
	}
	return cleaned
}
