package oracle

import (
	"regexp"
	"strings"
)

var (
	fencedBlock  = regexp.MustCompile("(?s)```(?:json|html|typescript|ts|js|css|scss)?\\n(.*?)```")
	leadingFence = regexp.MustCompile("(?i)^```[a-z]*\\n")
	trailFence   = regexp.MustCompile("\\n```$")
)

// CleanResponse strips a markdown code fence wrapped around model output.
// Content of the first fenced block wins; otherwise stray opening and
// closing fences are removed.
func CleanResponse(text string) string {
	if text == "" {
		return ""
	}
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	text = leadingFence.ReplaceAllString(text, "")
	text = trailFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
