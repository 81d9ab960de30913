package patch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Unified renders a diff in unified format with a single hunk spanning the
// whole file. Output is for presentation; the FileDiff stays authoritative.
func Unified(d FileDiff) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "--- a/%s\n", d.FileName)
	fmt.Fprintf(&buf, "+++ b/%s\n", d.FileName)

	var hunk []string
	oldCount, newCount := 0, 0
	for _, diff := range lineDiffs(d.OriginalContent, d.ModifiedContent) {
		for _, line := range splitLines(diff.Text) {
			switch diff.Type {
			case diffmatchpatch.DiffEqual:
				hunk = append(hunk, " "+line)
				oldCount++
				newCount++
			case diffmatchpatch.DiffDelete:
				hunk = append(hunk, "-"+line)
				oldCount++
			case diffmatchpatch.DiffInsert:
				hunk = append(hunk, "+"+line)
				newCount++
			}
		}
	}

	if len(hunk) > 0 {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n", startLine(oldCount), oldCount, startLine(newCount), newCount)
		for _, line := range hunk {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// CountChanges counts inserted and deleted lines
func CountChanges(d FileDiff) Stats {
	var s Stats
	for _, diff := range lineDiffs(d.OriginalContent, d.ModifiedContent) {
		n := len(splitLines(diff.Text))
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			s.Insertions += n
		case diffmatchpatch.DiffDelete:
			s.Deletions += n
		}
	}
	if s.Insertions > 0 || s.Deletions > 0 {
		s.FilesChanged = 1
	}
	return s
}

// Line is a modified-content line with a presentation hint.
type Line struct {
	Number int
	Text   string
	Added  bool
}

// HighlightLines flags lines of the modified content whose trimmed text does
// not appear anywhere in the original content. This is a coarse substring
// heuristic for display only: moved or duplicated lines are never flagged and
// it says nothing about deletions. Use Unified for an actual diff.
func HighlightLines(d FileDiff) []Line {
	raw := strings.Split(d.ModifiedContent, "\n")
	out := make([]Line, 0, len(raw))
	for i, text := range raw {
		trimmed := strings.TrimSpace(text)
		out = append(out, Line{
			Number: i + 1,
			Text:   text,
			Added:  trimmed != "" && !strings.Contains(d.OriginalContent, trimmed),
		})
	}
	return out
}

func lineDiffs(oldContent, newContent string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lines)
}

// splitLines splits text into lines, dropping the empty element that a
// trailing newline would produce.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if strings.HasSuffix(text, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func startLine(count int) int {
	if count == 0 {
		return 0
	}
	return 1
}
