package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/patch"
	"github.com/felixgeelhaar/hopper/internal/plan"
)

// previewLines caps how much of a preview document is printed.
const previewLines = 20

// RenderAnalysis summarizes a project analysis.
func RenderAnalysis(a *plan.ProjectAnalysis) string {
	if a == nil {
		return labelStyle.Render("No analysis available.")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Project Analysis"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Current version:"), valueStyle.Render(a.CurrentVersion))
	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Runtime:        "), valueStyle.Render(a.RuntimeVersion))
	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Dependencies:   "), valueStyle.Render(fmt.Sprint(len(a.Dependencies))))
	if a.ComplexityScore > 0 {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Complexity:     "), valueStyle.Render(fmt.Sprintf("%.1f/10", a.ComplexityScore)))
	}
	for _, c := range a.Customizations {
		fmt.Fprintf(&b, "  - %s\n", c)
	}
	return b.String()
}

// RenderPlan lists the steps of a plan with their status.
func RenderPlan(p *plan.UpgradePlan) string {
	if p == nil || len(p.Steps) == 0 {
		return labelStyle.Render("No upgrade plan.")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Upgrade Plan: %d steps", len(p.Steps))))
	b.WriteString("\n")
	if p.RiskLevel != "" || p.EstimatedDuration != "" {
		fmt.Fprintf(&b, "  %s %s   %s %s\n",
			labelStyle.Render("Risk:"), headerStyle.Render(string(p.RiskLevel)),
			labelStyle.Render("Estimate:"), valueStyle.Render(p.EstimatedDuration))
	}
	for _, step := range p.Steps {
		status := lipgloss.NewStyle().Foreground(statusColor(step.Status)).Render(string(step.Status))
		fmt.Fprintf(&b, "  %d. v%s -> v%s  (%s)  [%s]\n",
			step.StepID, step.FromVersion, step.ToVersion, step.RuntimeVersionRequired, status)
		if step.Description != "" {
			fmt.Fprintf(&b, "     %s\n", step.Description)
		}
		for _, bc := range step.BreakingChanges {
			fmt.Fprintf(&b, "     %s %s\n", rejectStyle.Render("!"), bc)
		}
	}
	return b.String()
}

// RenderDiff renders a unified diff with added and removed lines colored.
func RenderDiff(d patch.FileDiff) string {
	unified := strings.TrimSuffix(patch.Unified(d), "\n")
	lines := strings.Split(unified, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = headerStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = hunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = addedLineStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = removedLineStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// RenderHighlighted renders the modified content with likely-new lines
// marked. The marking is a coarse heuristic; RenderDiff is exact.
func RenderHighlighted(d patch.FileDiff) string {
	var b strings.Builder
	for _, line := range patch.HighlightLines(d) {
		if line.Added {
			fmt.Fprintf(&b, "%4d %s\n", line.Number, addedLineStyle.Render("+ "+line.Text))
			continue
		}
		fmt.Fprintf(&b, "%4d   %s\n", line.Number, line.Text)
	}
	return b.String()
}

// RenderEntry formats one event log entry as a single terminal line.
func RenderEntry(e eventlog.Entry) string {
	badge := lipgloss.NewStyle().Foreground(roleColor(e.Role)).Bold(true).Render(fmt.Sprintf("[%s]", e.Role))
	msg := e.Message
	if e.Level == eventlog.LevelCommand {
		msg = "$ " + msg
	}
	return fmt.Sprintf("%s %s %s",
		labelStyle.Render(e.Timestamp.Format("15:04:05")),
		badge,
		lipgloss.NewStyle().Foreground(levelColor(e.Level)).Render(msg))
}

// RenderPreview boxes the first lines of a preview document.
func RenderPreview(doc string) string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return labelStyle.Render("No preview available.")
	}
	lines := strings.Split(doc, "\n")
	if len(lines) > previewLines {
		lines = append(lines[:previewLines], fmt.Sprintf("... %d more lines", len(lines)-previewLines))
	}
	return previewStyle.Render(strings.Join(lines, "\n"))
}
