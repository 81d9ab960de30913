package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/hopper/internal/patch"
	"github.com/felixgeelhaar/hopper/internal/plan"
)

// Decision is the operator's answer at the confirmation gate.
type Decision int

const (
	// DecisionNone means the gate closed without an answer.
	DecisionNone Decision = iota
	// DecisionConfirm accepts the step and continues the migration.
	DecisionConfirm
	// DecisionQuit leaves the step waiting and stops the run.
	DecisionQuit
)

func (d Decision) String() string {
	switch d {
	case DecisionConfirm:
		return "confirm"
	case DecisionQuit:
		return "quit"
	default:
		return "none"
	}
}

// ReviewResult holds the outcome of a step review.
type ReviewResult struct {
	Decision Decision
}

// stepReviewModel is the BubbleTea model for the confirmation gate
type stepReviewModel struct {
	step        plan.Step
	preview     string
	cursor      int
	showDiff    bool
	showPreview bool
	result      *ReviewResult
}

func newStepReviewModel(step plan.Step, preview string) stepReviewModel {
	return stepReviewModel{step: step, preview: preview}
}

// RunStepReview shows a step awaiting confirmation and blocks until the
// operator decides. There is no timeout.
func RunStepReview(step plan.Step, preview string, opts ...tea.ProgramOption) (ReviewResult, error) {
	program := tea.NewProgram(newStepReviewModel(step, preview), opts...)
	finalModel, err := program.Run()
	if err != nil {
		return ReviewResult{}, fmt.Errorf("run review UI: %w", err)
	}
	m, ok := finalModel.(stepReviewModel)
	if !ok || m.result == nil {
		return ReviewResult{Decision: DecisionQuit}, nil
	}
	return *m.result, nil
}

func (m stepReviewModel) Init() tea.Cmd {
	return nil
}

func (m stepReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q":
		m.result = &ReviewResult{Decision: DecisionQuit}
		return m, tea.Quit
	case "y", "Y", "c":
		m.result = &ReviewResult{Decision: DecisionConfirm}
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.step.FileChanges)-1 {
			m.cursor++
		}
	case "enter", "d":
		m.showDiff = !m.showDiff
	case "p":
		m.showPreview = !m.showPreview
	}
	return m, nil
}

func (m stepReviewModel) View() string {
	if m.result != nil {
		switch m.result.Decision {
		case DecisionConfirm:
			return approveStyle.Render(fmt.Sprintf("✓ Step %d confirmed", m.step.StepID)) + "\n"
		default:
			return labelStyle.Render("Review paused; the step stays waiting for confirmation.") + "\n"
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Step %d: v%s -> v%s", m.step.StepID, m.step.FromVersion, m.step.ToVersion)))
	b.WriteString("\n")
	if m.step.Description != "" {
		b.WriteString(m.step.Description + "\n")
	}
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Runtime:"), valueStyle.Render(m.step.RuntimeVersionRequired))

	stats := stepStats(m.step.FileChanges)
	b.WriteString(headerStyle.Render(fmt.Sprintf("Changed files: %d (+%d -%d)", stats.FilesChanged, stats.Insertions, stats.Deletions)))
	b.WriteString("\n")
	if len(m.step.FileChanges) == 0 {
		b.WriteString(labelStyle.Render("  No files changed in this step.") + "\n")
	}
	for i, fd := range m.step.FileChanges {
		line := fmt.Sprintf("  %s", fd.FileName)
		if i == m.cursor {
			line = selectedItemStyle.Render("> " + fd.FileName)
		}
		b.WriteString(line + "\n")
	}

	if m.showDiff && m.cursor < len(m.step.FileChanges) {
		b.WriteString("\n" + RenderDiff(m.step.FileChanges[m.cursor]) + "\n")
	}
	if m.showPreview {
		b.WriteString("\n" + RenderPreview(m.preview) + "\n")
	}

	b.WriteString(helpStyle.Render("y: confirm • ↑/↓: select file • d: diff • p: preview • q: pause"))
	return b.String()
}

func stepStats(diffs []patch.FileDiff) patch.Stats {
	var total patch.Stats
	for _, fd := range diffs {
		s := patch.CountChanges(fd)
		total.FilesChanged += s.FilesChanged
		total.Insertions += s.Insertions
		total.Deletions += s.Deletions
	}
	return total
}
