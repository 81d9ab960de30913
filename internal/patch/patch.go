package patch

// FileDiff records one file's content before and after a step touched it.
// It is immutable once recorded.
type FileDiff struct {
	FileName        string `json:"fileName" yaml:"fileName"`
	OriginalContent string `json:"originalContent" yaml:"originalContent"`
	ModifiedContent string `json:"modifiedContent" yaml:"modifiedContent"`
}

// Record compares before and after byte for byte. It returns a diff and true
// only when the content changed; no whitespace or line ending normalisation
// is applied.
func Record(path, before, after string) (FileDiff, bool) {
	if before == after {
		return FileDiff{}, false
	}
	return FileDiff{
		FileName:        path,
		OriginalContent: before,
		ModifiedContent: after,
	}, true
}

// StepPatch accumulates the diffs produced while executing a single step.
// Records are only ever appended.
type StepPatch struct {
	StepID int
	files  []FileDiff
}

// NewStepPatch creates an empty patch for a step
func NewStepPatch(stepID int) *StepPatch {
	return &StepPatch{StepID: stepID}
}

// Add records the change for path when before and after differ.
func (p *StepPatch) Add(path, before, after string) bool {
	diff, changed := Record(path, before, after)
	if changed {
		p.files = append(p.files, diff)
	}
	return changed
}

// Files returns a copy of the recorded diffs in recording order.
func (p *StepPatch) Files() []FileDiff {
	out := make([]FileDiff, len(p.files))
	copy(out, p.files)
	return out
}

// Len returns the number of recorded diffs
func (p *StepPatch) Len() int {
	return len(p.files)
}

// Stats summarises line-level changes across the patch.
func (p *StepPatch) Stats() Stats {
	var total Stats
	for _, f := range p.files {
		s := CountChanges(f)
		total.FilesChanged++
		total.Insertions += s.Insertions
		total.Deletions += s.Deletions
	}
	return total
}

// Stats holds line-level change statistics
type Stats struct {
	FilesChanged int `json:"filesChanged" yaml:"filesChanged"`
	Insertions   int `json:"insertions" yaml:"insertions"`
	Deletions    int `json:"deletions" yaml:"deletions"`
}
