package tui

import (
	"testing"
)

func TestIsInteractive(t *testing.T) {
	// Depends on how tests are run; only ensure it does not panic.
	_ = IsInteractive()
}

func TestShouldPromptDisabledInCI(t *testing.T) {
	for _, envVar := range ciEnvVars {
		t.Run(envVar, func(t *testing.T) {
			for _, other := range ciEnvVars {
				t.Setenv(other, "")
			}
			t.Setenv(envVar, "true")
			if ShouldPrompt() {
				t.Errorf("ShouldPrompt() = true with %s set", envVar)
			}
		})
	}
}
