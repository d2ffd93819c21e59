package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	allowed := []string{"approve", "deny"}

	tests := []struct {
		name        string
		text        string
		action      string
		instruction string
		clear       bool
	}{
		{"bare approve", "approve", "approve", "", true},
		{"approve synonym", "yes, go ahead", "approve", "go ahead", true},
		{"ok", "ok", "approve", "", true},
		{"approve with guidance", "approved. let her know it takes a day", "approve", "let her know it takes a day", true},
		{"bare deny", "deny", "deny", "", true},
		{"deny with instruction", "no, tell her to come and see me first", "deny", "tell her to come and see me first", true},
		{"rejected", "rejected", "deny", "", true},
		{"custom instruction", "release only the math results and hold the rest", "instruct", "release only the math results and hold the rest", true},
		{"hedge", "hmm let me think about it", "", "", false},
		{"question back", "what was the original score?", "", "", false},
		{"question behind action word", "ok, what was the original score?", "", "", false},
		{"question behind deny word", "no? are you sure about this one", "", "", false},
		{"fragment", "the score", "", "", false},
		{"empty", "   ", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text, allowed)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.instruction, got.Instruction)
			assert.Equal(t, tt.clear, got.Clear)
		})
	}
}

func TestClassifyRestrictedActions(t *testing.T) {
	// "approve" outside the allowed set is recognized but not clear.
	got := Classify("approve", []string{"release_partial", "hold"})
	assert.Equal(t, "approve", got.Action)
	assert.False(t, got.Clear)

	// A listed custom action is clear.
	got = Classify("hold, until the exam board meets", []string{"release_partial", "hold"})
	assert.Equal(t, "hold", got.Action)
	assert.Equal(t, "until the exam board meets", got.Instruction)
	assert.True(t, got.Clear)

	// Empty allowed set keeps approve/deny usable.
	got = Classify("approve", nil)
	assert.True(t, got.Clear)
}
