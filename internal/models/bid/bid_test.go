package bid

import "testing"

func TestValidStatus(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		valid  bool
	}{
		{"pending", StatusPending, true},
		{"accepted", StatusAccepted, true},
		{"rejected", StatusRejected, true},
		{"withdrawn", StatusWithdrawn, true},
		{"empty", Status(""), false},
		{"unknown", Status("open"), false},
		{"capitalized", Status("Pending"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidStatus(tt.status); got != tt.valid {
				t.Errorf("ValidStatus(%q) = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusAccepted, true},
		{StatusRejected, true},
		{StatusWithdrawn, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%q.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestAssistEligible(t *testing.T) {
	tests := []struct {
		name        string
		coverLetter string
		eligible    bool
	}{
		{"empty", "", false},
		{"short", "I can do this", false},
		{"nine words", "one two three four five six seven eight nine", false},
		{"ten words", "one two three four five six seven eight nine ten", true},
		{"extra whitespace", "  one two\tthree four five six seven eight nine ten  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssistEligible(tt.coverLetter); got != tt.eligible {
				t.Errorf("AssistEligible(%q) = %v, want %v", tt.coverLetter, got, tt.eligible)
			}
		})
	}
}
