package stage

import (
	"strings"
	"testing"
)

func TestSplitSummary(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		problem  string
		solution string
		findings string
	}{
		{
			name:     "numbered list",
			text:     "1. Old problem. 2. New approach. 3. Good results.",
			problem:  "Old problem.",
			solution: "New approach.",
			findings: "Good results.",
		},
		{
			name:     "newline separated",
			text:     "Students struggle.\nA tutoring system helps.\nScores improved.",
			problem:  "Students struggle.",
			solution: "A tutoring system helps.",
			findings: "Scores improved.",
		},
		{
			name:    "unstructured falls back to problem",
			text:    "The article discusses adaptive learning in one long paragraph.",
			problem: "The article discusses adaptive learning in one long paragraph.",
		},
		{
			name:     "numbered list with blank lines",
			text:     "1. Problem statement.\n\n2. Solution outline.\n\n3. Findings recap.",
			problem:  "Problem statement.",
			solution: "Solution outline.",
			findings: "Findings recap.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			problem, solution, findings := splitSummary(tc.text)
			if problem != tc.problem || solution != tc.solution || findings != tc.findings {
				t.Fatalf("splitSummary(%q) = (%q, %q, %q)", tc.text, problem, solution, findings)
			}
		})
	}
}

func TestTriagePromptContainsParts(t *testing.T) {
	prompt := triagePrompt([]string{"first", "second"}, "A Title", "An abstract.")
	for _, want := range []string{"- first", "- second", "Title: A Title", "Abstract: An abstract.", `Answer ONLY "YES" or "NO"`} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
