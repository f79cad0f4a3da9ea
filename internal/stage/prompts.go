package stage

import (
	"fmt"
	"strings"
)

const triagePromptTemplate = `You are an expert in systematic literature reviews.

Inclusion criteria:
%s

Article:
Title: %s
Abstract: %s

Question: Should this article be included in the systematic review?
Answer ONLY "YES" or "NO" and justify in one sentence.`

// invertedTriagePromptTemplate presents the abstract before the title.
const invertedTriagePromptTemplate = `You are an expert in systematic literature reviews.

Inclusion criteria:
%s

Article:
Abstract: %s
Title: %s

Question: Should this article be included in the systematic review?
Answer ONLY "YES" or "NO" and justify in one sentence.`

const extractionPromptTemplate = `You are an expert in systematic literature reviews.

Extract the following fields from the article below. Respond with a single JSON
object whose keys are exactly: study_objective, methodology, main_results,
conclusions_limitations, sample_data. If the article does not mention a field,
use the string "NOT MENTIONED". Do not add any text outside the JSON object.

Article:
Title: %s
Abstract: %s`

const summarizationPromptTemplate = `You are an expert in systematic literature reviews.

Write a three-sentence TL;DR of the article below as a numbered list:
1. The problem the article addresses.
2. The proposed solution or approach.
3. The main findings.

Article:
Title: %s
Abstract: %s`

func criteriaList(criteria []string) string {
	lines := make([]string, 0, len(criteria))
	for _, criterion := range criteria {
		lines = append(lines, "- "+criterion)
	}
	return strings.Join(lines, "\n")
}

func triagePrompt(criteria []string, title, abstract string) string {
	return fmt.Sprintf(triagePromptTemplate, criteriaList(criteria), title, abstract)
}

func invertedTriagePrompt(criteria []string, title, abstract string) string {
	return fmt.Sprintf(invertedTriagePromptTemplate, criteriaList(criteria), abstract, title)
}

func extractionPrompt(title, abstract string) string {
	return fmt.Sprintf(extractionPromptTemplate, title, abstract)
}

func summarizationPrompt(title, abstract string) string {
	return fmt.Sprintf(summarizationPromptTemplate, title, abstract)
}
