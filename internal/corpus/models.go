package corpus

import "time"

// Article is one imported corpus entry.
type Article struct {
	ID         string
	Title      string
	Abstract   string
	Year       int
	Source     string
	ImportedAt time.Time
}

// TriageResult is the screening verdict for one article.
type TriageResult struct {
	ArticleID     string
	RunID         string
	Decision      string
	Justification string
	Confidence    float64
	Provider      string
	TokensUsed    int
	LatencyMS     float64
	CreatedAt     time.Time
}

// ExtractionResult holds the structured fields pulled from one article.
type ExtractionResult struct {
	ArticleID  string
	RunID      string
	Fields     map[string]string
	ParseError bool
	Provider   string
	TokensUsed int
	LatencyMS  float64
	CreatedAt  time.Time
}

// Summary is the three-part TL;DR for one article.
type Summary struct {
	ArticleID   string
	RunID       string
	Problem     string
	Solution    string
	Findings    string
	RawResponse string
	Provider    string
	TokensUsed  int
	LatencyMS   float64
	CreatedAt   time.Time
}

// CrossValResult is one article's verdict within one cross-validation run.
type CrossValResult struct {
	ArticleID     string
	RunName       string
	RunID         string
	Decision      string
	Justification string
	Confidence    float64
	Provider      string
	CreatedAt     time.Time
}
