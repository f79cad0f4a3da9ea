package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DecisionYes marks an article as included by triage.
const DecisionYes = "YES"

// SaveTriageResult records the screening verdict for one article, replacing
// any earlier verdict.
func (s *Store) SaveTriageResult(ctx context.Context, result TriageResult) error {
	if result.ArticleID == "" {
		return errors.New("triage result needs an article id")
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO triage_results
            (article_id, run_id, decision, justification, confidence, provider, tokens_used, latency_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(article_id) DO UPDATE SET
            run_id = excluded.run_id,
            decision = excluded.decision,
            justification = excluded.justification,
            confidence = excluded.confidence,
            provider = excluded.provider,
            tokens_used = excluded.tokens_used,
            latency_ms = excluded.latency_ms,
            created_at = excluded.created_at`,
		result.ArticleID, result.RunID, result.Decision, result.Justification,
		result.Confidence, result.Provider, result.TokensUsed, result.LatencyMS,
		result.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save triage result: %w", err)
	}
	return nil
}

// GetTriageResult fetches the stored verdict for one article, or nil when the
// article has not been triaged.
func (s *Store) GetTriageResult(ctx context.Context, articleID string) (*TriageResult, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT article_id, run_id, decision, justification, confidence, provider, tokens_used, latency_ms, created_at
        FROM triage_results WHERE article_id = ?`, articleID)
	var result TriageResult
	var createdAt string
	err := row.Scan(&result.ArticleID, &result.RunID, &result.Decision, &result.Justification,
		&result.Confidence, &result.Provider, &result.TokensUsed, &result.LatencyMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get triage result: %w", err)
	}
	result.CreatedAt = parseTimestamp(createdAt)
	return &result, nil
}

// IncludedArticles returns the articles triage marked YES, ordered by ID.
// Later stages operate on this subset only.
func (s *Store) IncludedArticles(ctx context.Context) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT a.id, a.title, a.abstract, a.year, a.source, a.imported_at
        FROM articles a
        JOIN triage_results t ON t.article_id = a.id
        WHERE t.decision = ?
        ORDER BY a.id`, DecisionYes)
	if err != nil {
		return nil, fmt.Errorf("list included articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan included article: %w", err)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

// SaveExtractionResult records the structured fields for one article.
func (s *Store) SaveExtractionResult(ctx context.Context, result ExtractionResult) error {
	if result.ArticleID == "" {
		return errors.New("extraction result needs an article id")
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	fieldsJSON, err := json.Marshal(result.Fields)
	if err != nil {
		return fmt.Errorf("encode extraction fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO extraction_results
            (article_id, run_id, fields_json, parse_error, provider, tokens_used, latency_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(article_id) DO UPDATE SET
            run_id = excluded.run_id,
            fields_json = excluded.fields_json,
            parse_error = excluded.parse_error,
            provider = excluded.provider,
            tokens_used = excluded.tokens_used,
            latency_ms = excluded.latency_ms,
            created_at = excluded.created_at`,
		result.ArticleID, result.RunID, string(fieldsJSON), boolToInt(result.ParseError),
		result.Provider, result.TokensUsed, result.LatencyMS,
		result.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save extraction result: %w", err)
	}
	return nil
}

// GetExtractionResult fetches the stored fields for one article, or nil.
func (s *Store) GetExtractionResult(ctx context.Context, articleID string) (*ExtractionResult, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT article_id, run_id, fields_json, parse_error, provider, tokens_used, latency_ms, created_at
        FROM extraction_results WHERE article_id = ?`, articleID)
	var result ExtractionResult
	var fieldsJSON, createdAt string
	var parseError int
	err := row.Scan(&result.ArticleID, &result.RunID, &fieldsJSON, &parseError,
		&result.Provider, &result.TokensUsed, &result.LatencyMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get extraction result: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &result.Fields); err != nil {
		return nil, fmt.Errorf("decode extraction fields: %w", err)
	}
	result.ParseError = parseError != 0
	result.CreatedAt = parseTimestamp(createdAt)
	return &result, nil
}

// SaveSummary records the three-part summary for one article.
func (s *Store) SaveSummary(ctx context.Context, summary Summary) error {
	if summary.ArticleID == "" {
		return errors.New("summary needs an article id")
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO summaries
            (article_id, run_id, problem, solution, findings, raw_response, provider, tokens_used, latency_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(article_id) DO UPDATE SET
            run_id = excluded.run_id,
            problem = excluded.problem,
            solution = excluded.solution,
            findings = excluded.findings,
            raw_response = excluded.raw_response,
            provider = excluded.provider,
            tokens_used = excluded.tokens_used,
            latency_ms = excluded.latency_ms,
            created_at = excluded.created_at`,
		summary.ArticleID, summary.RunID, summary.Problem, summary.Solution, summary.Findings,
		summary.RawResponse, summary.Provider, summary.TokensUsed, summary.LatencyMS,
		summary.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// GetSummary fetches the stored summary for one article, or nil.
func (s *Store) GetSummary(ctx context.Context, articleID string) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT article_id, run_id, problem, solution, findings, raw_response, provider, tokens_used, latency_ms, created_at
        FROM summaries WHERE article_id = ?`, articleID)
	var summary Summary
	var createdAt string
	err := row.Scan(&summary.ArticleID, &summary.RunID, &summary.Problem, &summary.Solution,
		&summary.Findings, &summary.RawResponse, &summary.Provider, &summary.TokensUsed,
		&summary.LatencyMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	summary.CreatedAt = parseTimestamp(createdAt)
	return &summary, nil
}

// SaveCrossValResult records one run's verdict for one article. Each
// (article, run name) pair keeps only its latest verdict.
func (s *Store) SaveCrossValResult(ctx context.Context, result CrossValResult) error {
	if result.ArticleID == "" {
		return errors.New("crossval result needs an article id")
	}
	if result.RunName == "" {
		return errors.New("crossval result needs a run name")
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO crossval_results
            (article_id, run_name, run_id, decision, justification, confidence, provider, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(article_id, run_name) DO UPDATE SET
            run_id = excluded.run_id,
            decision = excluded.decision,
            justification = excluded.justification,
            confidence = excluded.confidence,
            provider = excluded.provider,
            created_at = excluded.created_at`,
		result.ArticleID, result.RunName, result.RunID, result.Decision, result.Justification,
		result.Confidence, result.Provider, result.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save crossval result: %w", err)
	}
	return nil
}

// CrossValResults returns every verdict recorded for a run name, ordered by
// article ID.
func (s *Store) CrossValResults(ctx context.Context, runName string) ([]CrossValResult, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT article_id, run_name, run_id, decision, justification, confidence, provider, created_at
        FROM crossval_results WHERE run_name = ? ORDER BY article_id`, runName)
	if err != nil {
		return nil, fmt.Errorf("list crossval results: %w", err)
	}
	defer rows.Close()

	var results []CrossValResult
	for rows.Next() {
		var result CrossValResult
		var createdAt string
		if err := rows.Scan(&result.ArticleID, &result.RunName, &result.RunID, &result.Decision,
			&result.Justification, &result.Confidence, &result.Provider, &createdAt); err != nil {
			return nil, fmt.Errorf("scan crossval result: %w", err)
		}
		result.CreatedAt = parseTimestamp(createdAt)
		results = append(results, result)
	}
	return results, rows.Err()
}

// TriageCounts tallies verdicts by decision string.
func (s *Store) TriageCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT decision, COUNT(1) FROM triage_results GROUP BY decision")
	if err != nil {
		return nil, fmt.Errorf("count triage results: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var decision string
		var count int
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, fmt.Errorf("scan triage count: %w", err)
		}
		counts[decision] = count
	}
	return counts, rows.Err()
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
