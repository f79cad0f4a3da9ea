package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"litsieve/internal/logging"
)

// minAbstractLength filters out entries whose abstract is too short to screen.
const minAbstractLength = 50

// ImportSummary reports what a CSV import did.
type ImportSummary struct {
	Imported int
	Skipped  int
}

// ImportCSV loads articles from a CSV file with a header row into the store.
// Recognized columns are id, title, abstract, year and source; unknown columns
// are ignored. Rows missing an id or title, or whose abstract is shorter than
// 50 characters, are skipped with a warning.
func (s *Store) ImportCSV(ctx context.Context, path string, logger *slog.Logger) (ImportSummary, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	file, err := os.Open(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("open corpus file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return ImportSummary{}, fmt.Errorf("read corpus header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["id"]; !ok {
		return ImportSummary{}, errors.New("corpus file has no id column")
	}
	if _, ok := columns["title"]; !ok {
		return ImportSummary{}, errors.New("corpus file has no title column")
	}

	var summary ImportSummary
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read corpus row %d: %w", line+1, err)
		}
		line++

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		article := Article{
			ID:       field("id"),
			Title:    field("title"),
			Abstract: field("abstract"),
			Source:   field("source"),
		}
		if year := field("year"); year != "" {
			if parsed, convErr := strconv.Atoi(year); convErr == nil {
				article.Year = parsed
			}
		}

		switch {
		case article.ID == "" || article.Title == "":
			logger.Warn("skipping corpus row without id or title", logging.Int("row", line))
			summary.Skipped++
			continue
		case len(article.Abstract) < minAbstractLength:
			logger.Warn("skipping corpus row with short abstract",
				logging.Int("row", line), logging.String(logging.FieldArticleID, article.ID))
			summary.Skipped++
			continue
		}

		if err := s.UpsertArticle(ctx, article); err != nil {
			return summary, fmt.Errorf("import row %d: %w", line, err)
		}
		summary.Imported++
	}

	logger.Info("corpus import complete",
		logging.Int("imported", summary.Imported), logging.Int("skipped", summary.Skipped))
	return summary, nil
}
