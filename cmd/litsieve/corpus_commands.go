package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"litsieve/internal/corpus"
	"litsieve/internal/logging"
)

func newCorpusCommand(ctx *commandContext) *cobra.Command {
	corpusCmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the article corpus",
	}
	corpusCmd.AddCommand(newCorpusImportCommand(ctx))
	corpusCmd.AddCommand(newCorpusListCommand(ctx))
	return corpusCmd
}

func newCorpusImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import articles from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := corpus.Open(cfg)
			if err != nil {
				return fmt.Errorf("open corpus store: %w", err)
			}
			defer store.Close()

			summary, err := store.ImportCSV(cmd.Context(), args[0], logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d articles (%d skipped)\n",
				summary.Imported, summary.Skipped)
			return nil
		},
	}
}

func newCorpusListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List imported articles and their triage verdicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := corpus.Open(cfg)
			if err != nil {
				return fmt.Errorf("open corpus store: %w", err)
			}
			defer store.Close()

			articles, err := store.ListArticles(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(articles))
			for _, article := range articles {
				decision := "-"
				if result, err := store.GetTriageResult(cmd.Context(), article.ID); err == nil && result != nil {
					decision = result.Decision
				}
				rows = append(rows, []string{
					article.ID,
					article.Title,
					strconv.Itoa(article.Year),
					article.Source,
					decision,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Year", "Source", "Triage"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
