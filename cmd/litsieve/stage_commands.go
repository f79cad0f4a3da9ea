package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"litsieve/internal/stage"
)

func newTriageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "triage",
		Short: "Screen every imported article against the inclusion criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, ctx, false, func(p *pipeline) (stage.Stage, error) {
				return stage.NewTriageStage(p.cfg, p.store, p.engine, p.runID), nil
			})
		},
	}
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Pull structured fields from triage-included articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, ctx, false, func(p *pipeline) (stage.Stage, error) {
				return stage.NewExtractionStage(p.cfg, p.store, p.engine, p.runID), nil
			})
		},
	}
}

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Write a three-part TL;DR for each included article",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, ctx, false, func(p *pipeline) (stage.Stage, error) {
				return stage.NewSummarizationStage(p.cfg, p.store, p.engine, p.runID), nil
			})
		},
	}
}

func newCrossValCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "crossval",
		Short: "Re-screen the corpus three times with prompt variations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := newPipeline(ctx, cfg.CrossValidation.ForceFallback)
			if err != nil {
				return err
			}
			defer p.Close()

			var tallies []stage.Tally
			for _, variant := range stage.Variants {
				st, err := stage.NewCrossValStage(p.cfg, p.store, p.engine, variant, p.runID)
				if err != nil {
					return err
				}
				runner := stage.NewRunner(p.cfg, p.logger, p.runID)
				tally, runErr := runner.Run(runCtx, st)
				tallies = append(tallies, tally)
				if runErr != nil {
					printTallies(cmd, tallies)
					return runErr
				}
			}

			printTallies(cmd, tallies)
			return nil
		},
	}
}

func runStage(cmd *cobra.Command, ctx *commandContext, forceFallback bool, build func(*pipeline) (stage.Stage, error)) error {
	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, forceFallback)
	if err != nil {
		return err
	}
	defer p.Close()

	st, err := build(p)
	if err != nil {
		return err
	}

	runner := stage.NewRunner(p.cfg, p.logger, p.runID)
	tally, runErr := runner.Run(runCtx, st)
	printTallies(cmd, []stage.Tally{tally})
	return runErr
}

func printTallies(cmd *cobra.Command, tallies []stage.Tally) {
	rows := make([][]string, 0, len(tallies))
	for _, tally := range tallies {
		rows = append(rows, []string{
			tally.Stage,
			strconv.Itoa(tally.Total),
			strconv.Itoa(tally.Succeeded),
			strconv.Itoa(tally.Failed),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Stage", "Articles", "Succeeded", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
}
