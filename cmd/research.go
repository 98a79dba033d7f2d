package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/litmaphq/litmap/config"
	"github.com/litmaphq/litmap/internal/pipeline"
	"github.com/litmaphq/litmap/internal/retrieval"
	"github.com/litmaphq/litmap/internal/telemetry"
	"github.com/litmaphq/litmap/models"
	"github.com/litmaphq/litmap/provider"
)

// researchCMD runs a single research query from the terminal and prints the
// markdown report, without needing the server or a database.
func researchCMD() *cobra.Command {
	var cfgPath string
	var maxPapers int
	var research = &cobra.Command{
		Use:   "research [query]",
		Short: "Run a one-shot research query and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			query := strings.Join(args, " ")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			tele := telemetry.New(cfg.Telemetry)
			prov, err := provider.NewProvider(cfg.LLM, tele.LLMUsage(cfg.LLM))
			if err != nil {
				return err
			}
			registry := retrieval.NewRegistry(cfg.Retrieval, nil)
			orch := pipeline.NewOrchestrator(cfg, prov, registry, tele)

			report, err := orch.ResearchStream(ctx, query, maxPapers, func(e models.ProgressEvent) {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", e.Status, e.Message)
			})
			if err != nil {
				return err
			}

			fmt.Println(report.Markdown)
			fmt.Fprintf(os.Stderr, "\nreport %s: %d papers, %d themes, %.1fs\n",
				report.ReportID, report.PapersAnalyzed, len(report.Themes), report.ProcessingTime.Seconds())
			return nil
		},
	}
	research.Flags().IntVar(&maxPapers, "max-papers", 0, "override max papers to fetch")
	research.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return research
}
