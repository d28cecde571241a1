package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/spf13/cobra"
)

var (
	topic   string
	backend string
	outFile string
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long:  `deep-research is an autonomous agent that investigates a topic by iterating through a plan, search, extract, integrate and assess loop until the synthesis is complete or the budget runs out.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("topic") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)

				fmt.Print("Enter research topic: ")
				input, _ := reader.ReadString('\n')
				topic = strings.TrimSpace(input)
			}
			if topic == "" {
				slog.Error("Topic cannot be empty")
				os.Exit(1)
			}
			if backend != "" {
				cfg.SearchBackend = backend
			}

			slog.Info("Starting research", "topic", topic, "backend", cfg.SearchBackend)

			ctx := context.Background()

			model, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, clients.ModelType(cfg.ReasoningModel))
			if err != nil {
				slog.Error("Failed to initialize model", "error", err)
				os.Exit(1)
			}

			var tool research.SearchTool
			if cfg.SearchBackend == "arxiv" {
				tool = search.NewArxiv()
			} else {
				tool = search.NewTavily(cfg.TavilyApiKey, "basic")
			}

			orch := research.NewOrchestrator(model, tool, cfg.ResearchConfig(), slog.Default())

			result, err := orch.Run(ctx, topic)
			if err != nil {
				slog.Error("Research run failed", "error", err)
				if result == nil {
					os.Exit(1)
				}
				// Fall through and write the partial report.
			}

			name := outFile
			if name == "" {
				name = fmt.Sprintf("report_%s.md", time.Now().Format("20060102_150405"))
			}
			if err := os.WriteFile(name, []byte(result.MarkdownReport()), 0o644); err != nil {
				slog.Error("Failed to write report", "file", name, "error", err)
				os.Exit(1)
			}

			stats := result.Stats()
			fmt.Printf("\nReport written to %s\n", name)
			fmt.Printf("Status: %s\n", result.Status)
			fmt.Printf("Iterations: %d, Sources: %d, Concepts: %d\n", stats.Iterations, stats.TotalSources, stats.TotalConcepts)
			fmt.Printf("Stopped because: %s\n", stats.FinalVerdictReason)
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().StringVarP(&backend, "backend", "b", "", "Search backend to use (tavily or arxiv)")
	rootCmd.Flags().StringVarP(&outFile, "out", "o", "", "Report output file")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
