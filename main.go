package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/slack-go/slack"
)

// Seams for tests and for swapping the data source.
var fetchTableFn = fetchTable
var newClassifierFn = func(cfg Config) Classifier { return NewLLMClassifier(cfg) }

func main() {
	cfg := LoadConfig()
	appliedTimeout := ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. CategoryColumn=%d LLMProvider=%s LLMEnabled=%t Concurrency=%d ExternalHTTPTimeout=%s",
		cfg.CategoryColumn, cfg.LLMProvider, cfg.LLMEnabled(), cfg.LLMConcurrency, appliedTimeout,
	)
	if cfg.Debug && cfg.SheetsConfigured() {
		log.Printf("Sheets source: ...%s (service account %s)", tailOf(cfg.SpreadsheetID, 5), cfg.ServiceEmail())
	}

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	os.MkdirAll(cfg.ReportOutputDir, 0755)

	var api *slack.Client
	if cfg.SlackConfigured() {
		api = slack.New(cfg.SlackBotToken)
	}

	summary, err := RunAnalysis(cfg, db, api)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	log.Printf("Analysis complete: %s", summary)

	if cfg.AnalyzeSchedule != "" {
		StartAnalysisScheduler(cfg, db, api)
		select {}
	}
}

// RunAnalysis executes one full pipeline pass: fetch, aggregate, select,
// enrich, render, persist, deliver. Enrichment is skipped entirely when no
// classifier credential is configured.
func RunAnalysis(cfg Config, db *sql.DB, api *slack.Client) (string, error) {
	ctx := context.Background()
	runAt := time.Now().In(cfg.Location)

	table, err := fetchTableFn(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("fetching table: %w", err)
	}

	result := Analyze(table, cfg.CategoryColumn)

	var enriched []EnrichedRequest
	var stats EnrichStats
	if cfg.LLMEnabled() {
		records := SelectForEnrichment(table)
		if len(records) > 0 {
			enrichCtx := ctx
			if cfg.LLMDeadlineSeconds > 0 {
				var cancel context.CancelFunc
				enrichCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.LLMDeadlineSeconds)*time.Second)
				defer cancel()
			}
			classifier := newClassifierFn(cfg)
			enriched, stats = EnrichRequests(enrichCtx, records, classifier, EnrichOptions{
				Concurrency: cfg.LLMConcurrency,
				CallTimeout: time.Duration(cfg.LLMCallTimeoutSeconds) * time.Second,
			})

			if cfg.PriorityHintsPath != "" {
				hints, hintErr := LoadPriorityHints(cfg.PriorityHintsPath)
				if hintErr != nil {
					log.Printf("priority hints skipped: %v", hintErr)
				} else {
					applyPriorityHints(enriched, hints)
				}
			}

			if lc, ok := classifier.(*LLMClassifier); ok {
				usage := lc.Usage()
				log.Printf("llm usage tokens_in=%d tokens_out=%d total=%d", usage.InputTokens, usage.OutputTokens, usage.TotalTokens())
			}
		}
	} else {
		log.Println("LLM enrichment disabled (no API key configured)")
	}

	report := RenderReport(result, enriched, stats)
	reportPath, err := WriteReportFile(report, cfg.ReportOutputDir, runAt)
	if err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	runID, err := InsertAnalysisRun(db, AnalysisRun{
		RunAt:              runAt,
		TotalRows:          result.TotalRows,
		TotalRequests:      result.TotalRequests,
		SkippedRows:        len(result.SkippedRows),
		MostCommonCategory: result.MostCommonCategory,
		MostCommonCount:    result.MostCommonCount,
		EnrichedCount:      stats.Succeeded,
		FailedCount:        stats.Failed,
		LLMProvider:        cfg.LLMProvider,
		LLMModel:           cfg.LLMModel,
	}, result)
	if err != nil {
		return "", fmt.Errorf("storing run: %w", err)
	}
	if _, err := InsertEnrichedRequests(db, runID, enriched); err != nil {
		return "", fmt.Errorf("storing enriched requests: %w", err)
	}

	if api != nil {
		if err := PostReport(api, cfg.ReportChannelID, report); err != nil {
			log.Printf("Slack delivery error: %v", err)
		}
	}

	return fmt.Sprintf("rows=%d requests=%d skipped=%d enriched=%d failed=%d report=%s",
		result.TotalRows, result.TotalRequests, len(result.SkippedRows),
		stats.Succeeded, stats.Failed, reportPath), nil
}

func fetchTable(ctx context.Context, cfg Config) ([][]any, error) {
	if cfg.CSVPath != "" {
		return ReadCSVTable(cfg.CSVPath)
	}
	client, err := NewGoogleSheetsClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.FetchTable(ctx)
}
