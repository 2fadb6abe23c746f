package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func pipelineConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		CategoryColumn:        3,
		LLMProvider:           "openai",
		OpenRouterAPIKey:      "test-key",
		LLMModel:              "test-model",
		LLMConcurrency:        2,
		LLMCallTimeoutSeconds: 5,
		DBPath:                filepath.Join(dir, "runs.db"),
		ReportOutputDir:       filepath.Join(dir, "reports"),
		Location:              time.UTC,
	}
}

func TestRunAnalysis_FullPipeline(t *testing.T) {
	cfg := pipelineConfig(t)

	origFetch, origClassifier := fetchTableFn, newClassifierFn
	defer func() { fetchTableFn, newClassifierFn = origFetch, origClassifier }()

	fetchTableFn = func(ctx context.Context, cfg Config) ([][]any, error) {
		return sampleTable(), nil
	}
	newClassifierFn = func(cfg Config) Classifier {
		return &fakeClassifier{
			classify: func(_ context.Context, text string, _ RequestContext) (LLMAnalysis, error) {
				a := okAnalysis(text)
				a.Recommendation = "follow up"
				return a, nil
			},
		}
	}

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	defer db.Close()

	summary, err := RunAnalysis(cfg, db, nil)
	if err != nil {
		t.Fatalf("run analysis: %v", err)
	}

	for _, want := range []string{"rows=4", "requests=2", "skipped=1", "enriched=3", "failed=0"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q: %s", want, summary)
		}
	}

	runs, err := GetRecentRuns(db, 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one stored run: %v / %+v", err, runs)
	}
	if runs[0].TotalRequests != 2 || runs[0].EnrichedCount != 3 {
		t.Fatalf("unexpected stored run: %+v", runs[0])
	}

	entries, err := os.ReadDir(cfg.ReportOutputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one report file: %v / %d", err, len(entries))
	}
	content, err := os.ReadFile(filepath.Join(cfg.ReportOutputDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(content), "### Request Statistics") {
		t.Fatalf("report file missing statistics section:\n%s", content)
	}
	if !strings.Contains(string(content), "### LLM Analysis") {
		t.Fatalf("report file missing LLM section:\n%s", content)
	}
}

func TestRunAnalysis_EnrichmentDisabled(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.OpenRouterAPIKey = ""

	origFetch, origClassifier := fetchTableFn, newClassifierFn
	defer func() { fetchTableFn, newClassifierFn = origFetch, origClassifier }()

	fetchTableFn = func(ctx context.Context, cfg Config) ([][]any, error) {
		return sampleTable(), nil
	}
	newClassifierFn = func(cfg Config) Classifier {
		t.Fatal("classifier must not be built when enrichment is disabled")
		return nil
	}

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	defer db.Close()

	summary, err := RunAnalysis(cfg, db, nil)
	if err != nil {
		t.Fatalf("run analysis: %v", err)
	}
	if !strings.Contains(summary, "enriched=0") {
		t.Fatalf("disabled enrichment should report zero: %s", summary)
	}

	entries, err := os.ReadDir(cfg.ReportOutputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("stats-only run should still write a report: %v / %d", err, len(entries))
	}
	content, _ := os.ReadFile(filepath.Join(cfg.ReportOutputDir, entries[0].Name()))
	if strings.Contains(string(content), "### LLM Analysis") {
		t.Fatalf("stats-only report must not carry an LLM section:\n%s", content)
	}
}

func TestRunAnalysis_CSVSource(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.OpenRouterAPIKey = ""
	cfg.CSVPath = filepath.Join(t.TempDir(), "requests.csv")

	csv := "ID,Date,Category,Choice\n1,2024-01-05,Billing,refund stuck\n2,2024-01-06,Support,login broken\n"
	if err := os.WriteFile(cfg.CSVPath, []byte(csv), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	defer db.Close()

	summary, err := RunAnalysis(cfg, db, nil)
	if err != nil {
		t.Fatalf("run analysis: %v", err)
	}
	if !strings.Contains(summary, "rows=3") || !strings.Contains(summary, "requests=2") {
		t.Fatalf("unexpected summary for csv source: %s", summary)
	}
}

func TestRunAnalysis_FetchErrorAborts(t *testing.T) {
	cfg := pipelineConfig(t)
	cfg.CSVPath = filepath.Join(t.TempDir(), "missing.csv")
	cfg.OpenRouterAPIKey = ""

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	defer db.Close()

	if _, err := RunAnalysis(cfg, db, nil); err == nil {
		t.Fatal("fetch failure must abort the run")
	}

	runs, err := GetRecentRuns(db, 10)
	if err != nil {
		t.Fatalf("get runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("aborted run must not be persisted: %+v", runs)
	}
}
