package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RenderReport formats the analysis and enrichment output as a markdown
// report suitable for the console, a file, or Slack.
func RenderReport(result AnalysisResult, enriched []EnrichedRequest, stats EnrichStats) string {
	var b strings.Builder

	b.WriteString("### Request Statistics\n\n")

	if !result.HasData() {
		b.WriteString("No data for analysis.\n")
		fmt.Fprintf(&b, "Rows scanned: %d\n", result.TotalRows)
		if len(result.SkippedRows) > 0 {
			fmt.Fprintf(&b, "Skipped (no category): %d\n", len(result.SkippedRows))
		}
		return b.String()
	}

	b.WriteString("| Category | Count | Percent |\n")
	b.WriteString("|---|---|---|\n")
	for _, cc := range result.CategoriesSorted() {
		fmt.Fprintf(&b, "| %s | %d | %s%% |\n", cc.Category, cc.Count, formatPercent(cc.Count, result.TotalRequests))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "- Total requests: %d\n", result.TotalRequests)
	fmt.Fprintf(&b, "- Unique categories: %d\n", len(result.CategoryCounts))
	if result.MostCommonCategory != "" {
		fmt.Fprintf(&b, "- Most popular category: **%s** (%d requests, %s%%)\n",
			result.MostCommonCategory, result.MostCommonCount,
			formatPercent(result.MostCommonCount, result.TotalRequests))
	}
	if len(result.SkippedRows) > 0 {
		fmt.Fprintf(&b, "- Skipped %d rows without category\n", len(result.SkippedRows))
	}

	if len(enriched) > 0 {
		b.WriteString("\n### LLM Analysis\n\n")
		for _, e := range enriched {
			if e.Failed() {
				fmt.Fprintf(&b, "- Request #%d (ID: %s), analysis failed: %s\n", e.RowNumber, e.ID, e.Err)
				continue
			}
			a := e.Analysis
			fmt.Fprintf(&b, "- **[%s]** Request #%d (ID: %s)\n", a.PriorityText, e.RowNumber, e.ID)
			fmt.Fprintf(&b, "  - Category: %s | Date: %s\n", orDash(e.Category), orDash(e.Date))
			if a.Summary != "" {
				fmt.Fprintf(&b, "  - Summary: %s\n", a.Summary)
			}
			if a.Recommendation != "" {
				fmt.Fprintf(&b, "  - Recommendation: %s\n", a.Recommendation)
			}
			fmt.Fprintf(&b, "  - Analysis time: %.2f sec\n", a.ProcessingTime)
		}
		fmt.Fprintf(&b, "\nAnalyzed %d requests: %d succeeded, %d failed\n", stats.Total, stats.Succeeded, stats.Failed)
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatPercent(count, total int) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(count)/float64(total)*100)
}

func WriteReportFile(content, outputDir string, runAt time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("analysis_%s.md", runAt.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}
