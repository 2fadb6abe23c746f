package main

import (
	"reflect"
	"testing"
)

func sampleTable() [][]any {
	return [][]any{
		{"id", "date", "cat", "choice"},
		{"1", "2024-01-01", "Billing", "slow refund"},
		{"2", "2024-01-02", "Billing", "double charge"},
		{"3", "2024-01-03", "", "no category"},
	}
}

func TestAnalyze_CountsAndSkips(t *testing.T) {
	result := Analyze(sampleTable(), 3)

	if result.TotalRequests != 2 {
		t.Fatalf("expected 2 requests, got %d", result.TotalRequests)
	}
	if result.TotalRows != 4 {
		t.Fatalf("expected 4 total rows, got %d", result.TotalRows)
	}
	if result.CategoryCounts["Billing"] != 2 || len(result.CategoryCounts) != 1 {
		t.Fatalf("unexpected category counts: %v", result.CategoryCounts)
	}
	if !reflect.DeepEqual(result.SkippedRows, []int{4}) {
		t.Fatalf("expected row 4 skipped, got %v", result.SkippedRows)
	}
	if result.MostCommonCategory != "Billing" || result.MostCommonCount != 2 {
		t.Fatalf("unexpected most common: %s/%d", result.MostCommonCategory, result.MostCommonCount)
	}

	sum := 0
	for _, c := range result.CategoryCounts {
		sum += c
	}
	if sum != result.TotalRequests {
		t.Fatalf("count sum %d != total requests %d", sum, result.TotalRequests)
	}
}

func TestAnalyze_EmptyAndHeaderOnly(t *testing.T) {
	for _, table := range [][][]any{nil, {}, {{"id", "date", "cat", "choice"}}} {
		result := Analyze(table, 3)
		if result.HasData() {
			t.Fatalf("expected no data for table of %d rows", len(table))
		}
		if result.TotalRequests != 0 || len(result.CategoryCounts) != 0 {
			t.Fatalf("expected zero result, got %+v", result)
		}
		if result.TotalRows != len(table) {
			t.Fatalf("expected total rows %d, got %d", len(table), result.TotalRows)
		}
	}
}

func TestAnalyze_TieBreakFirstSeen(t *testing.T) {
	table := [][]any{
		{"id", "date", "cat", "choice"},
		{"1", "", "Billing", ""},
		{"2", "", "Support", ""},
		{"3", "", "Support", ""},
		{"4", "", "Billing", ""},
	}
	result := Analyze(table, 3)

	if result.MostCommonCategory != "Billing" {
		t.Fatalf("tie should go to first-seen category Billing, got %s", result.MostCommonCategory)
	}
	if result.MostCommonCount != 2 {
		t.Fatalf("expected tied count 2, got %d", result.MostCommonCount)
	}
}

func TestAnalyze_NonStringCells(t *testing.T) {
	table := [][]any{
		{"id", "date", "cat"},
		{1, "2024-01-01", 42.0},
		{2, "2024-01-02", "  Billing  "},
		{3, "2024-01-03", nil},
	}
	result := Analyze(table, 3)

	if result.CategoryCounts["42"] != 1 {
		t.Fatalf("numeric category should count as its text form: %v", result.CategoryCounts)
	}
	if result.CategoryCounts["Billing"] != 1 {
		t.Fatalf("padded category should be trimmed: %v", result.CategoryCounts)
	}
	if !reflect.DeepEqual(result.SkippedRows, []int{4}) {
		t.Fatalf("nil category row should be skipped, got %v", result.SkippedRows)
	}
}

func TestAnalyze_ShortRowsAreSkippedNotFatal(t *testing.T) {
	table := [][]any{
		{"id", "date", "cat"},
		{"1"},
		{},
		{"3", "2024-01-01", "Support"},
	}
	result := Analyze(table, 3)

	if result.TotalRequests != 1 {
		t.Fatalf("expected 1 request, got %d", result.TotalRequests)
	}
	if len(result.SkippedRows) != 2 {
		t.Fatalf("expected 2 skipped rows, got %v", result.SkippedRows)
	}
}

func TestAnalyze_PureAndDeterministic(t *testing.T) {
	table := sampleTable()
	snapshot := make([][]any, len(table))
	for i, row := range table {
		snapshot[i] = append([]any(nil), row...)
	}

	first := Analyze(table, 3)
	second := Analyze(table, 3)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("analyze is not deterministic:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(table, snapshot) {
		t.Fatalf("analyze mutated its input")
	}
}

func TestNormalizeCell(t *testing.T) {
	row := []any{"  hello  ", 42.0, nil, true, 7}

	cases := []struct {
		column int
		want   string
	}{
		{1, "hello"},
		{2, "42"},
		{3, ""},
		{4, "true"},
		{5, "7"},
		{6, ""},  // out of range
		{0, ""},  // columns are 1-indexed
		{-1, ""}, // never panics
	}
	for _, tc := range cases {
		if got := NormalizeCell(row, tc.column); got != tc.want {
			t.Fatalf("NormalizeCell(col=%d) = %q, want %q", tc.column, got, tc.want)
		}
	}
}

func TestSelectForEnrichment(t *testing.T) {
	table := [][]any{
		{"id", "date", "cat", "choice"},
		{"", "2024-01-01", "Billing", "  slow refund  "},
		{"77", "2024-01-02", "Billing", ""},
		{"5", "2024-01-03", "", "no category but has text"},
		{"6"},
	}
	records := SelectForEnrichment(table)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}
	if records[0].RowNumber != 2 || records[0].ID != "2" {
		t.Fatalf("blank id should fall back to row number: %+v", records[0])
	}
	if records[0].Choice != "slow refund" {
		t.Fatalf("choice should be trimmed: %q", records[0].Choice)
	}
	if records[1].RowNumber != 4 || records[1].Category != "" {
		t.Fatalf("record with empty category but non-empty choice must be kept: %+v", records[1])
	}
	for i := 1; i < len(records); i++ {
		if records[i].RowNumber <= records[i-1].RowNumber {
			t.Fatalf("records not in increasing row order: %+v", records)
		}
	}
}

func TestSelectForEnrichment_SmallTables(t *testing.T) {
	if got := SelectForEnrichment(nil); got != nil {
		t.Fatalf("nil table should yield no records, got %+v", got)
	}
	if got := SelectForEnrichment([][]any{{"id", "date", "cat", "choice"}}); got != nil {
		t.Fatalf("header-only table should yield no records, got %+v", got)
	}
}
