package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Sheet layout: A=id, B=date, C=category, D=choice. The category column is
// configurable; the selector columns are fixed.
const (
	idColumn       = 1
	dateColumn     = 2
	categoryColumn = 3
	choiceColumn   = 4
)

// NormalizeCell returns the trimmed text of the 1-indexed column, or "" when
// the column is absent or the cell holds nothing representable. It never
// fails: downstream code branches on empty string, not on cell type.
func NormalizeCell(row []any, column int) string {
	if column < 1 || column > len(row) {
		return ""
	}
	return normalizeValue(row[column-1])
}

func normalizeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// Analyze scans the table (row 1 is the header) and builds category
// frequency statistics. Rows whose category normalizes to empty are counted
// as skipped, not errors. The input table is never mutated and identical
// input always produces an identical result, tie-breaks included.
func Analyze(table [][]any, catColumn int) AnalysisResult {
	result := AnalysisResult{
		TotalRows:      len(table),
		CategoryCounts: map[string]int{},
	}
	if len(table) <= 1 {
		return result
	}

	for i, row := range table[1:] {
		rowNumber := i + 2
		category := NormalizeCell(row, catColumn)
		if category == "" {
			result.SkippedRows = append(result.SkippedRows, rowNumber)
			continue
		}
		if _, seen := result.CategoryCounts[category]; !seen {
			result.CategoryOrder = append(result.CategoryOrder, category)
		}
		result.CategoryCounts[category]++
		result.TotalRequests++
	}

	if len(result.SkippedRows) > 0 {
		log.Printf("analyze skipped=%d rows without category", len(result.SkippedRows))
	}

	// First category to reach the max count wins; CategoryOrder makes the
	// walk deterministic.
	for _, category := range result.CategoryOrder {
		if result.CategoryCounts[category] > result.MostCommonCount {
			result.MostCommonCategory = category
			result.MostCommonCount = result.CategoryCounts[category]
		}
	}

	return result
}

// SelectForEnrichment returns the records eligible for LLM enrichment: data
// rows with a non-empty choice, in source row order. A blank id falls back
// to the row number.
func SelectForEnrichment(table [][]any) []RequestRecord {
	if len(table) <= 1 {
		return nil
	}

	var records []RequestRecord
	for i, row := range table[1:] {
		rowNumber := i + 2
		record := RequestRecord{
			RowNumber: rowNumber,
			ID:        NormalizeCell(row, idColumn),
			Date:      NormalizeCell(row, dateColumn),
			Category:  NormalizeCell(row, categoryColumn),
			Choice:    NormalizeCell(row, choiceColumn),
		}
		if record.ID == "" {
			record.ID = strconv.Itoa(rowNumber)
		}
		if record.Choice == "" {
			continue
		}
		records = append(records, record)
	}

	if len(records) > 0 {
		log.Printf("select found=%d requests with a description for enrichment", len(records))
	} else {
		log.Println("select found no requests with a description for enrichment")
	}

	return records
}
