package main

// Priority levels assigned by the LLM classifier. "unknown" covers
// unrecognized or unparseable classifier output.
const (
	PriorityHigh    = "high"
	PriorityMedium  = "medium"
	PriorityLow     = "low"
	PriorityUnknown = "unknown"
)

var priorityLabels = map[string]string{
	PriorityHigh:    "High",
	PriorityMedium:  "Medium",
	PriorityLow:     "Low",
	PriorityUnknown: "Unknown",
}

// AnalysisResult holds the category frequency statistics for one run.
// CategoryOrder records first-seen order so tie-breaks and sorted views are
// deterministic (Go map iteration order is not).
type AnalysisResult struct {
	TotalRequests      int
	TotalRows          int
	CategoryCounts     map[string]int
	CategoryOrder      []string
	MostCommonCategory string
	MostCommonCount    int
	SkippedRows        []int // row numbers skipped for missing category
}

func (r AnalysisResult) HasData() bool {
	return r.TotalRequests > 0
}

type CategoryCount struct {
	Category string
	Count    int
}

// CategoriesSorted returns categories by count descending. Equal counts keep
// first-seen order from the row scan.
func (r AnalysisResult) CategoriesSorted() []CategoryCount {
	out := make([]CategoryCount, 0, len(r.CategoryOrder))
	for _, category := range r.CategoryOrder {
		out = append(out, CategoryCount{Category: category, Count: r.CategoryCounts[category]})
	}
	// Insertion sort keeps first-seen order stable for equal counts.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Count > out[j-1].Count; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// RequestRecord is one data row selected for enrichment. RowNumber is
// 1-indexed including the header row, so data rows start at 2.
type RequestRecord struct {
	RowNumber int
	ID        string
	Date      string
	Category  string
	Choice    string
}

// RequestContext is the metadata handed to the classifier alongside the
// free-text choice.
type RequestContext struct {
	ID       string
	Date     string
	Category string
}

// LLMAnalysis is the structured classification for a single request.
type LLMAnalysis struct {
	Priority       string
	PriorityText   string
	Summary        string
	Recommendation string
	ProcessingTime float64 // seconds
	Model          string
}

// EnrichedRequest pairs a record with either a classification or a failure
// reason, never both.
type EnrichedRequest struct {
	RequestRecord
	Analysis *LLMAnalysis
	Err      string
}

func (e EnrichedRequest) Failed() bool {
	return e.Err != ""
}

type EnrichStats struct {
	Total     int
	Succeeded int
	Failed    int
}
