package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultEnrichConcurrency = 4
const defaultEnrichCallTimeout = 60 * time.Second

type EnrichOptions struct {
	Concurrency int           // max in-flight classifier calls, >= 1
	CallTimeout time.Duration // per-record timeout, independent of ctx deadline
}

// EnrichRequests classifies every record through the classifier and returns
// one EnrichedRequest per input, in input order. Each call is isolated: a
// failed call marks only its own record. Cancelling ctx stops dispatch;
// records already classified keep their results and the rest carry the
// cancellation as their failure reason.
func EnrichRequests(ctx context.Context, records []RequestRecord, classifier Classifier, opts EnrichOptions) ([]EnrichedRequest, EnrichStats) {
	if len(records) == 0 {
		return nil, EnrichStats{}
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = defaultEnrichConcurrency
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultEnrichCallTimeout
	}

	// Results are assigned by input index, so completion order never
	// affects output order and writers never share a slot.
	results := make([]EnrichedRequest, len(records))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i := range records {
		record := records[i]
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(records); j++ {
				results[j] = EnrichedRequest{
					RequestRecord: records[j],
					Err:           fmt.Sprintf("enrichment cancelled: %v", err),
				}
			}
			break
		}

		wg.Add(1)
		go func(idx int, record RequestRecord) {
			defer wg.Done()
			defer sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, callTimeout)
			defer cancel()

			analysis, err := classifier.Classify(callCtx, record.Choice, RequestContext{
				ID:       record.ID,
				Date:     record.Date,
				Category: record.Category,
			})
			if err != nil {
				log.Printf("enrich row=%d id=%s error: %v", record.RowNumber, record.ID, err)
				results[idx] = EnrichedRequest{RequestRecord: record, Err: err.Error()}
				return
			}
			results[idx] = EnrichedRequest{RequestRecord: record, Analysis: &analysis}
		}(i, record)
	}

	wg.Wait()

	stats := EnrichStats{Total: len(results)}
	for _, r := range results {
		if r.Analysis != nil {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	log.Printf("enrich complete total=%d succeeded=%d failed=%d", stats.Total, stats.Succeeded, stats.Failed)
	return results, stats
}
