package main

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// StartAnalysisScheduler re-runs the pipeline on a 5-field cron expression
// (minute hour day-of-month month day-of-week). Examples: "0 9 * * *"
// (daily 9am), "0 9 * * 1" (Mondays 9am). Unset schedule disables it.
func StartAnalysisScheduler(cfg Config, db *sql.DB, api *slack.Client) {
	schedule := strings.TrimSpace(cfg.AnalyzeSchedule)
	if schedule == "" {
		log.Println("Scheduled analysis disabled (analyze_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid analyze_schedule '%s': %v, scheduled analysis disabled", schedule, err)
		return
	}

	log.Printf("Analysis scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next analysis at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			summary, runErr := RunAnalysis(cfg, db, api)
			if runErr != nil {
				log.Printf("Scheduled analysis error: %v", runErr)
				continue
			}
			log.Printf("Scheduled analysis complete: %s", summary)
		}
	}()
}
