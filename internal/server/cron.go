package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/budget-gamer-hq/offer-harvester/internal/domain"
)

// job names double as adapter/source ids in the registry.
const (
	jobReddit       = "reddit"
	jobAmazon       = "amazon_games"
	jobEpic         = "epic_games"
	jobHumbleChoice = "humble_choice"
	jobPSPlus       = "ps_plus"
)

var (
	dailyJobs    = []string{jobReddit, jobAmazon, jobEpic, jobHumbleChoice, jobPSPlus}
	thursdayJobs = []string{jobAmazon, jobEpic}
)

// jobResult mirrors a settled promise: one adapter's outcome never hides the
// others'.
type jobResult struct {
	Status string        `json:"status"`
	Tally  *domain.Tally `json:"tally,omitempty"`
	Error  string        `json:"error,omitempty"`
}

const (
	statusFulfilled = "fulfilled"
	statusRejected  = "rejected"
)

func (s *Server) handleCronDaily(w http.ResponseWriter, r *http.Request) {
	s.runCron(w, r, dailyJobs)
}

func (s *Server) handleCronThursday(w http.ResponseWriter, r *http.Request) {
	s.runCron(w, r, thursdayJobs)
}

// runCron fires every job concurrently and waits for all of them. The
// response is 200 as long as the run itself happened; per-job failures are
// reported inside the body.
func (s *Server) runCron(w http.ResponseWriter, r *http.Request, jobs []string) {
	ctx := r.Context()

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string]jobResult, len(jobs))

	for _, name := range jobs {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			result := s.runJob(ctx, name)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	s.log.InfoObj("cron run finished", "server_cron", map[string]any{
		"jobs":    jobs,
		"results": results,
	})
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) runJob(ctx context.Context, name string) jobResult {
	var tally domain.Tally
	var err error

	if name == jobReddit {
		tally, err = s.svc.RunArticleSource(ctx, name)
	} else {
		tally, err = s.svc.RunBatch(ctx, name)
	}

	if err != nil {
		s.log.ErrorObj("cron job failed", "server_cron", map[string]any{
			"job":   name,
			"error": err.Error(),
		})
		return jobResult{Status: statusRejected, Error: err.Error()}
	}
	return jobResult{Status: statusFulfilled, Tally: &tally}
}
