// Package pipeline drives a scrape/extract job from creation to a terminal
// state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pulsedash.app/harvester/common/logger"
	"pulsedash.app/harvester/internal/discovery"
	"pulsedash.app/harvester/internal/extract"
	"pulsedash.app/harvester/internal/fetch"
	"pulsedash.app/harvester/internal/model"
	"pulsedash.app/harvester/internal/store"
)

const (
	maxDemoItems     = 10
	maxFallbackItems = 5
	degenerateItems  = 3
	minContentLength = 100
	reasonLimit      = 50
)

type Config struct {
	// ItemDelay throttles the outbound request rate between items; the
	// per-item sequencing within a job is intentional rate limiting, not an
	// accidental bottleneck.
	ItemDelay     time.Duration
	FallbackDelay time.Duration
	DefaultLimit  int
}

func (c Config) withDefaults() Config {
	if c.ItemDelay == 0 {
		c.ItemDelay = time.Second
	}
	if c.FallbackDelay == 0 {
		c.FallbackDelay = 500 * time.Millisecond
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	return c
}

// Orchestrator executes jobs. It is the only writer of a job record after
// submission; everything else polls.
type Orchestrator struct {
	store     store.JobStore
	fetcher   fetch.PageFetcher
	extractor extract.FieldExtractor
	cfg       Config
}

func NewOrchestrator(jobs store.JobStore, fetcher fetch.PageFetcher, extractor extract.FieldExtractor, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:     jobs,
		fetcher:   fetcher,
		extractor: extractor,
		cfg:       cfg.withDefaults(),
	}
}

// Execute runs a submitted job to a terminal state. Panics are recovered
// and reported as terminal errors so a bad page can never take the process
// down with it.
func (o *Orchestrator) Execute(ctx context.Context, jobID string) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:     logger.Ptr(jobID),
		Component: "harvester.pipeline",
	})

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in job execution", "panic", r)
			o.fail(ctx, jobID, fmt.Errorf("panic: %v", r))
		}
	}()

	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		slog.ErrorContext(ctx, "job vanished before execution", "error", err)
		return
	}

	o.update(ctx, jobID, func(j *model.Job) {
		j.Status = model.StatusRunning
		j.Progress.Message = "Starting scrape job..."
	})

	if job.IsDemoMode {
		o.runDemo(ctx, job)
		return
	}
	o.runReal(ctx, job)
}

// runDemo fabricates min(limit, 10) records with a fixed pacing delay so
// the UI and export path behave as they would on a real run.
func (o *Orchestrator) runDemo(ctx context.Context, job *model.Job) {
	total := min(o.limit(job), maxDemoItems)

	o.update(ctx, job.ID, func(j *model.Job) {
		j.Progress.Total = total
		j.Progress.Message = "Initializing demo scraper..."
	})

	for i := 1; i <= total; i++ {
		if err := sleepCtx(ctx, o.cfg.ItemDelay); err != nil {
			o.fail(ctx, job.ID, err)
			return
		}

		record := synthesizeRecord(job.Fields, i, sampleOptions{SourceURL: job.TargetURL})
		o.update(ctx, job.ID, func(j *model.Job) {
			j.Results = append(j.Results, record)
			j.Progress.Current = i
			j.Progress.Message = fmt.Sprintf("Generating sample item %d of %d...", i, total)
		})
	}

	o.complete(ctx, job.ID, fmt.Sprintf("Demo scraping completed. Generated %d items.", total))
}

// runReal performs the multi-stage scrape and applies the fallback boundary:
// with the default degrade policy an unhandled failure anywhere in the real
// stages converts the job into a smaller synthetic run instead of failing it.
func (o *Orchestrator) runReal(ctx context.Context, job *model.Job) {
	err := o.realStages(ctx, job)
	if err == nil {
		o.complete(ctx, job.ID, fmt.Sprintf("Scraping completed. Extracted %d items.", o.resultCount(ctx, job.ID)))
		return
	}

	if ctx.Err() != nil {
		o.fail(ctx, job.ID, ctx.Err())
		return
	}

	if job.OnFailure == model.PolicySurface {
		slog.WarnContext(ctx, "real-mode scrape failed, surfacing per policy", "error", err)
		o.fail(ctx, job.ID, err)
		return
	}

	slog.WarnContext(ctx, "real-mode scrape failed, degrading to fallback data", "error", err)
	if fbErr := o.runFallback(ctx, job, err); fbErr != nil {
		o.fail(ctx, job.ID, fbErr)
	}
}

func (o *Orchestrator) realStages(ctx context.Context, job *model.Job) error {
	limit := o.limit(job)

	o.message(ctx, job.ID, "Fetching target page...")
	content, err := o.fetcher.FetchPage(ctx, job.TargetURL, fetch.Options{Render: true})
	if err != nil {
		return fmt.Errorf("fetching target page: %w", err)
	}

	// Some sites render nothing without script execution; produce *some*
	// output from the main page rather than stalling on an empty document.
	if len(content) < minContentLength {
		return o.runDegenerate(ctx, job, content)
	}

	candidates := discovery.CandidateURLs(content, job.TargetURL)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	total := len(candidates)
	o.update(ctx, job.ID, func(j *model.Job) {
		j.Progress.Total = total
		j.Progress.Message = fmt.Sprintf("Discovered %d candidate links", total)
	})
	slog.InfoContext(ctx, "candidate discovery finished", "candidates", total)

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		itemNo := i + 1
		o.message(ctx, job.ID, fmt.Sprintf("Scraping article %d of %d...", itemNo, total))

		pageContent, fetchErr := o.fetcher.FetchPage(ctx, candidate, fetch.Options{Render: true})
		if fetchErr != nil {
			// A single bad candidate never aborts the job.
			slog.WarnContext(ctx, "candidate fetch failed, skipping",
				"url", candidate, "error", fetchErr)
			o.update(ctx, job.ID, func(j *model.Job) {
				j.Progress.Current = itemNo
				j.Progress.Message = fmt.Sprintf("Skipped unreachable article %d of %d", itemNo, total)
			})
			if err := sleepCtx(ctx, o.cfg.ItemDelay); err != nil {
				return err
			}
			continue
		}

		record := model.ResultRecord{
			"articleUrl": candidate,
			"scrapedAt":  time.Now().UTC().Format(time.RFC3339),
		}
		extracted, extractErr := o.extractor.ExtractFields(ctx, pageContent, job.Fields, job.Intent, extract.PassArticle)
		if extractErr != nil {
			slog.WarnContext(ctx, "extraction failed, null-filling fields",
				"url", candidate, "error", extractErr)
		} else {
			mergeRecord(record, extracted)
		}
		nullFill(record, job.Fields)

		o.update(ctx, job.ID, func(j *model.Job) {
			j.Results = append(j.Results, record)
			j.Progress.Current = itemNo
			j.Progress.Message = fmt.Sprintf("Extracted article %d of %d", itemNo, total)
		})

		if err := sleepCtx(ctx, o.cfg.ItemDelay); err != nil {
			return err
		}
	}

	return nil
}

// runDegenerate handles a target page that fetched but came back nearly
// empty: up to three records are synthesized from the main page itself,
// each optionally enriched with one summary-pass extraction over the same
// content.
func (o *Orchestrator) runDegenerate(ctx context.Context, job *model.Job, content string) error {
	total := min(o.limit(job), degenerateItems)
	host := sourceHost(job.TargetURL)

	o.update(ctx, job.ID, func(j *model.Job) {
		j.Progress.Total = total
		j.Progress.Message = "Target page has little content; reusing main page..."
	})
	slog.InfoContext(ctx, "degenerate content path", "content_length", len(content), "items", total)

	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		record := model.ResultRecord{
			"articleUrl": job.TargetURL,
			"scrapedAt":  time.Now().UTC().Format(time.RFC3339),
			"title":      fmt.Sprintf("Article %d from %s", i, host),
		}

		if content != "" {
			extracted, err := o.extractor.ExtractFields(ctx, content, job.Fields, job.Intent, extract.PassSummary)
			if err != nil {
				slog.WarnContext(ctx, "degenerate extraction failed", "error", err)
			} else {
				mergeRecord(record, extracted)
			}
		}
		nullFill(record, job.Fields)

		o.update(ctx, job.ID, func(j *model.Job) {
			j.Results = append(j.Results, record)
			j.Progress.Current = i
			j.Progress.Message = fmt.Sprintf("Captured item %d of %d from main page", i, total)
		})

		if err := sleepCtx(ctx, o.cfg.ItemDelay); err != nil {
			return err
		}
	}

	return nil
}

// runFallback is the degrade path of the fallback boundary: a smaller,
// faster synthetic run that completes the job despite the real failure.
func (o *Orchestrator) runFallback(ctx context.Context, job *model.Job, cause error) error {
	total := min(o.limit(job), maxFallbackItems)
	reason := truncateReason(cause.Error(), reasonLimit)
	notice := fmt.Sprintf("Real scrape failed (%s). Falling back to sample data...", reason)

	o.update(ctx, job.ID, func(j *model.Job) {
		j.Results = nil
		j.Progress = model.Progress{Total: total, Message: notice}
	})

	for i := 1; i <= total; i++ {
		if err := sleepCtx(ctx, o.cfg.FallbackDelay); err != nil {
			return err
		}

		record := synthesizeRecord(job.Fields, i, sampleOptions{
			Label:     "Fallback",
			SourceURL: job.TargetURL,
		})
		o.update(ctx, job.ID, func(j *model.Job) {
			j.Results = append(j.Results, record)
			j.Progress.Current = i
		})
	}

	o.complete(ctx, job.ID, fmt.Sprintf(
		"Real scrape failed (%s). Falling back to sample data produced %d items.", reason, total))
	return nil
}

func (o *Orchestrator) limit(job *model.Job) int {
	if job.RequestedLimit > 0 {
		return job.RequestedLimit
	}
	return o.cfg.DefaultLimit
}

func (o *Orchestrator) complete(ctx context.Context, jobID, message string) {
	o.update(ctx, jobID, func(j *model.Job) {
		j.Status = model.StatusCompleted
		j.Progress.Message = message
	})
	slog.InfoContext(ctx, "job completed")
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, cause error) {
	o.update(ctx, jobID, func(j *model.Job) {
		j.Status = model.StatusError
		j.Error = cause.Error()
		j.Progress.Message = fmt.Sprintf("Scraping failed: %s", cause.Error())
	})
	slog.ErrorContext(ctx, "job failed", "error", cause)
}

func (o *Orchestrator) message(ctx context.Context, jobID, message string) {
	o.update(ctx, jobID, func(j *model.Job) {
		j.Progress.Message = message
	})
}

func (o *Orchestrator) update(ctx context.Context, jobID string, mutate func(*model.Job)) {
	if err := o.store.Update(ctx, jobID, mutate); err != nil {
		slog.ErrorContext(ctx, "job update failed", "error", err)
	}
}

func (o *Orchestrator) resultCount(ctx context.Context, jobID string) int {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return 0
	}
	return len(job.Results)
}

func mergeRecord(dst model.ResultRecord, src model.ResultRecord) {
	for k, v := range src {
		dst[k] = v
	}
}

// nullFill guarantees every requested field is present, with an explicit
// null for anything the extraction pass did not produce.
func nullFill(record model.ResultRecord, fields []model.FieldDescriptor) {
	for _, f := range fields {
		if _, ok := record[f.Name]; !ok {
			record[f.Name] = nil
		}
	}
}

func truncateReason(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
