package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pulsedash.app/harvester/common/id"
	"pulsedash.app/harvester/internal/extract"
	"pulsedash.app/harvester/internal/fetch"
	"pulsedash.app/harvester/internal/http/handler"
	"pulsedash.app/harvester/internal/http/router"
	"pulsedash.app/harvester/internal/model"
	"pulsedash.app/harvester/internal/pipeline"
	"pulsedash.app/harvester/internal/store"
)

type fetcherFunc func(ctx context.Context, pageURL string, opts fetch.Options) (string, error)

func (f fetcherFunc) FetchPage(ctx context.Context, pageURL string, opts fetch.Options) (string, error) {
	return f(ctx, pageURL, opts)
}

type extractorFunc func(ctx context.Context, content string, fields []model.FieldDescriptor, intent string, pass extract.Pass) (model.ResultRecord, error)

func (f extractorFunc) ExtractFields(ctx context.Context, content string, fields []model.FieldDescriptor, intent string, pass extract.Pass) (model.ResultRecord, error) {
	return f(ctx, content, fields, intent, pass)
}

var _ = Describe("JobHandler", func() {
	var (
		jobs   *store.MemoryStore
		runner *pipeline.Runner
		engine *gin.Engine
	)

	BeforeEach(func() {
		jobs = store.NewMemoryStore()
		runner = pipeline.NewRunner()

		fetcher := fetcherFunc(func(context.Context, string, fetch.Options) (string, error) {
			return "", errors.New("no fetch service in tests")
		})
		extractor := extractorFunc(func(context.Context, string, []model.FieldDescriptor, string, extract.Pass) (model.ResultRecord, error) {
			return model.ResultRecord{}, nil
		})
		orchestrator := pipeline.NewOrchestrator(jobs, fetcher, extractor, pipeline.Config{
			ItemDelay:     time.Millisecond,
			FallbackDelay: time.Millisecond,
			DefaultLimit:  10,
		})

		engine = gin.New()
		router.SetupRoutes(engine, handler.NewJobHandler(jobs, runner, orchestrator))
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(runner.Shutdown(ctx)).To(Succeed())
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	Describe("POST /jobs", func() {
		validBody := `{
			"targetUrl": "https://news.example.com/",
			"fields": [
				{"name": "title", "type": "text"},
				{"name": "fundingAmount", "type": "text"}
			],
			"requestedLimit": 2,
			"isDemoMode": true
		}`

		It("accepts a job and returns its id", func() {
			rec := do(http.MethodPost, "/jobs", validBody)
			Expect(rec.Code).To(Equal(http.StatusAccepted))

			var resp struct {
				JobID string `json:"jobId"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.JobID).NotTo(BeEmpty())

			job, err := jobs.Get(context.Background(), resp.JobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.TargetURL).To(Equal("https://news.example.com/"))
			Expect(job.OnFailure).To(Equal(model.PolicyDegrade))
		})

		It("rejects a missing targetUrl without storing anything", func() {
			rec := do(http.MethodPost, "/jobs", `{"fields": [{"name": "title"}]}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("targetUrl is required"))
			Expect(jobs.Len()).To(Equal(0))
		})

		It("rejects an empty field list", func() {
			rec := do(http.MethodPost, "/jobs", `{"targetUrl": "https://news.example.com/", "fields": []}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("fields is required"))
			Expect(jobs.Len()).To(Equal(0))
		})

		It("rejects a field without a name", func() {
			rec := do(http.MethodPost, "/jobs", `{"targetUrl": "https://news.example.com/", "fields": [{"type": "text"}]}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(jobs.Len()).To(Equal(0))
		})

		It("rejects an unknown failure policy", func() {
			body := `{
				"targetUrl": "https://news.example.com/",
				"fields": [{"name": "title"}],
				"onFailure": "explode"
			}`
			rec := do(http.MethodPost, "/jobs", body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("onFailure"))
			Expect(jobs.Len()).To(Equal(0))
		})

		It("rejects a malformed body", func() {
			rec := do(http.MethodPost, "/jobs", `{"targetUrl": `)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("runs a demo job to completion in the background", func() {
			rec := do(http.MethodPost, "/jobs", validBody)
			Expect(rec.Code).To(Equal(http.StatusAccepted))

			var resp struct {
				JobID string `json:"jobId"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())

			Eventually(func(g Gomega) {
				poll := do(http.MethodGet, "/jobs/"+resp.JobID, "")
				g.Expect(poll.Code).To(Equal(http.StatusOK))

				var job model.Job
				g.Expect(json.Unmarshal(poll.Body.Bytes(), &job)).To(Succeed())
				g.Expect(job.Status).To(Equal(model.StatusCompleted))
				g.Expect(job.Results).To(HaveLen(2))
				g.Expect(job.Progress.Message).To(ContainSubstring("Demo scraping completed"))

				for i, record := range job.Results {
					g.Expect(record["title"]).To(Equal(fmt.Sprintf("Sample Article Title %d", i+1)))
					g.Expect(record["fundingAmount"]).To(BeElementOf(
						"$1.2M", "$3.5M", "$500K", "$10M", "$25M", "$750K", "$5M", "$2.8M"))
				}
			}).WithTimeout(2 * time.Second).WithPolling(5 * time.Millisecond).Should(Succeed())
		})
	})

	Describe("GET /jobs/:id", func() {
		It("returns the stored job", func() {
			job := &model.Job{
				ID:        "known",
				TargetURL: "https://news.example.com/",
				Fields:    []model.FieldDescriptor{{Name: "title", Type: model.FieldText}},
				Status:    model.StatusRunning,
				Progress:  model.Progress{Current: 1, Total: 4, Message: "Scraping article 1 of 4..."},
				Results:   []model.ResultRecord{},
				CreatedAt: time.Now().UTC(),
			}
			Expect(jobs.Create(context.Background(), job)).To(Succeed())

			rec := do(http.MethodGet, "/jobs/known", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var got model.Job
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got.Status).To(Equal(model.StatusRunning))
			Expect(got.Progress.Total).To(Equal(4))
		})

		It("returns 404 for an unknown id", func() {
			rec := do(http.MethodGet, "/jobs/nope", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Body.String()).To(MatchJSON(`{"error": "Job not found"}`))
		})
	})

	Describe("GET /jobs/:id/export", func() {
		completedJob := func(id string) *model.Job {
			return &model.Job{
				ID:        id,
				TargetURL: "https://news.example.com/",
				Fields: []model.FieldDescriptor{
					{Name: "title", Type: model.FieldText},
					{Name: "fundingAmount", Type: model.FieldText},
				},
				Status: model.StatusCompleted,
				Results: []model.ResultRecord{
					{"title": "First", "fundingAmount": "$1.2M", "articleUrl": "https://news.example.com/a", "scrapedAt": "2026-09-01T10:00:00Z"},
					{"title": "Second", "fundingAmount": nil, "articleUrl": "https://news.example.com/b", "scrapedAt": "2026-09-01T10:00:05Z"},
				},
				CreatedAt: time.Now().UTC(),
			}
		}

		It("streams requested fields plus provenance columns as CSV", func() {
			Expect(jobs.Create(context.Background(), completedJob("done"))).To(Succeed())

			rec := do(http.MethodGet, "/jobs/done/export", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("text/csv"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("job-done.csv"))

			lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
			Expect(lines).To(HaveLen(3))
			Expect(lines[0]).To(Equal("title,fundingAmount,articleUrl,scrapedAt"))
			Expect(lines[1]).To(Equal("First,$1.2M,https://news.example.com/a,2026-09-01T10:00:00Z"))
			Expect(lines[2]).To(Equal("Second,,https://news.example.com/b,2026-09-01T10:00:05Z"))
		})

		It("limits columns to the fields query parameter", func() {
			Expect(jobs.Create(context.Background(), completedJob("subset"))).To(Succeed())

			rec := do(http.MethodGet, "/jobs/subset/export?fields=title", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
			Expect(lines[0]).To(Equal("title"))
			Expect(lines[1]).To(Equal("First"))
		})

		It("refuses to export a job that has not completed", func() {
			job := completedJob("running")
			job.Status = model.StatusRunning
			Expect(jobs.Create(context.Background(), job)).To(Succeed())

			rec := do(http.MethodGet, "/jobs/running/export", "")
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("returns 404 for an unknown id", func() {
			rec := do(http.MethodGet, "/jobs/ghost/export", "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /health", func() {
		It("reports ok", func() {
			rec := do(http.MethodGet, "/health", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"status": "ok"}`))
		})
	})
})

var _ = Describe("job id generation", func() {
	It("produces unique ids in a burst", func() {
		seen := make(map[string]bool, 1000)
		for i := 0; i < 1000; i++ {
			jobID := id.New()
			Expect(seen[jobID]).To(BeFalse(), "duplicate id %s", jobID)
			seen[jobID] = true
		}
	})
})
