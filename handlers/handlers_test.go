package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/path-ml/path-backend/config"
	"github.com/path-ml/path-backend/coordinator"
	"github.com/path-ml/path-backend/models"
	"github.com/path-ml/path-backend/repository"
)

type fakeStore struct {
	mu         sync.Mutex
	jobs       []config.Job
	failCreate error
	failList   error
	failDelete error
}

func (s *fakeStore) CreateJob(ctx context.Context, job *config.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	s.jobs = append(s.jobs, *job)
	return nil
}

func (s *fakeStore) ListJobs(ctx context.Context) ([]config.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	// Newest first, like the real store's ORDER BY.
	out := make([]config.Job, 0, len(s.jobs))
	for i := len(s.jobs) - 1; i >= 0; i-- {
		out = append(out, s.jobs[i])
	}
	return out, nil
}

func (s *fakeStore) ListJobsByStatus(ctx context.Context, status string) ([]config.Job, error) {
	all, err := s.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	var out []config.Job
	for _, job := range all {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (*config.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			job := s.jobs[i]
			return &job, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakePublisher struct {
	mu          sync.Mutex
	count       int
	failPublish error
}

func (p *fakePublisher) Publish(ctx context.Context, event *models.JobSubmissionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPublish != nil {
		return p.failPublish
	}
	p.count++
	return nil
}

func setupRouter(store *fakeStore, pub *fakePublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(coordinator.New(store, pub), nil)

	router := gin.New()
	jobs := router.Group("/api/v1/jobs")
	{
		jobs.POST("", handler.CreateJob)
		jobs.GET("", handler.ListJobs)
		jobs.GET("/status/:status", handler.ListJobsByStatus)
		jobs.GET("/:id", handler.GetJob)
		jobs.DELETE("/:id", handler.DeleteJob)
	}
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateJobSuccess(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	router := setupRouter(store, pub)

	w := postJSON(router, "/api/v1/jobs",
		`{"name":"cartpole-run","model_type":"ppo","training_steps":10000,"learning_rate":0.0003,"description":"baseline"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.ID == "" {
		t.Error("expected a job id in the response")
	}
	if resp.Status != models.StatusQueued {
		t.Errorf("expected status queued, got %s", resp.Status)
	}
	if pub.count != 1 {
		t.Errorf("expected 1 published event, got %d", pub.count)
	}
}

func TestCreateJobMissingName(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	router := setupRouter(store, pub)

	w := postJSON(router, "/api/v1/jobs", `{"model_type":"ppo","training_steps":1000}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(store.jobs) != 0 || pub.count != 0 {
		t.Error("rejected submission must not touch store or queue")
	}
}

func TestCreateJobNonNumericSteps(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	router := setupRouter(store, pub)

	w := postJSON(router, "/api/v1/jobs",
		`{"name":"run","model_type":"ppo","training_steps":"lots"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric training_steps must fail closed, got %d", w.Code)
	}
	if len(store.jobs) != 0 || pub.count != 0 {
		t.Error("rejected submission must not touch store or queue")
	}
}

func TestCreateJobPersistenceFailure(t *testing.T) {
	store := &fakeStore{failCreate: errors.New("db down")}
	pub := &fakePublisher{}
	router := setupRouter(store, pub)

	w := postJSON(router, "/api/v1/jobs",
		`{"name":"run","model_type":"ppo","training_steps":1000}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "persistence_error" {
		t.Errorf("expected persistence_error kind, got %v", body["error"])
	}
	if pub.count != 0 {
		t.Error("no event may be published when the write fails")
	}
}

func TestCreateJobQueueFailure(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{failPublish: errors.New("stream unreachable")}
	router := setupRouter(store, pub)

	w := postJSON(router, "/api/v1/jobs",
		`{"name":"run","model_type":"ppo","training_steps":1000}`)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "queue_error" {
		t.Errorf("expected queue_error kind, got %v", body["error"])
	}
	if body["job_id"] == "" || body["job_id"] == nil {
		t.Error("queue_error response must carry the persisted job id")
	}
	// The record survives; the client is told not to re-submit.
	if len(store.jobs) != 1 {
		t.Errorf("expected the record to remain, got %d records", len(store.jobs))
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	store := &fakeStore{}
	router := setupRouter(store, &fakePublisher{})

	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store.jobs = []config.Job{
		{ID: "a", Name: "first", Status: models.StatusQueued, CreatedAt: t1},
		{ID: "b", Name: "second", Status: models.StatusQueued, CreatedAt: t1.Add(time.Minute)},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp []models.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp) != 2 || resp[0].ID != "b" || resp[1].ID != "a" {
		t.Errorf("expected [b a], got %+v", resp)
	}
}

func TestListJobsStoreUnavailable(t *testing.T) {
	store := &fakeStore{failList: errors.New("connection reset")}
	router := setupRouter(store, &fakePublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "store_unavailable" {
		t.Errorf("expected store_unavailable kind, got %v", body["error"])
	}
}

func TestListJobsByStatus(t *testing.T) {
	store := &fakeStore{}
	router := setupRouter(store, &fakePublisher{})

	store.jobs = []config.Job{
		{ID: "a", Status: models.StatusQueued, CreatedAt: time.Now()},
		{ID: "b", Status: models.StatusCompleted, CreatedAt: time.Now()},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/status/completed", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp []models.JobResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp) != 1 || resp[0].ID != "b" {
		t.Errorf("expected only the completed job, got %+v", resp)
	}
}

func TestGetJobNotFound(t *testing.T) {
	router := setupRouter(&fakeStore{}, &fakePublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDeleteJob(t *testing.T) {
	store := &fakeStore{}
	router := setupRouter(store, &fakePublisher{})
	store.jobs = []config.Job{{ID: "a", Status: models.StatusQueued}}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/a", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(store.jobs) != 0 {
		t.Error("record was not deleted")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/a", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestDeleteJobStoreUnavailable(t *testing.T) {
	store := &fakeStore{failDelete: errors.New("connection reset")}
	router := setupRouter(store, &fakePublisher{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/a", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "store_unavailable" {
		t.Errorf("expected store_unavailable kind, got %v", body["error"])
	}
}
