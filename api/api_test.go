package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/api"
	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/orchestrator"
	"github.com/kbukum/flowkit/server/middleware"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/workflow"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const etlJSON = `{
  "id": "etl",
  "name": "ETL",
  "stages": [
    {"id": "extract", "type": "source"},
    {"id": "load", "type": "sink", "depends_on": ["extract"]}
  ]
}`

type fixture struct {
	router *gin.Engine
	orch   *orchestrator.Orchestrator
	hub    *sse.Hub
}

func newFixture(t *testing.T, opts api.Options) *fixture {
	t.Helper()
	handlers := workflow.NewHandlerRegistry()
	handlers.RegisterFunc("source", func(context.Context, map[string]any, []workflow.Row, *workflow.ExecutionContext) (*workflow.StageResult, error) {
		return &workflow.StageResult{Rows: []workflow.Row{{"id": 1}}, RowsRead: 1, RowsWritten: 1}, nil
	})
	hub := sse.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	orch := orchestrator.New(orchestrator.Config{}, handlers,
		orchestrator.WithLogger(logger.NewNop()),
		orchestrator.WithEventSink(hub),
	)
	r := gin.New()
	api.New(orch, hub, logger.NewNop()).Register(r, opts)
	return &fixture{router: r, orch: orch, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func data[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return env.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error %s: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
}

func waitInstance(t *testing.T, f *fixture, id string) *workflow.Instance {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := f.do(t, http.MethodGet, "/api/v1/instances/"+id, "")
		expectStatus(t, rec, http.StatusOK)
		inst := data[*workflow.Instance](t, rec)
		if inst.Status.Terminal() {
			return inst
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("instance %s did not finish", id)
	return nil
}

func TestWorkflows(t *testing.T) {
	f := newFixture(t, api.Options{ServiceName: "flowkit"})

	expectStatus(t, f.do(t, http.MethodPost, "/api/v1/workflows", etlJSON), http.StatusCreated)

	rec := f.do(t, http.MethodGet, "/api/v1/workflows", "")
	expectStatus(t, rec, http.StatusOK)
	if defs := data[[]workflow.Definition](t, rec); len(defs) != 1 || defs[0].ID != "etl" {
		t.Fatalf("unexpected list %+v", defs)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workflows/etl/validate", "")
	expectStatus(t, rec, http.StatusOK)
	v := data[struct {
		Valid  bool       `json:"valid"`
		Order  []string   `json:"order"`
		Levels [][]string `json:"levels"`
	}](t, rec)
	if !v.Valid || strings.Join(v.Order, ",") != "extract,load" || len(v.Levels) != 2 {
		t.Fatalf("unexpected validation %+v", v)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workflows/etl/execute", `{"parameters":{"date":"2024-06-15"}}`)
	expectStatus(t, rec, http.StatusAccepted)
	started := data[*workflow.Instance](t, rec)
	if started.TriggeredBy != "api" || started.Parameters["date"] != "2024-06-15" {
		t.Fatalf("unexpected instance %+v", started)
	}
	inst := waitInstance(t, f, started.ID)
	if inst.Status != workflow.InstanceCompleted || inst.Metrics.TotalRowsRead == 0 {
		t.Fatalf("unexpected final instance %+v", inst)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/instances?workflow_id=etl", "")
	if got := data[[]workflow.Instance](t, rec); len(got) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(got))
	}
	rec = f.do(t, http.MethodPost, "/api/v1/instances/"+inst.ID+"/pause", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != apperrors.ErrCodeConflict {
		t.Fatalf("pausing a finished instance: %d %s", rec.Code, rec.Body.String())
	}

	expectStatus(t, f.do(t, http.MethodDelete, "/api/v1/workflows/etl", ""), http.StatusNoContent)
	rec = f.do(t, http.MethodGet, "/api/v1/workflows/etl", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != apperrors.ErrCodeNotFound {
		t.Fatalf("expected 404 NOT_FOUND, got %d", rec.Code)
	}
}

func TestCreateWorkflow_Invalid(t *testing.T) {
	f := newFixture(t, api.Options{})
	cyclic := `{"id":"loop","name":"Loop","stages":[
		{"id":"a","type":"x","depends_on":["b"]},
		{"id":"b","type":"x","depends_on":["a"]}]}`

	rec := f.do(t, http.MethodPost, "/api/v1/workflows", cyclic)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != apperrors.ErrCodeValidationFailed {
		t.Fatalf("expected 400 VALIDATION_FAILED, got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"cycle"`) {
		t.Fatalf("validation result missing from details: %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/workflows", `{"id":`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != apperrors.ErrCodeInvalidInput {
		t.Fatalf("expected 400 INVALID_INPUT for malformed json, got %d", rec.Code)
	}
}

func TestSchedulesAndJobs(t *testing.T) {
	f := newFixture(t, api.Options{})
	expectStatus(t, f.do(t, http.MethodPost, "/api/v1/workflows", etlJSON), http.StatusCreated)

	orphan := `{"id":"o","workflow_id":"missing","enabled":true,"trigger":{"type":"manual"}}`
	rec := f.do(t, http.MethodPost, "/api/v1/schedules", orphan)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown workflow, got %d", rec.Code)
	}

	sched := `{"id":"on-upload","workflow_id":"etl","enabled":true,"trigger":{"type":"event","event":"file.uploaded"}}`
	expectStatus(t, f.do(t, http.MethodPost, "/api/v1/schedules", sched), http.StatusCreated)

	rec = f.do(t, http.MethodPost, "/api/v1/schedules/on-upload/disable", "")
	expectStatus(t, rec, http.StatusOK)
	if s := data[workflow.Schedule](t, rec); s.Enabled {
		t.Fatal("schedule still enabled")
	}
	rec = f.do(t, http.MethodPost, "/api/v1/events/file.uploaded", "")
	expectStatus(t, rec, http.StatusAccepted)
	if jobs := data[[]workflow.Job](t, rec); len(jobs) != 0 {
		t.Fatalf("disabled schedule fired %d jobs", len(jobs))
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/v1/schedules/on-upload/enable", ""), http.StatusOK)
	rec = f.do(t, http.MethodPost, "/api/v1/events/file.uploaded", `{"parameters":{"path":"/in/a.csv"}}`)
	expectStatus(t, rec, http.StatusAccepted)
	if jobs := data[[]workflow.Job](t, rec); len(jobs) != 1 || jobs[0].TriggeredBy != "event:file.uploaded" {
		t.Fatalf("unexpected event jobs %+v", jobs)
	}
	f.orch.Scheduler().Wait()

	rec = f.do(t, http.MethodPost, "/api/v1/schedules/on-upload/trigger", "")
	expectStatus(t, rec, http.StatusAccepted)
	job := data[workflow.Job](t, rec)
	f.orch.Scheduler().Wait()

	rec = f.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	expectStatus(t, rec, http.StatusOK)
	done := data[workflow.Job](t, rec)
	if done.Status != workflow.JobCompleted || done.PipelineInstanceID == "" {
		t.Fatalf("unexpected job %+v", done)
	}
	inst, err := f.orch.Engine().Instance(done.PipelineInstanceID)
	if err != nil || inst.TriggeredBy != "api" {
		t.Fatalf("instance %+v err=%v", inst, err)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/schedules/on-upload/jobs", "")
	if jobs := data[[]workflow.Job](t, rec); len(jobs) != 2 {
		t.Fatalf("expected 2 jobs in history, got %d", len(jobs))
	}
	rec = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancelling a finished job: %d", rec.Code)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/v1/schedules/nope/jobs", ""), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodDelete, "/api/v1/schedules/on-upload", ""), http.StatusNoContent)
}

func TestAuth(t *testing.T) {
	auth := middleware.JWTConfig{Secret: "0123456789abcdef-secret"}
	auth.ApplyDefaults()
	f := newFixture(t, api.Options{ServiceName: "flowkit", Auth: auth})

	expectStatus(t, f.do(t, http.MethodGet, "/health", ""), http.StatusOK)
	expectStatus(t, f.do(t, http.MethodGet, "/version", ""), http.StatusOK)
	rec := f.do(t, http.MethodGet, "/api/v1/workflows", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	token, err := auth.Issue("ops", time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	f.orch.RegisterWorkflow(&workflow.Definition{ID: "etl", Name: "ETL", Stages: []workflow.StageDefinition{{ID: "a", Type: "source"}}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/etl/execute", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusAccepted)
	if inst := data[*workflow.Instance](t, rec); inst.TriggeredBy != "api:ops" {
		t.Fatalf("triggered_by = %q", inst.TriggeredBy)
	}
}

func TestStream(t *testing.T) {
	f := newFixture(t, api.Options{})
	f.orch.RegisterWorkflow(&workflow.Definition{ID: "etl", Name: "ETL", Stages: []workflow.StageDefinition{{ID: "a", Type: "source"}}})
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream?topic=pipeline:*", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				events <- name
			}
		}
	}()

	next := func() string {
		select {
		case name := <-events:
			return name
		case <-ctx.Done():
			t.Fatal("stream timed out")
		}
		return ""
	}
	if name := next(); name != sse.EventTypeConnected {
		t.Fatalf("first event = %q", name)
	}

	if _, err := f.orch.Engine().Execute(context.Background(), "etl", nil, "test"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for {
		name := next()
		if name == orchestrator.EventPipelineCompleted {
			return
		}
		if name != orchestrator.EventStageCompleted {
			t.Fatalf("unexpected event %q", name)
		}
	}
}
