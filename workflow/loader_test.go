package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const bundleYAML = `
workflows:
  - id: etl
    name: Nightly ETL
    error_handling: skip-error
    parameters:
      - name: date
        required: true
        default: "2024-01-01"
    stages:
      - id: extract
        type: source
        config:
          table: orders
      - id: load
        type: sink
        depends_on: [extract]
        timeout: 30s
        retry:
          max_attempts: 3
          delay: 500ms
          backoff_multiplier: 2
schedules:
  - id: nightly
    workflow_id: etl
    enabled: true
    trigger:
      type: cron
      cron: "0 2 * * *"
    max_retries: 2
    retry_delay: 1m
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle([]byte(bundleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Workflows) != 1 || len(b.Schedules) != 1 {
		t.Fatalf("expected 1 workflow and 1 schedule, got %d/%d", len(b.Workflows), len(b.Schedules))
	}

	wf := b.Workflows[0]
	if wf.ErrorHandling != SkipError {
		t.Errorf("expected skip-error, got %s", wf.ErrorHandling)
	}
	load, _ := wf.Stage("load")
	if load.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", load.Timeout)
	}
	if load.Retry == nil || load.Retry.MaxAttempts != 3 || load.Retry.Delay != 500*time.Millisecond {
		t.Errorf("unexpected retry policy %+v", load.Retry)
	}
	if wf.Stages[0].Config["table"] != "orders" {
		t.Errorf("expected stage config, got %v", wf.Stages[0].Config)
	}

	s := b.Schedules[0]
	if s.Trigger.Type != TriggerCron || s.Trigger.Cron != "0 2 * * *" {
		t.Errorf("unexpected trigger %+v", s.Trigger)
	}
	if s.RetryDelay != time.Minute || s.MaxRetries != 2 || !s.Enabled {
		t.Errorf("unexpected schedule %+v", s)
	}
}

func TestParseBundle_SingleDefinition(t *testing.T) {
	b, err := ParseBundle([]byte(`
id: p1
name: simple
stages:
  - id: a
    type: noop
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Workflows) != 1 || b.Workflows[0].ID != "p1" {
		t.Fatalf("expected single workflow p1, got %+v", b.Workflows)
	}
}

func TestParseBundle_Invalid(t *testing.T) {
	if _, err := ParseBundle([]byte("workflows: [")); err == nil {
		t.Fatal("expected YAML error")
	}
}

func TestLoad_DirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", bundleYAML)
	writeFile(t, dir, "nested/b.yml", "id: other\nname: other\nstages:\n  - id: x\n    type: noop\n")
	writeFile(t, dir, "README.md", "ignored")

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Workflows) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(b.Workflows))
	}
	if b.Workflows[0].ID != "etl" || b.Workflows[1].ID != "other" {
		t.Errorf("expected lexical file order, got %s, %s", b.Workflows[0].ID, b.Workflows[1].ID)
	}
}

func TestLoad_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", bundleYAML)
	b := writeFile(t, dir, "b.yaml", bundleYAML)
	if _, err := Load(a, b); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLoad_MissingPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing path")
	}
}
