package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/flowkit/workflow"
)

const etlYAML = `
workflows:
  - id: etl
    name: ETL
    parameters:
      - name: date
        required: true
    stages:
      - id: extract
        type: passthrough
      - id: clean
        type: passthrough
        depends_on: [extract]
      - id: audit
        type: log
        depends_on: [extract]
      - id: load
        type: passthrough
        depends_on: [clean, audit]
`

const cyclicYAML = `
id: loop
name: Loop
stages:
  - id: a
    type: x
    depends_on: [b]
  - id: b
    type: x
    depends_on: [a]
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeYAML(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", writeYAML(t, "etl.yaml", etlYAML))
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	for _, want := range []string{"etl (4 stages): ok", "level 0: extract", "level 1: clean, audit", "level 2: load"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "validate", writeYAML(t, "loop.yaml", cyclicYAML))
	if err == nil {
		t.Fatalf("expected a cyclic workflow to fail validation:\n%s", out)
	}
	if !strings.Contains(out, "INVALID") || !strings.Contains(out, "cycle") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRun(t *testing.T) {
	path := writeYAML(t, "etl.yaml", etlYAML)

	out, err := execute(t, "run", path, "etl", "--param", "date=2024-06-15")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	var inst workflow.Instance
	if err := json.Unmarshal([]byte(out), &inst); err != nil {
		t.Fatalf("decode instance: %v\n%s", err, out)
	}
	if inst.Status != workflow.InstanceCompleted || inst.TriggeredBy != "cli" {
		t.Fatalf("unexpected instance %s by %q", inst.Status, inst.TriggeredBy)
	}
	if diff := cmp.Diff([]string{"extract", "clean", "audit", "load"}, inst.ExecutionOrder); diff != "" {
		t.Fatalf("execution order (-want +got):\n%s", diff)
	}

	if _, err := execute(t, "run", path, "etl"); err == nil {
		t.Fatal("expected missing required parameter to fail")
	}
	if _, err := execute(t, "run", path, "etl", "--param", "novalue"); err == nil {
		t.Fatal("expected malformed --param to fail")
	}
}

func TestCronNext(t *testing.T) {
	out, err := execute(t, "cron", "next", "0 0 1 1 *", "--from", "2024-06-15T10:30:00Z")
	if err != nil {
		t.Fatalf("cron next: %v", err)
	}
	if got := strings.TrimSpace(out); got != "2025-01-01T00:00:00Z" {
		t.Fatalf("next = %q", got)
	}

	out, err = execute(t, "cron", "next", "*/15 * * * *", "--from", "2024-06-15T10:31:00Z", "-n", "3")
	if err != nil {
		t.Fatalf("cron next: %v", err)
	}
	want := []string{"2024-06-15T10:45:00Z", "2024-06-15T11:00:00Z", "2024-06-15T11:15:00Z"}
	if diff := cmp.Diff(want, strings.Fields(out)); diff != "" {
		t.Fatalf("next times (-want +got):\n%s", diff)
	}

	if _, err := execute(t, "cron", "next", "61 * * * *"); err == nil {
		t.Fatal("expected an out-of-range minute to fail")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil || info["version"] == nil {
		t.Fatalf("unexpected version output %q: %v", out, err)
	}
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"date=2024-06-15", "filter=a=b"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"date": "2024-06-15", "filter": "a=b"}, got); diff != "" {
		t.Fatalf("params (-want +got):\n%s", diff)
	}
	if _, err := parseParams([]string{"=x"}); err == nil {
		t.Fatal("expected empty key to fail")
	}
}
