package validation

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/flowkit/errors"
)

type stageSpec struct {
	ID      string        `yaml:"id" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type pipelineSpec struct {
	Name   string      `yaml:"name" validate:"required"`
	Mode   string      `yaml:"mode" validate:"omitempty,oneof=batch streaming"`
	Stages []stageSpec `yaml:"stages" validate:"dive"`
}

func TestStructFields_Valid(t *testing.T) {
	spec := pipelineSpec{Name: "p", Mode: "batch", Stages: []stageSpec{{ID: "a"}}}
	if fields := StructFields(spec); len(fields) != 0 {
		t.Fatalf("expected no errors, got %v", fields)
	}
	if err := Validate(spec); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestStructFields_Paths(t *testing.T) {
	spec := pipelineSpec{Mode: "weird", Stages: []stageSpec{{ID: "a"}, {Timeout: -time.Second}}}
	fields := StructFields(spec)

	got := map[string]string{}
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	if got["name"] != "is required" {
		t.Errorf("expected name required, got %v", got)
	}
	if !strings.HasPrefix(got["mode"], "must be one of") {
		t.Errorf("expected oneof message for mode, got %v", got)
	}
	if got["stages[1].id"] != "is required" {
		t.Errorf("expected nested stage path, got %v", got)
	}
	if got["stages[1].timeout"] != "must be at least 0" {
		t.Errorf("expected timeout bound, got %v", got)
	}
}

func TestValidate_ReturnsAppError(t *testing.T) {
	err := Validate(pipelineSpec{})
	app, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if app.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", app.Code)
	}
	if _, ok := app.Details["fields"]; !ok {
		t.Error("expected field details")
	}
}

func TestValidator_Chain(t *testing.T) {
	v := New().
		Required("id", "  ").
		Min("max_retries", -1, 0).
		PositiveDuration("interval", 0).
		NonNegativeDuration("timeout", -time.Second).
		OneOf("type", "hourly", []string{"cron", "interval"}).
		Custom(false, "dependencies", "must not reference itself")
	if len(v.Errors()) != 6 {
		t.Fatalf("expected 6 errors, got %v", v.Errors())
	}
	err := v.Validate()
	if err == nil || !strings.Contains(err.Error(), "interval: must be a positive duration") {
		t.Errorf("expected joined message, got %v", err)
	}
}

func TestValidator_NoErrors(t *testing.T) {
	v := New().
		Required("id", "nightly").
		Min("max_retries", 0, 0).
		PositiveDuration("interval", time.Minute).
		OneOf("type", "cron", []string{"cron", "interval"})
	if err := v.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidator_UUID(t *testing.T) {
	if New().UUID("id", uuid.NewString()).HasErrors() {
		t.Error("expected valid uuid to pass")
	}
	if !New().UUID("id", "nope").HasErrors() {
		t.Error("expected invalid uuid to fail")
	}
	if !New().UUID("id", "").HasErrors() {
		t.Error("expected empty uuid to fail")
	}
}

func TestValidator_Check(t *testing.T) {
	v := New().
		Check("cron", errors.CronParse("x", "expected 5 fields, got 1")).
		Check("other", stderrors.New("plain")).
		Check("fine", nil)
	errs := v.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0].Message, "expected 5 fields") {
		t.Errorf("expected AppError message, got %q", errs[0].Message)
	}
}
