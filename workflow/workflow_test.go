package workflow

import (
	"testing"
	"time"
)

// --- Definition tests ---

func TestRetryPolicy_Resolved(t *testing.T) {
	var nilPolicy *RetryPolicy
	got := nilPolicy.Resolved()
	if got.MaxAttempts != 1 || got.Delay != time.Second || got.BackoffMultiplier != 2 {
		t.Fatalf("expected defaults, got %+v", got)
	}

	got = (&RetryPolicy{MaxAttempts: 3, Delay: 10 * time.Millisecond}).Resolved()
	if got.MaxAttempts != 3 || got.Delay != 10*time.Millisecond || got.BackoffMultiplier != 2 {
		t.Fatalf("expected partial override, got %+v", got)
	}

	got = (&RetryPolicy{MaxAttempts: 2, Delay: 0}).Resolved()
	if got.Delay != DefaultRetryDelay {
		t.Fatalf("zero delay should resolve to %s, got %s", DefaultRetryDelay, got.Delay)
	}
}

func TestEffectiveStrategy(t *testing.T) {
	def := &Definition{}
	stage := StageDefinition{ID: "a"}
	if got := def.EffectiveStrategy(stage); got != FailFast {
		t.Errorf("expected fail-fast default, got %s", got)
	}
	def.ErrorHandling = SkipError
	if got := def.EffectiveStrategy(stage); got != SkipError {
		t.Errorf("expected workflow policy, got %s", got)
	}
	stage.ErrorHandling = FailFast
	if got := def.EffectiveStrategy(stage); got != FailFast {
		t.Errorf("expected stage override, got %s", got)
	}
}

func TestStageDefinition_Enabled(t *testing.T) {
	off := false
	if !(StageDefinition{}).IsEnabled() {
		t.Error("stages are enabled by default")
	}
	if (StageDefinition{Enabled: &off}).IsEnabled() {
		t.Error("expected explicit disable to stick")
	}
	if (StageDefinition{ID: "x"}).DisplayName() != "x" {
		t.Error("expected id as display name fallback")
	}
}

func TestDefinition_CloneIsDeep(t *testing.T) {
	def := &Definition{ID: "wf", Stages: []StageDefinition{
		{ID: "a", Config: map[string]any{"k": "v"}, DependsOn: []string{"z"}},
	}}
	cp := def.Clone()
	cp.Stages[0].Config["k"] = "changed"
	cp.Stages[0].DependsOn[0] = "y"
	if def.Stages[0].Config["k"] != "v" || def.Stages[0].DependsOn[0] != "z" {
		t.Fatal("clone shares state with the original")
	}
	if _, ok := def.Stage("a"); !ok {
		t.Error("expected stage lookup by id")
	}
}

// --- Instance tests ---

func TestInstance_CloneIsDeep(t *testing.T) {
	now := time.Now()
	inst := &Instance{
		ID:     "i",
		Stages: map[string]*StageStatus{"a": {StageID: "a", Status: StagePending, StartedAt: &now}},
		Errors: []InstanceError{{Message: "x", Fatal: true}},
	}
	cp := inst.Clone()
	cp.Stages["a"].Status = StageCompleted
	*cp.Stages["a"].StartedAt = now.Add(time.Hour)
	if inst.Stages["a"].Status != StagePending || !inst.Stages["a"].StartedAt.Equal(now) {
		t.Fatal("clone shares stage state with the original")
	}
	if msg, ok := cp.FatalError(); !ok || msg != "x" {
		t.Errorf("expected fatal error, got %q %v", msg, ok)
	}
}

func TestStatusTerminal(t *testing.T) {
	if InstanceRunning.Terminal() || InstancePaused.Terminal() {
		t.Error("running and paused are not terminal")
	}
	if !InstanceCancelled.Terminal() || !StageSkipped.Terminal() || !JobTimeout.Terminal() {
		t.Error("expected terminal states")
	}
	if JobRunning.Terminal() {
		t.Error("running job is not terminal")
	}
}

// --- Schedule tests ---

func TestDependencyCondition_Satisfied(t *testing.T) {
	cases := []struct {
		cond   DependencyCondition
		status JobStatus
		want   bool
	}{
		{ConditionCompleted, JobCompleted, true},
		{ConditionCompleted, JobFailed, true},
		{ConditionCompleted, JobRunning, false},
		{ConditionSucceeded, JobCompleted, true},
		{ConditionSucceeded, JobFailed, false},
		{ConditionFailed, JobFailed, true},
		{ConditionFailed, JobCompleted, false},
		{ConditionAny, JobRunning, true},
		{DependencyCondition("bogus"), JobCompleted, false},
	}
	for _, c := range cases {
		if got := c.cond.Satisfied(c.status); got != c.want {
			t.Errorf("%s on %s: expected %v, got %v", c.cond, c.status, c.want, got)
		}
	}
	if DependencyCondition("bogus").Valid() || !ConditionAny.Valid() {
		t.Error("unexpected validity")
	}
}

func TestSchedule_InWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	s := &Schedule{StartDate: &start, EndDate: &end}

	if s.InWindow(start.Add(-time.Minute)) {
		t.Error("before start must be outside the window")
	}
	if !s.InWindow(start) || !s.InWindow(end) {
		t.Error("window bounds are inclusive")
	}
	if s.InWindow(end.Add(time.Minute)) {
		t.Error("after end must be outside the window")
	}
	if !(&Schedule{}).InWindow(start) {
		t.Error("no bounds means always in window")
	}
}

func TestSchedule_Location(t *testing.T) {
	loc, err := (&Schedule{}).Location()
	if err != nil || loc != time.UTC {
		t.Errorf("expected UTC default, got %v, %v", loc, err)
	}
	if _, err := (&Schedule{Timezone: "Not/AZone"}).Location(); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
