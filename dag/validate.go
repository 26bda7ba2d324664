package dag

import (
	"fmt"
	"strings"

	"github.com/kbukum/flowkit/validation"
	"github.com/kbukum/flowkit/workflow"
)

// Issue codes reported by Validate.
const (
	CodeMissingID              = "missing_id"
	CodeMissingName            = "missing_name"
	CodeNoStages               = "no_stages"
	CodeMissingStageID         = "missing_stage_id"
	CodeMissingStageType       = "missing_stage_type"
	CodeDuplicateStage         = "duplicate_stage"
	CodeSelfDependency         = "self_dependency"
	CodeDuplicateDependency    = "duplicate_dependency"
	CodeUnknownDependency      = "unknown_dependency"
	CodeCycle                  = "cycle"
	CodeInvalidField           = "invalid_field"
	CodeRequiredParamNoDefault = "required_parameter_without_default"
	CodeDisabledDependency     = "disabled_dependency"
)

// Issue is one validation finding.
type Issue struct {
	Code    string `json:"code"`
	StageID string `json:"stage_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of Validate. Warnings never make a result invalid.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *Result) errorf(code, stageID, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Code: code, StageID: stageID, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(code, stageID, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Code: code, StageID: stageID, Message: fmt.Sprintf(format, args...)})
}

// Messages returns the error messages in order.
func (r Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// Validate checks a definition's structure. It never panics on malformed
// input and collects every finding rather than stopping at the first.
func Validate(def *workflow.Definition) Result {
	res := Result{Errors: []Issue{}, Warnings: []Issue{}}
	if def == nil {
		res.errorf(CodeMissingID, "", "definition is empty")
		return res
	}

	if strings.TrimSpace(def.ID) == "" {
		res.errorf(CodeMissingID, "", "workflow id is required")
	}
	if strings.TrimSpace(def.Name) == "" {
		res.errorf(CodeMissingName, "", "workflow name is required")
	}
	if len(def.Stages) == 0 {
		res.errorf(CodeNoStages, "", "workflow must have at least one stage")
	}

	for _, f := range validation.StructFields(def) {
		res.Errors = append(res.Errors, Issue{
			Code: CodeInvalidField, Field: f.Field,
			Message: fmt.Sprintf("%s %s", f.Field, f.Message),
		})
	}

	ids := make(map[string]workflow.StageDefinition, len(def.Stages))
	for i, s := range def.Stages {
		if strings.TrimSpace(s.ID) == "" {
			res.errorf(CodeMissingStageID, "", "stage at position %d has no id", i)
			continue
		}
		if s.Type == "" {
			res.errorf(CodeMissingStageType, s.ID, "stage %q has no type", s.ID)
		}
		if _, dup := ids[s.ID]; dup {
			res.errorf(CodeDuplicateStage, s.ID, "duplicate stage id %q", s.ID)
			continue
		}
		ids[s.ID] = s
	}

	for _, s := range def.Stages {
		seen := make(map[string]bool, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if seen[dep] {
				res.errorf(CodeDuplicateDependency, s.ID, "stage %q lists dependency %q more than once", s.ID, dep)
				continue
			}
			seen[dep] = true
			if dep == s.ID {
				res.errorf(CodeSelfDependency, s.ID, "stage %q depends on itself", s.ID)
				continue
			}
			d, ok := ids[dep]
			if !ok {
				res.errorf(CodeUnknownDependency, s.ID, "stage %q depends on unknown stage %q", s.ID, dep)
				continue
			}
			if !d.IsEnabled() && s.IsEnabled() {
				res.warnf(CodeDisabledDependency, s.ID, "stage %q depends on disabled stage %q and will receive no input from it", s.ID, dep)
			}
		}
	}

	for _, cycle := range findCycles(def, ids) {
		res.errorf(CodeCycle, cycle[0], "cycle detected: %s", strings.Join(cycle, " -> "))
	}

	for _, p := range def.Parameters {
		if p.Required && p.Default == nil {
			res.warnf(CodeRequiredParamNoDefault, "", "required parameter %q has no default and must be supplied at execution", p.Name)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// findCycles runs a depth-first search keeping the current recursion stack.
// An edge back onto the stack closes a cycle; the path from that stage
// around to itself is reported. Self edges and unknown stages are skipped.
func findCycles(def *workflow.Definition, ids map[string]workflow.StageDefinition) [][]string {
	var (
		cycles  [][]string
		done    = make(map[string]bool, len(ids))
		onStack = make(map[string]int, len(ids))
		stack   []string
	)

	var visit func(id string)
	visit = func(id string) {
		onStack[id] = len(stack)
		stack = append(stack, id)
		for _, dep := range ids[id].DependsOn {
			if dep == id {
				continue
			}
			if _, ok := ids[dep]; !ok {
				continue
			}
			if pos, ok := onStack[dep]; ok {
				cycle := append([]string(nil), stack[pos:]...)
				cycles = append(cycles, append(cycle, dep))
				continue
			}
			if !done[dep] {
				visit(dep)
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, id)
		done[id] = true
	}

	for _, s := range def.Stages {
		if _, ok := ids[s.ID]; ok && !done[s.ID] {
			visit(s.ID)
		}
	}
	return cycles
}
