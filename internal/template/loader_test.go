package template

import (
	"errors"
	"strings"
	"testing"
)

const sampleYAML = `
name: release
description: Prepare and ship a release
agents:
  planner:
    description: Plans the work
    allowed_tools: [read]
  builder:
    description: Does the work
    forbidden_tools: [browser]
loops:
  work:
    - id: implement
      instructions: Implement the task
      agent: builder
    - id: review
      instructions: Review the result
      on_failure: retry
steps:
  - id: plan
    type: action
    instructions: Draft a plan
    agent: planner
  - id: work
    type: loop
    loop: work
  - id: done
    type: action
    instructions: Summarize the release
`

func TestLoad_Valid(t *testing.T) {
	tmpl, err := Load([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if tmpl.Name != "release" {
		t.Errorf("Expected name 'release', got %q", tmpl.Name)
	}
	if len(tmpl.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(tmpl.Steps))
	}
	if tmpl.Steps[1].Type != StepLoop {
		t.Errorf("Expected step 2 to be a loop, got %q", tmpl.Steps[1].Type)
	}
	if len(tmpl.Loops["work"]) != 2 {
		t.Errorf("Expected 2 sub-steps in loop 'work', got %d", len(tmpl.Loops["work"]))
	}
	if tmpl.Agents["builder"].ForbiddenTools[0] != "browser" {
		t.Errorf("Agent config not parsed: %+v", tmpl.Agents["builder"])
	}
}

func TestValidate_FieldOrder(t *testing.T) {
	cases := []struct {
		name  string
		tmpl  WorkflowTemplate
		field string
	}{
		{
			name:  "missing name",
			tmpl:  WorkflowTemplate{Description: "d"},
			field: "name",
		},
		{
			name:  "missing description",
			tmpl:  WorkflowTemplate{Name: "n"},
			field: "description",
		},
		{
			name:  "no steps",
			tmpl:  WorkflowTemplate{Name: "n", Description: "d"},
			field: "steps",
		},
		{
			name: "step missing id",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Steps: []TopLevelStep{{Type: StepAction, Instructions: "x"}},
			},
			field: "steps[0].id",
		},
		{
			name: "duplicate step id",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Steps: []TopLevelStep{
					{ID: "a", Type: StepAction, Instructions: "x"},
					{ID: "a", Type: StepAction, Instructions: "y"},
				},
			},
			field: "steps[1].id",
		},
		{
			name: "unknown step type",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Steps: []TopLevelStep{{ID: "a", Type: "parallel"}},
			},
			field: "steps[0].type",
		},
		{
			name: "action without instructions",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Steps: []TopLevelStep{{ID: "a", Type: StepAction}},
			},
			field: "steps[0].instructions",
		},
		{
			name: "loop step without loop reference",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Steps: []TopLevelStep{{ID: "a", Type: StepLoop}},
			},
			field: "steps[0].loop",
		},
		{
			name: "loop step referencing unknown loop",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Steps: []TopLevelStep{{ID: "a", Type: StepLoop, Loop: "nope"}},
			},
			field: "steps[0].loop",
		},
		{
			name: "empty loop",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Loops: map[string][]LoopSubStep{"w": {}},
				Steps: []TopLevelStep{{ID: "a", Type: StepLoop, Loop: "w"}},
			},
			field: "loops.w",
		},
		{
			name: "sub-step missing instructions",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Loops: map[string][]LoopSubStep{"w": {{ID: "s1"}}},
				Steps: []TopLevelStep{{ID: "a", Type: StepLoop, Loop: "w"}},
			},
			field: "loops.w[0].instructions",
		},
		{
			// Duplicate ids would collapse distinct task:sub-step output
			// keys and make a persisted sub-step id ambiguous on restore.
			name: "duplicate sub-step id",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Loops: map[string][]LoopSubStep{"w": {
					{ID: "s", Instructions: "first"},
					{ID: "s", Instructions: "second"},
				}},
				Steps: []TopLevelStep{{ID: "a", Type: StepLoop, Loop: "w"}},
			},
			field: "loops.w[1].id",
		},
		{
			name: "sub-step referencing unknown agent",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Loops: map[string][]LoopSubStep{"w": {{ID: "s1", Instructions: "x", Agent: "ghost"}}},
				Steps: []TopLevelStep{{ID: "a", Type: StepLoop, Loop: "w"}},
			},
			field: "loops.w[0].agent",
		},
		{
			name: "step referencing unknown agent",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Steps: []TopLevelStep{{ID: "a", Type: StepAction, Instructions: "x", Agent: "ghost"}},
			},
			field: "steps[0].agent",
		},
		{
			name: "agent without description",
			tmpl: WorkflowTemplate{
				Name: "n", Description: "d",
				Agents: map[string]AgentConfig{"planner": {}},
				Steps:  []TopLevelStep{{ID: "a", Type: StepAction, Instructions: "x"}},
			},
			field: "agents.planner.description",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&tc.tmpl)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tc.field {
				t.Errorf("Expected failure on field %q, got %q (%s)", tc.field, verr.Field, verr.Reason)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load([]byte("steps: [\n"))
	if err == nil {
		t.Fatal("Expected parse error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse workflow template") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestStepLookup(t *testing.T) {
	tmpl, err := Load([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	step, ok := tmpl.StepByID("work")
	if !ok || step.Loop != "work" {
		t.Errorf("StepByID returned %+v, %v", step, ok)
	}
	if idx := tmpl.StepIndex("done"); idx != 2 {
		t.Errorf("Expected index 2 for 'done', got %d", idx)
	}
	if idx := tmpl.StepIndex("missing"); idx != -1 {
		t.Errorf("Expected -1 for unknown id, got %d", idx)
	}
}
