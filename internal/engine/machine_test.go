package engine

import (
	"testing"

	"github.com/waymark-dev/waymark/internal/template"
)

// releaseTemplate builds the canonical three-step template used across
// the engine tests: plan (action) -> work (loop s1->s2) -> done (action).
func releaseTemplate() *template.WorkflowTemplate {
	tmpl := &template.WorkflowTemplate{
		Name:        "release",
		Description: "Prepare and ship a release",
		Agents: map[string]template.AgentConfig{
			"planner": {Description: "Plans the work", AllowedTools: []string{"read"}},
			"builder": {Description: "Does the work"},
		},
		Loops: map[string][]template.LoopSubStep{
			"w": {
				{ID: "s1", Instructions: "Implement the task", Agent: "builder"},
				{ID: "s2", Instructions: "Review the result"},
			},
		},
		Steps: []template.TopLevelStep{
			{ID: "plan", Type: template.StepAction, Instructions: "Draft a plan", Agent: "planner"},
			{ID: "work", Type: template.StepLoop, Loop: "w"},
			{ID: "done", Type: template.StepAction, Instructions: "Summarize the release"},
		},
	}
	if err := template.Validate(tmpl); err != nil {
		panic(err)
	}
	return tmpl
}

func actionsTemplate(ids ...string) *template.WorkflowTemplate {
	tmpl := &template.WorkflowTemplate{Name: "seq", Description: "all actions"}
	for _, id := range ids {
		tmpl.Steps = append(tmpl.Steps, template.TopLevelStep{
			ID: id, Type: template.StepAction, Instructions: "do " + id,
		})
	}
	return tmpl
}

func TestStart_ReportsFirstStep(t *testing.T) {
	m := New(releaseTemplate())
	snap := m.Start()

	if snap.Status != StatusRunning {
		t.Fatalf("Expected running, got %q", snap.Status)
	}
	if snap.StepID != "plan" || snap.StepType != template.StepAction {
		t.Errorf("Unexpected first step: %s (%s)", snap.StepID, snap.StepType)
	}
	if snap.Step.Current != 1 || snap.Step.Total != 3 {
		t.Errorf("Expected progress 1/3, got %d/%d", snap.Step.Current, snap.Step.Total)
	}
	if snap.Instructions != "Draft a plan" {
		t.Errorf("Unexpected instructions: %q", snap.Instructions)
	}
	if snap.AgentName != "planner" || snap.Agent == nil || snap.Agent.Description != "Plans the work" {
		t.Errorf("Agent not resolved: name=%q agent=%+v", snap.AgentName, snap.Agent)
	}
}

func TestStart_LoopFirstAwaitsTasks(t *testing.T) {
	tmpl := &template.WorkflowTemplate{
		Name: "loop-first", Description: "d",
		Loops: map[string][]template.LoopSubStep{
			"w": {{ID: "s1", Instructions: "x"}},
		},
		Steps: []template.TopLevelStep{
			{ID: "work", Type: template.StepLoop, Loop: "w"},
			{ID: "done", Type: template.StepAction, Instructions: "wrap up"},
		},
	}
	m := New(tmpl)
	snap := m.Start()

	if !snap.AwaitingTasks {
		t.Fatal("Expected loop to await tasks after Start")
	}
	if snap.TaskID != "" || snap.SubStepID != "" {
		t.Errorf("Expected no active loop node, got task=%q sub=%q", snap.TaskID, snap.SubStepID)
	}
}

func TestAdvance_AllActionSequence(t *testing.T) {
	m := New(actionsTemplate("a", "b", "c", "d"))
	m.Start()

	// N-1 advances stay running, the Nth completes.
	for i := 0; i < 3; i++ {
		snap := m.Advance("out")
		if snap.Status != StatusRunning {
			t.Fatalf("Advance %d: expected running, got %q", i+1, snap.Status)
		}
	}
	snap := m.Advance("out")
	if snap.Status != StatusComplete {
		t.Fatalf("Expected complete after 4 advances, got %q", snap.Status)
	}
	if snap.Instructions != CompleteInstructions {
		t.Errorf("Unexpected terminal instructions: %q", snap.Instructions)
	}

	// Further advances are idempotent no-ops.
	again := m.Advance("ignored")
	if again.Status != StatusComplete || again.StepID != snap.StepID {
		t.Errorf("Advance after completion changed position: %+v", again)
	}
	if got := m.Context()["d"]; got != "out" {
		t.Errorf("Advance after completion overwrote the last output: %q", got)
	}
}

func TestLoop_TraversalOrder(t *testing.T) {
	m := New(releaseTemplate())
	m.Start()
	m.Advance("plan output")

	snap := m.Status()
	if snap.StepID != "work" || !snap.AwaitingTasks {
		t.Fatalf("Expected to await tasks on 'work', got %+v", snap)
	}

	snap = m.SetTasks("w", []Task{
		{ID: "A", Title: "Task A", Status: "pending"},
		{ID: "B", Title: "Task B", Status: "pending"},
	})

	// s1(A) -> s2(A) -> s1(B) -> s2(B) -> done
	want := []struct {
		task, sub string
		taskCur   int
		subCur    int
	}{
		{"A", "s1", 1, 1},
		{"A", "s2", 1, 2},
		{"B", "s1", 2, 1},
		{"B", "s2", 2, 2},
	}
	for i, w := range want {
		if snap.TaskID != w.task || snap.SubStepID != w.sub {
			t.Fatalf("Position %d: expected %s/%s, got %s/%s", i, w.task, w.sub, snap.TaskID, snap.SubStepID)
		}
		if snap.Task.Current != w.taskCur || snap.Task.Total != 2 {
			t.Errorf("Position %d: task progress %d/%d", i, snap.Task.Current, snap.Task.Total)
		}
		if snap.SubStep.Current != w.subCur || snap.SubStep.Total != 2 {
			t.Errorf("Position %d: sub-step progress %d/%d", i, snap.SubStep.Current, snap.SubStep.Total)
		}
		snap = m.Advance("output " + w.task + "/" + w.sub)
	}

	if snap.StepID != "done" || snap.Status != StatusRunning {
		t.Fatalf("Expected to arrive at 'done', got %+v", snap)
	}

	snap = m.Advance("final output")
	if snap.Status != StatusComplete {
		t.Fatalf("Expected complete after fifth advance, got %q", snap.Status)
	}
}

func TestLoop_KxMAdvances(t *testing.T) {
	// 3 sub-steps x 4 tasks: exactly 12 advances leave the loop.
	tmpl := &template.WorkflowTemplate{
		Name: "kxm", Description: "d",
		Loops: map[string][]template.LoopSubStep{
			"w": {
				{ID: "s1", Instructions: "a"},
				{ID: "s2", Instructions: "b"},
				{ID: "s3", Instructions: "c"},
			},
		},
		Steps: []template.TopLevelStep{
			{ID: "work", Type: template.StepLoop, Loop: "w"},
			{ID: "done", Type: template.StepAction, Instructions: "x"},
		},
	}
	m := New(tmpl)
	m.Start()
	m.SetTasks("w", []Task{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}, {ID: "t4"}})

	for i := 0; i < 12; i++ {
		if snap := m.Status(); snap.StepID != "work" {
			t.Fatalf("Left loop after %d advances", i)
		}
		m.Advance("out")
	}
	if snap := m.Status(); snap.StepID != "done" {
		t.Fatalf("Expected 'done' after 12 advances, got %q", snap.StepID)
	}
}

func TestSetTasks_EmptySkipsActiveLoop(t *testing.T) {
	m := New(releaseTemplate())
	m.Start()
	m.Advance("plan output")

	snap := m.SetTasks("w", nil)
	if snap.StepID != "done" {
		t.Fatalf("Expected empty task list to skip to 'done', got %q", snap.StepID)
	}
	if _, ok := m.Context()["work"]; ok {
		t.Error("Skipped loop recorded an output")
	}
}

func TestSetTasks_ConsecutiveEmptyLoops(t *testing.T) {
	// Skipping one empty loop lands on the next; that loop waits for its
	// own SetTasks call even if an empty list was recorded for it before.
	tmpl := &template.WorkflowTemplate{
		Name: "double", Description: "d",
		Loops: map[string][]template.LoopSubStep{
			"w1": {{ID: "s1", Instructions: "x"}},
			"w2": {{ID: "s1", Instructions: "y"}},
		},
		Steps: []template.TopLevelStep{
			{ID: "first", Type: template.StepLoop, Loop: "w1"},
			{ID: "second", Type: template.StepLoop, Loop: "w2"},
			{ID: "done", Type: template.StepAction, Instructions: "z"},
		},
	}
	m := New(tmpl)
	m.Start()

	// Record an empty list for the second loop ahead of time.
	m.SetTasks("w2", nil)

	snap := m.SetTasks("w1", nil)
	if snap.StepID != "second" || !snap.AwaitingTasks {
		t.Fatalf("Expected to park on 'second' awaiting tasks, got %+v", snap)
	}

	snap = m.SetTasks("w2", nil)
	if snap.StepID != "done" {
		t.Fatalf("Expected second SetTasks to skip to 'done', got %q", snap.StepID)
	}
}

func TestEnterLoop_PreAssignedTasks(t *testing.T) {
	m := New(releaseTemplate())
	m.Start()

	// Assign tasks while 'work' is not yet active.
	m.SetTasks("w", []Task{{ID: "A"}})

	snap := m.Advance("plan output")
	if snap.StepID != "work" || snap.AwaitingTasks {
		t.Fatalf("Expected loop to start immediately, got %+v", snap)
	}
	if snap.TaskID != "A" || snap.SubStepID != "s1" {
		t.Errorf("Expected A/s1, got %s/%s", snap.TaskID, snap.SubStepID)
	}
}

func TestAdvance_AwaitingLoopIsNoOp(t *testing.T) {
	m := New(releaseTemplate())
	m.Start()
	m.Advance("plan output")

	before := m.Status()
	after := m.Advance("should not land anywhere")
	if after.StepID != before.StepID || !after.AwaitingTasks {
		t.Fatalf("Advance on awaiting loop moved the cursor: %+v", after)
	}
	if len(m.Context()) != 1 {
		t.Errorf("Advance on awaiting loop recorded an output: %v", m.Context())
	}
}

func TestContext_PerNodeKeys(t *testing.T) {
	m := New(releaseTemplate())
	m.Start()
	m.Advance("the plan")
	m.SetTasks("w", []Task{{ID: "A"}, {ID: "B"}})
	m.Advance("A impl")
	m.Advance("A review")
	m.Advance("B impl")
	m.Advance("B review")

	ctx := m.Context()
	want := map[string]string{
		"plan": "the plan",
		"A:s1": "A impl",
		"A:s2": "A review",
		"B:s1": "B impl",
		"B:s2": "B review",
	}
	if len(ctx) != len(want) {
		t.Fatalf("Expected %d entries, got %d: %v", len(want), len(ctx), ctx)
	}
	for k, v := range want {
		if ctx[k] != v {
			t.Errorf("Context[%q] = %q, want %q", k, ctx[k], v)
		}
	}
}

func TestTaskListsPersistAfterLoopExit(t *testing.T) {
	m := New(releaseTemplate())
	m.Start()
	m.Advance("plan output")
	m.SetTasks("w", []Task{{ID: "A", Title: "Task A"}})
	m.Advance("impl")
	m.Advance("review")

	if snap := m.Status(); snap.StepID != "done" {
		t.Fatalf("Expected 'done', got %q", snap.StepID)
	}
	tasks := m.Tasks("w")
	if len(tasks) != 1 || tasks[0].ID != "A" {
		t.Errorf("Task list lost after loop exit: %+v", tasks)
	}
}

func TestArtefactsAndSummary(t *testing.T) {
	m := New(releaseTemplate())
	m.Start()

	m.RegisterArtefacts([]string{"docs/plan.md"})
	m.RegisterArtefacts([]string{"dist/build.tgz", "CHANGELOG.md"})
	m.SetSummary("Shipped v1.2.0")

	arts := m.Artefacts()
	if len(arts) != 3 || arts[0] != "docs/plan.md" || arts[2] != "CHANGELOG.md" {
		t.Errorf("Artefact order not preserved: %v", arts)
	}
	if m.Summary() != "Shipped v1.2.0" {
		t.Errorf("Summary not recorded: %q", m.Summary())
	}
}

func TestFinalLoopCompletesWorkflow(t *testing.T) {
	tmpl := &template.WorkflowTemplate{
		Name: "tail-loop", Description: "d",
		Loops: map[string][]template.LoopSubStep{
			"w": {{ID: "s1", Instructions: "x"}},
		},
		Steps: []template.TopLevelStep{
			{ID: "work", Type: template.StepLoop, Loop: "w"},
		},
	}
	m := New(tmpl)
	m.Start()
	m.SetTasks("w", []Task{{ID: "only"}})

	snap := m.Advance("out")
	if snap.Status != StatusComplete {
		t.Fatalf("Expected completion when final loop drains, got %+v", snap)
	}
}
