package format

import (
	"strings"
	"testing"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/template"
)

func TestRenderStatus_Action(t *testing.T) {
	snap := engine.Snapshot{
		Status:       engine.StatusRunning,
		StepID:       "plan",
		StepType:     template.StepAction,
		Step:         engine.Progress{Current: 1, Total: 3},
		Instructions: "Draft a plan",
		AgentName:    "planner",
		Agent:        &template.AgentConfig{Description: "Plans the work"},
	}

	out := RenderStatus("release", snap)
	for _, want := range []string{"# release", "`plan` (1/3)", "planner — Plans the work", "Draft a plan"} {
		if !strings.Contains(out, want) {
			t.Errorf("Rendering missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatus_LoopPosition(t *testing.T) {
	snap := engine.Snapshot{
		Status:       engine.StatusRunning,
		StepID:       "work",
		StepType:     template.StepLoop,
		Step:         engine.Progress{Current: 2, Total: 3},
		Instructions: "Implement the task",
		TaskID:       "A",
		TaskTitle:    "Task A",
		SubStepID:    "s1",
		Task:         engine.Progress{Current: 1, Total: 2},
		SubStep:      engine.Progress{Current: 1, Total: 2},
	}

	out := RenderStatus("release", snap)
	if !strings.Contains(out, "Task A (1/2)") || !strings.Contains(out, "`s1` (1/2)") {
		t.Errorf("Loop position not rendered:\n%s", out)
	}
}

func TestRenderStatus_AwaitingAndComplete(t *testing.T) {
	awaiting := engine.Snapshot{
		Status: engine.StatusRunning, StepID: "work", StepType: template.StepLoop,
		Step: engine.Progress{Current: 2, Total: 3}, AwaitingTasks: true,
	}
	if out := RenderStatus("release", awaiting); !strings.Contains(out, "waiting for its task list") {
		t.Errorf("Awaiting state not rendered:\n%s", out)
	}

	complete := engine.Snapshot{
		Status: engine.StatusComplete, StepID: "done", StepType: template.StepAction,
		Step: engine.Progress{Current: 3, Total: 3}, Instructions: engine.CompleteInstructions,
	}
	if out := RenderStatus("release", complete); !strings.Contains(out, "complete (3/3 steps)") {
		t.Errorf("Terminal state not rendered:\n%s", out)
	}
}

func TestRenderContext_SortedKeys(t *testing.T) {
	out := RenderContext(map[string]string{
		"B:s1": "second",
		"A:s1": "first",
	})
	if strings.Index(out, "A:s1") > strings.Index(out, "B:s1") {
		t.Errorf("Context keys not sorted:\n%s", out)
	}

	if empty := RenderContext(nil); !strings.Contains(empty, "No outputs") {
		t.Errorf("Empty context rendering wrong: %q", empty)
	}
}

func TestToTelegramHTML(t *testing.T) {
	md := "# Title\n**bold** and `code` plus <raw>\n- item"
	html := ToTelegramHTML(md)

	for _, want := range []string{"<b>Title</b>", "<b>bold</b>", "<code>code</code>", "&lt;raw&gt;", "• item"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q:\n%s", want, html)
		}
	}
}

func TestToDiscordMarkdown_StripsHTML(t *testing.T) {
	if out := ToDiscordMarkdown("keep <b>this</b> text"); out != "keep this text" {
		t.Errorf("Unexpected output: %q", out)
	}
}
