// Package format renders workflow status snapshots for humans. The
// engine only hands out data; everything presentational lives here.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/waymark-dev/waymark/internal/engine"
)

// RenderStatus produces a Markdown view of one status snapshot.
func RenderStatus(name string, snap engine.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", name)

	if snap.Status == engine.StatusComplete {
		fmt.Fprintf(&b, "**Status:** ✅ complete (%d/%d steps)\n\n", snap.Step.Total, snap.Step.Total)
		fmt.Fprintf(&b, "%s\n", snap.Instructions)
		return b.String()
	}

	fmt.Fprintf(&b, "**Status:** ▶ running — step `%s` (%d/%d)\n\n",
		snap.StepID, snap.Step.Current, snap.Step.Total)

	if snap.AwaitingTasks {
		fmt.Fprintf(&b, "Loop `%s` is waiting for its task list.\n", snap.StepID)
		return b.String()
	}

	if snap.StepType == "loop" {
		title := snap.TaskTitle
		if title == "" {
			title = snap.TaskID
		}
		fmt.Fprintf(&b, "**Task:** %s (%d/%d) · **Sub-step:** `%s` (%d/%d)\n\n",
			title, snap.Task.Current, snap.Task.Total,
			snap.SubStepID, snap.SubStep.Current, snap.SubStep.Total)
	}

	if snap.AgentName != "" {
		fmt.Fprintf(&b, "**Agent:** %s — %s\n\n", snap.AgentName, snap.Agent.Description)
	}

	fmt.Fprintf(&b, "## Instructions\n\n%s\n", snap.Instructions)
	return b.String()
}

// RenderContext lists accumulated outputs, sorted by node key so the
// rendering is stable.
func RenderContext(outputs map[string]string) string {
	if len(outputs) == 0 {
		return "_No outputs recorded yet._\n"
	}

	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("## Recorded outputs\n\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", k, outputs[k])
	}
	return b.String()
}
