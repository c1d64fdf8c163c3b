package engine

import "github.com/waymark-dev/waymark/internal/template"

// Progress is a 1-based position within an ordered sequence.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Snapshot is a pure, point-in-time view of the machine. It carries the
// resolved instructions for the exact active node, so a presentation
// layer never has to look inside the template itself.
type Snapshot struct {
	Status   Status            `json:"status"`
	StepID   string            `json:"step_id"`
	StepType template.StepType `json:"step_type"`
	Step     Progress          `json:"step"`

	Instructions string                `json:"instructions"`
	AgentName    string                `json:"agent_name,omitempty"`
	Agent        *template.AgentConfig `json:"agent,omitempty"`

	// Loop position. AwaitingTasks marks a loop step whose task list has
	// not been assigned yet; Task/SubStep are only meaningful when the
	// cursor sits on a concrete loop node.
	AwaitingTasks bool     `json:"awaiting_tasks,omitempty"`
	TaskID        string   `json:"task_id,omitempty"`
	TaskTitle     string   `json:"task_title,omitempty"`
	SubStepID     string   `json:"sub_step_id,omitempty"`
	Task          Progress `json:"task,omitempty"`
	SubStep       Progress `json:"sub_step,omitempty"`
}

// Status reports the current position without mutating anything.
func (m *Machine) Status() Snapshot {
	step := m.tmpl.Steps[m.stepIdx]

	snap := Snapshot{
		Status:   m.status,
		StepID:   step.ID,
		StepType: step.Type,
		Step:     Progress{Current: m.stepIdx + 1, Total: len(m.tmpl.Steps)},
	}

	if m.status == StatusComplete {
		snap.Instructions = CompleteInstructions
		return snap
	}

	switch step.Type {
	case template.StepAction:
		snap.Instructions = step.Instructions
		m.resolveAgent(&snap, step.Agent)

	case template.StepLoop:
		if !m.inLoop() {
			snap.AwaitingTasks = true
			return snap
		}
		tasks := m.tasks[step.Loop]
		subs := m.tmpl.Loops[step.Loop]
		task := tasks[m.taskIdx]
		sub := subs[m.subIdx]

		snap.Instructions = sub.Instructions
		snap.TaskID = task.ID
		snap.TaskTitle = task.Title
		snap.SubStepID = sub.ID
		snap.Task = Progress{Current: m.taskIdx + 1, Total: len(tasks)}
		snap.SubStep = Progress{Current: m.subIdx + 1, Total: len(subs)}
		m.resolveAgent(&snap, sub.Agent)
	}

	return snap
}

func (m *Machine) resolveAgent(snap *Snapshot, name string) {
	if name == "" {
		return
	}
	if cfg, ok := m.tmpl.Agents[name]; ok {
		snap.AgentName = name
		agent := cfg
		snap.Agent = &agent
	}
}

// Summary returns the recorded summary text, if any.
func (m *Machine) Summary() string {
	return m.summary
}

// Artefacts returns a copy of the registered artefact paths in order.
func (m *Machine) Artefacts() []string {
	return append([]string(nil), m.artefacts...)
}

// Tasks returns a copy of the recorded task list for a loop.
func (m *Machine) Tasks(loopID string) []Task {
	return append([]Task(nil), m.tasks[loopID]...)
}

// Template returns the shared read-only template this machine runs.
func (m *Machine) Template() *template.WorkflowTemplate {
	return m.tmpl
}
