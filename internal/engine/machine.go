// Package engine drives a validated workflow template step by step.
//
// The engine is pure: it executes nothing and touches no I/O. Each call
// returns the instructions for the active node and the caller performs
// the work, reports the output via Advance, and persists the cursor
// through its own storage. A Machine is owned by exactly one caller at a
// time; there is no internal locking.
package engine

import (
	"fmt"

	"github.com/waymark-dev/waymark/internal/template"
)

// Task is a runtime-supplied unit of work a loop iterates over.
// Status is an opaque caller-defined tag (e.g. "pending", "done").
type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

// Status is the lifecycle state of a workflow instance.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
)

// CompleteInstructions is returned by Status() once the workflow is done.
const CompleteInstructions = "Workflow complete."

// Machine combines a shared read-only template with one mutable cursor.
type Machine struct {
	tmpl *template.WorkflowTemplate

	status  Status
	stepIdx int
	taskIdx int // -1 while the active loop is awaiting tasks
	subIdx  int

	tasks     map[string][]Task // per-loop task lists, kept after a loop exits
	outputs   map[string]string // recorded output per completed node
	summary   string
	artefacts []string
}

// New binds a machine to a template. Call Start before anything else.
func New(tmpl *template.WorkflowTemplate) *Machine {
	return &Machine{
		tmpl:    tmpl,
		taskIdx: -1,
		subIdx:  -1,
		tasks:   make(map[string][]Task),
		outputs: make(map[string]string),
	}
}

// Start positions the cursor at the first top-level step. If that step is
// a loop with no tasks assigned yet, the cursor stays parked until
// SetTasks is called.
func (m *Machine) Start() Snapshot {
	m.status = StatusRunning
	m.stepIdx = 0
	m.enterStep()
	return m.Status()
}

// Advance records the output for the node just completed and moves the
// cursor to the next position. Once the workflow is complete it is an
// idempotent no-op.
func (m *Machine) Advance(output string) Snapshot {
	if m.status != StatusRunning {
		return m.Status()
	}

	step := m.tmpl.Steps[m.stepIdx]
	switch step.Type {
	case template.StepAction:
		m.outputs[step.ID] = output
		m.moveNext()

	case template.StepLoop:
		tasks := m.tasks[step.Loop]
		if m.taskIdx < 0 || m.taskIdx >= len(tasks) {
			// Loop is still awaiting tasks; there is no active node to
			// record, so the position is unchanged.
			return m.Status()
		}
		subs := m.tmpl.Loops[step.Loop]
		m.outputs[OutputKey(tasks[m.taskIdx].ID, subs[m.subIdx].ID)] = output

		m.subIdx++
		if m.subIdx >= len(subs) {
			m.subIdx = 0
			m.taskIdx++
			if m.taskIdx >= len(tasks) {
				m.moveNext()
			}
		}
	}

	return m.Status()
}

// SetTasks records the task list for a loop. When loopID is the active
// step, an empty list skips the loop immediately (no output recorded) and
// a non-empty list positions the cursor at task 0, sub-step 0. Each call
// skips at most one empty loop: if skipping lands on another loop, that
// loop waits for its own SetTasks call.
func (m *Machine) SetTasks(loopID string, tasks []Task) Snapshot {
	m.tasks[loopID] = append([]Task(nil), tasks...)

	if m.status != StatusRunning {
		return m.Status()
	}

	step := m.tmpl.Steps[m.stepIdx]
	if step.Type == template.StepLoop && step.Loop == loopID {
		if len(tasks) == 0 {
			m.moveNext()
		} else {
			m.taskIdx = 0
			m.subIdx = 0
		}
	}

	return m.Status()
}

// RegisterArtefacts appends produced artefact paths in order.
func (m *Machine) RegisterArtefacts(paths []string) {
	m.artefacts = append(m.artefacts, paths...)
}

// SetSummary records the workflow summary text.
func (m *Machine) SetSummary(text string) {
	m.summary = text
}

// Context returns a copy of the accumulated outputs, keyed by action step
// id or by task:sub-step composite for loop nodes.
func (m *Machine) Context() map[string]string {
	out := make(map[string]string, len(m.outputs))
	for k, v := range m.outputs {
		out[k] = v
	}
	return out
}

// OutputKey builds the context key for one task's pass through a loop
// sub-step. The composite keeps repeated tasks from overwriting each
// other's recorded output.
func OutputKey(taskID, subStepID string) string {
	return fmt.Sprintf("%s:%s", taskID, subStepID)
}

// moveNext advances to the following top-level step, or marks the
// workflow complete when none remains.
func (m *Machine) moveNext() {
	if m.stepIdx+1 >= len(m.tmpl.Steps) {
		// The cursor stays on the final step so the persisted state keeps
		// resolving against the template.
		m.status = StatusComplete
		m.taskIdx = -1
		m.subIdx = -1
		return
	}
	m.stepIdx++
	m.enterStep()
}

// enterStep initialises loop position for the step the cursor just
// arrived at. A loop whose non-empty task list was assigned earlier
// starts at task 0, sub-step 0; otherwise it waits for SetTasks. An
// empty recorded list never auto-skips on entry.
func (m *Machine) enterStep() {
	m.taskIdx = -1
	m.subIdx = -1

	step := m.tmpl.Steps[m.stepIdx]
	if step.Type == template.StepLoop {
		if tasks, ok := m.tasks[step.Loop]; ok && len(tasks) > 0 {
			m.taskIdx = 0
			m.subIdx = 0
		}
	}
}

// inLoop reports whether the cursor is positioned on a concrete loop
// node (task + sub-step).
func (m *Machine) inLoop() bool {
	if m.status != StatusRunning {
		return false
	}
	step := m.tmpl.Steps[m.stepIdx]
	return step.Type == template.StepLoop && m.taskIdx >= 0 && m.taskIdx < len(m.tasks[step.Loop])
}
