package engine

import (
	"fmt"

	"github.com/waymark-dev/waymark/internal/template"
)

// WorkflowState is the persistable form of one cursor. Positions are
// stored as ids, never as raw indices, so a rehydrated machine re-resolves
// everything against the template it is given and survives unrelated
// template edits between restarts.
type WorkflowState struct {
	Status   Status            `json:"status"`
	StepID   string            `json:"step_id"`
	StepType template.StepType `json:"step_type"`

	// SubStepID is set only while the cursor sits on a concrete loop
	// node; TaskIndex indexes into Tasks[activeLoop] in that case.
	SubStepID string `json:"sub_step_id,omitempty"`
	TaskIndex int    `json:"task_index,omitempty"`

	Tasks     map[string][]Task `json:"tasks,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Artefacts []string          `json:"artefacts,omitempty"`
}

// LookupError reports a persisted id that does not resolve against the
// supplied template. No machine is constructed when this happens.
type LookupError struct {
	Kind string // "step", "loop", "sub-step" or "task"
	ID   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("workflow state references unknown %s %q", e.Kind, e.ID)
}

// State serialises the complete cursor position.
func (m *Machine) State() *WorkflowState {
	step := m.tmpl.Steps[m.stepIdx]

	st := &WorkflowState{
		Status:    m.status,
		StepID:    step.ID,
		StepType:  step.Type,
		Outputs:   m.Context(),
		Summary:   m.summary,
		Artefacts: append([]string(nil), m.artefacts...),
	}

	if len(m.tasks) > 0 {
		st.Tasks = make(map[string][]Task, len(m.tasks))
		for loopID, tasks := range m.tasks {
			st.Tasks[loopID] = append([]Task(nil), tasks...)
		}
	}

	if m.inLoop() {
		subs := m.tmpl.Loops[step.Loop]
		st.SubStepID = subs[m.subIdx].ID
		st.TaskIndex = m.taskIdx
	}

	return st
}

// FromState rebuilds a machine from a persisted cursor. Every id in the
// state is re-resolved against the supplied template; any mismatch fails
// fast with a LookupError rather than silently positioning the machine
// on the wrong node.
func FromState(tmpl *template.WorkflowTemplate, st *WorkflowState) (*Machine, error) {
	stepIdx := tmpl.StepIndex(st.StepID)
	if stepIdx < 0 {
		return nil, &LookupError{Kind: "step", ID: st.StepID}
	}
	step := tmpl.Steps[stepIdx]
	if st.StepType != "" && step.Type != st.StepType {
		return nil, &LookupError{Kind: "step", ID: st.StepID}
	}

	for loopID := range st.Tasks {
		if _, ok := tmpl.Loops[loopID]; !ok {
			return nil, &LookupError{Kind: "loop", ID: loopID}
		}
	}

	m := New(tmpl)
	m.status = st.Status
	if m.status == "" {
		m.status = StatusRunning
	}
	m.stepIdx = stepIdx
	m.summary = st.Summary
	m.artefacts = append([]string(nil), st.Artefacts...)

	for loopID, tasks := range st.Tasks {
		m.tasks[loopID] = append([]Task(nil), tasks...)
	}
	for k, v := range st.Outputs {
		m.outputs[k] = v
	}

	if st.SubStepID != "" {
		if step.Type != template.StepLoop {
			return nil, &LookupError{Kind: "sub-step", ID: st.SubStepID}
		}
		subIdx := -1
		for i, sub := range tmpl.Loops[step.Loop] {
			if sub.ID == st.SubStepID {
				subIdx = i
				break
			}
		}
		if subIdx < 0 {
			return nil, &LookupError{Kind: "sub-step", ID: st.SubStepID}
		}
		tasks := m.tasks[step.Loop]
		if st.TaskIndex < 0 || st.TaskIndex >= len(tasks) {
			return nil, &LookupError{Kind: "task", ID: fmt.Sprintf("index %d", st.TaskIndex)}
		}
		m.taskIdx = st.TaskIndex
		m.subIdx = subIdx
	}

	return m, nil
}
