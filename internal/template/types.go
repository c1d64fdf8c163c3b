package template

// StepType distinguishes the two kinds of top-level steps.
type StepType string

const (
	StepAction StepType = "action"
	StepLoop   StepType = "loop"
)

// AgentConfig describes an agent persona a step can reference.
// The engine treats it as opaque metadata: allowed/forbidden tools
// are enforced by whoever executes the instructions, not here.
type AgentConfig struct {
	Description    string   `json:"description" yaml:"description"`
	AllowedTools   []string `json:"allowed_tools,omitempty" yaml:"allowed_tools,omitempty"`
	ForbiddenTools []string `json:"forbidden_tools,omitempty" yaml:"forbidden_tools,omitempty"`
}

// LoopSubStep is one stage of a loop's per-task sequence.
type LoopSubStep struct {
	ID           string `json:"id" yaml:"id"`
	Instructions string `json:"instructions" yaml:"instructions"`
	Agent        string `json:"agent,omitempty" yaml:"agent,omitempty"`
	OnFailure    string `json:"on_failure,omitempty" yaml:"on_failure,omitempty"` // opaque policy tag for the caller
}

// TopLevelStep is a single entry in the workflow's step sequence.
// Action steps carry instructions; loop steps reference a loop id
// whose sub-steps are replayed once per task.
type TopLevelStep struct {
	ID           string   `json:"id" yaml:"id"`
	Type         StepType `json:"type" yaml:"type"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Agent        string   `json:"agent,omitempty" yaml:"agent,omitempty"`
	Loop         string   `json:"loop,omitempty" yaml:"loop,omitempty"`
}

// WorkflowTemplate is the immutable, validated definition of a workflow.
// Once loaded it is shared read-only across machine instances, including
// across process restarts.
type WorkflowTemplate struct {
	Name        string                   `json:"name" yaml:"name"`
	Description string                   `json:"description" yaml:"description"`
	Agents      map[string]AgentConfig   `json:"agents,omitempty" yaml:"agents,omitempty"`
	Loops       map[string][]LoopSubStep `json:"loops,omitempty" yaml:"loops,omitempty"`
	Steps       []TopLevelStep           `json:"steps" yaml:"steps"`
}

// StepByID returns the top-level step with the given id.
func (t *WorkflowTemplate) StepByID(id string) (TopLevelStep, bool) {
	for _, s := range t.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return TopLevelStep{}, false
}

// StepIndex returns the position of the step with the given id, or -1.
func (t *WorkflowTemplate) StepIndex(id string) int {
	for i, s := range t.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}
