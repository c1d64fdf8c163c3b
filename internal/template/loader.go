package template

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError reports the first structurally invalid field found in a
// template definition. Field is a dotted path suitable for displaying
// verbatim to the user.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid template: %s: %s", e.Field, e.Reason)
}

// Load parses a YAML workflow definition and validates it.
// It never returns a partially valid template.
func Load(data []byte) (*WorkflowTemplate, error) {
	var tmpl WorkflowTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse workflow template: %w", err)
	}

	if err := Validate(&tmpl); err != nil {
		return nil, err
	}

	return &tmpl, nil
}

// LoadFile reads and parses a workflow definition from disk.
func LoadFile(path string) (*WorkflowTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Validate checks an already-parsed template against the structural rules.
// Rules run in a fixed order so the same broken template always reports
// the same field.
func Validate(t *WorkflowTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(t.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if len(t.Steps) == 0 {
		return &ValidationError{Field: "steps", Reason: "at least one step is required"}
	}

	seen := make(map[string]bool)
	for i, step := range t.Steps {
		field := fmt.Sprintf("steps[%d]", i)

		if step.ID == "" {
			return &ValidationError{Field: field + ".id", Reason: "required"}
		}
		if seen[step.ID] {
			return &ValidationError{Field: field + ".id", Reason: fmt.Sprintf("duplicate step id %q", step.ID)}
		}
		seen[step.ID] = true

		switch step.Type {
		case StepAction:
			if strings.TrimSpace(step.Instructions) == "" {
				return &ValidationError{Field: field + ".instructions", Reason: "action steps require instructions"}
			}
		case StepLoop:
			if step.Loop == "" {
				return &ValidationError{Field: field + ".loop", Reason: "loop steps must reference a loop"}
			}
			subs, ok := t.Loops[step.Loop]
			if !ok {
				return &ValidationError{Field: field + ".loop", Reason: fmt.Sprintf("unknown loop %q", step.Loop)}
			}
			if len(subs) == 0 {
				return &ValidationError{Field: "loops." + step.Loop, Reason: "loop has no sub-steps"}
			}
			seenSubs := make(map[string]bool)
			for j, sub := range subs {
				subField := fmt.Sprintf("loops.%s[%d]", step.Loop, j)
				if sub.ID == "" {
					return &ValidationError{Field: subField + ".id", Reason: "required"}
				}
				if seenSubs[sub.ID] {
					return &ValidationError{Field: subField + ".id", Reason: fmt.Sprintf("duplicate sub-step id %q", sub.ID)}
				}
				seenSubs[sub.ID] = true
				if strings.TrimSpace(sub.Instructions) == "" {
					return &ValidationError{Field: subField + ".instructions", Reason: "required"}
				}
				if sub.Agent != "" {
					if _, ok := t.Agents[sub.Agent]; !ok {
						return &ValidationError{Field: subField + ".agent", Reason: fmt.Sprintf("unknown agent %q", sub.Agent)}
					}
				}
			}
		default:
			return &ValidationError{Field: field + ".type", Reason: fmt.Sprintf("unknown step type %q", step.Type)}
		}

		if step.Agent != "" {
			if _, ok := t.Agents[step.Agent]; !ok {
				return &ValidationError{Field: field + ".agent", Reason: fmt.Sprintf("unknown agent %q", step.Agent)}
			}
		}
	}

	// Sorted so the same broken map always reports the same agent.
	names := make([]string, 0, len(t.Agents))
	for name := range t.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(t.Agents[name].Description) == "" {
			return &ValidationError{Field: "agents." + name + ".description", Reason: "required"}
		}
	}

	return nil
}
