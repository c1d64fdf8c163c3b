// Package checklist keeps a Markdown checklist file in step with a
// workflow instance. It polls the machine's context after each advance;
// the engine fires no callbacks and never learns the file exists.
package checklist

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/waymark-dev/waymark/internal/engine"
)

var itemRegex = regexp.MustCompile(`^(\s*)- \[( |x)\] (\S+)(.*)$`)

// Generate writes a fresh checklist for a machine: one entry per action
// step and one per task × sub-step pass of each loop. Loops still
// awaiting tasks contribute a single placeholder entry.
func Generate(path, name string, m *engine.Machine) error {
	tmpl := m.Template()
	ctx := m.Context()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s checklist\n\n", name)

	for _, step := range tmpl.Steps {
		switch step.Type {
		case "action":
			writeItem(&b, step.ID, "", ctx)
		case "loop":
			tasks := m.Tasks(step.Loop)
			if len(tasks) == 0 {
				fmt.Fprintf(&b, "- [ ] %s (awaiting tasks)\n", step.ID)
				continue
			}
			for _, task := range tasks {
				for _, sub := range tmpl.Loops[step.Loop] {
					label := task.Title
					if label == "" {
						label = task.ID
					}
					writeItem(&b, engine.OutputKey(task.ID, sub.ID), fmt.Sprintf("%s / %s", label, sub.ID), ctx)
				}
			}
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}

func writeItem(b *strings.Builder, key, label string, ctx map[string]string) {
	mark := " "
	if _, done := ctx[key]; done {
		mark = "x"
	}
	if label == "" {
		fmt.Fprintf(b, "- [%s] %s\n", mark, key)
	} else {
		fmt.Fprintf(b, "- [%s] %s (%s)\n", mark, key, label)
	}
}

// Sync re-reads an existing checklist and ticks every entry whose node
// key now appears in the machine's context. Unknown lines, including
// entries the user added by hand, pass through untouched.
func Sync(path string, m *engine.Machine) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ctx := m.Context()

	var out []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		if match := itemRegex.FindStringSubmatch(line); match != nil {
			key := match[3]
			if _, done := ctx[key]; done && match[2] == " " {
				line = fmt.Sprintf("%s- [x] %s%s", match[1], key, match[4])
			}
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(strings.Join(out, "\n")+"\n"), 0644)
}
