// Package instance ties one workspace's stored cursors to the engine.
// Every mutation goes through the same path: resume from the store,
// apply the operation, persist the new cursor, then let the checklist
// and notifiers catch up. The engine stays pure; this is where the I/O
// happens.
package instance

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/waymark-dev/waymark/internal/checklist"
	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/paths"
	"github.com/waymark-dev/waymark/internal/store"
	"github.com/waymark-dev/waymark/internal/template"
)

// Notifier receives a status snapshot after every transition. Telegram
// and Discord bots implement this; failures are logged, never propagated,
// so a dead bot cannot stall a workflow.
type Notifier interface {
	Notify(workflowName string, snap engine.Snapshot) error
}

// Manager drives all workflow instances of one workspace.
type Manager struct {
	workspace string
	store     *store.Store
	notifiers []Notifier
}

// NewManager opens the instance store for a workspace.
func NewManager(workspace string) (*Manager, error) {
	s, err := store.ForWorkspace(workspace)
	if err != nil {
		return nil, err
	}
	return &Manager{workspace: workspace, store: s}, nil
}

// NewManagerWithStore is used by tests and by callers that relocate the
// store directory.
func NewManagerWithStore(workspace string, s *store.Store) *Manager {
	return &Manager{workspace: workspace, store: s}
}

// AddNotifier registers a presentation collaborator.
func (mg *Manager) AddNotifier(n Notifier) {
	mg.notifiers = append(mg.notifiers, n)
}

// Start validates a template, starts a fresh machine and persists its
// first cursor. It returns the new instance id with the opening snapshot.
func (mg *Manager) Start(templatePath string) (string, engine.Snapshot, error) {
	tmpl, err := template.LoadFile(templatePath)
	if err != nil {
		return "", engine.Snapshot{}, err
	}

	m := engine.New(tmpl)
	snap := m.Start()

	doc, err := mg.store.Create(mg.workspace, templatePath, m.State())
	if err != nil {
		return "", engine.Snapshot{}, err
	}

	if err := checklist.Generate(mg.checklistPath(doc.ID), tmpl.Name, m); err != nil {
		log.Printf("Failed to write checklist for %s: %v", doc.ID, err)
	}
	mg.notify(tmpl.Name, snap)

	return doc.ID, snap, nil
}

// Advance records an output for the active node and persists the result.
func (mg *Manager) Advance(id, output string) (engine.Snapshot, error) {
	return mg.mutate(id, false, func(m *engine.Machine) engine.Snapshot {
		return m.Advance(output)
	})
}

// SetTasks assigns the task list of a loop and persists the result. The
// checklist is regenerated rather than synced: assigning tasks creates
// per-task entries (and retires the awaiting placeholder) that box
// flipping alone can never produce.
func (mg *Manager) SetTasks(id, loopID string, tasks []engine.Task) (engine.Snapshot, error) {
	return mg.mutate(id, true, func(m *engine.Machine) engine.Snapshot {
		return m.SetTasks(loopID, tasks)
	})
}

// RegisterArtefacts appends artefact paths and persists the result.
func (mg *Manager) RegisterArtefacts(id string, artefacts []string) (engine.Snapshot, error) {
	return mg.mutate(id, false, func(m *engine.Machine) engine.Snapshot {
		m.RegisterArtefacts(artefacts)
		return m.Status()
	})
}

// SetSummary records the summary text and persists the result.
func (mg *Manager) SetSummary(id, text string) (engine.Snapshot, error) {
	return mg.mutate(id, false, func(m *engine.Machine) engine.Snapshot {
		m.SetSummary(text)
		return m.Status()
	})
}

// Status rehydrates an instance and reports its position read-only.
func (mg *Manager) Status(id string) (string, engine.Snapshot, error) {
	m, _, err := mg.store.Resume(id)
	if err != nil {
		return "", engine.Snapshot{}, err
	}
	return m.Template().Name, m.Status(), nil
}

// Context rehydrates an instance and returns its accumulated outputs.
func (mg *Manager) Context(id string) (map[string]string, error) {
	m, _, err := mg.store.Resume(id)
	if err != nil {
		return nil, err
	}
	return m.Context(), nil
}

// Machine rehydrates an instance for callers that need direct access,
// e.g. the watch TUI. The caller owns the returned machine.
func (mg *Manager) Machine(id string) (*engine.Machine, error) {
	m, _, err := mg.store.Resume(id)
	return m, err
}

// List returns the stored instance documents, newest first.
func (mg *Manager) List() ([]*store.Document, error) {
	return mg.store.List()
}

// Release hands the instance lock back, e.g. on daemon shutdown.
func (mg *Manager) Release(id string) {
	mg.store.Release(id)
}

// ChecklistPath exposes where an instance's checklist lives.
func (mg *Manager) ChecklistPath(id string) string {
	return mg.checklistPath(id)
}

func (mg *Manager) mutate(id string, regenChecklist bool, op func(*engine.Machine) engine.Snapshot) (engine.Snapshot, error) {
	m, doc, err := mg.store.Resume(id)
	if err != nil {
		return engine.Snapshot{}, err
	}

	snap := op(m)

	doc.State = m.State()
	if err := mg.store.Save(doc); err != nil {
		return engine.Snapshot{}, fmt.Errorf("failed to persist instance %s: %w", id, err)
	}

	// A deleted checklist stays deleted; we only maintain one the caller
	// still has.
	if _, err := os.Stat(mg.checklistPath(id)); err == nil {
		if regenChecklist {
			if err := checklist.Generate(mg.checklistPath(id), m.Template().Name, m); err != nil {
				log.Printf("Failed to regenerate checklist for %s: %v", id, err)
			}
		} else if err := checklist.Sync(mg.checklistPath(id), m); err != nil {
			log.Printf("Failed to sync checklist for %s: %v", id, err)
		}
	}
	mg.notify(m.Template().Name, snap)

	return snap, nil
}

func (mg *Manager) notify(name string, snap engine.Snapshot) {
	for _, n := range mg.notifiers {
		if err := n.Notify(name, snap); err != nil {
			log.Printf("Notifier error: %v", err)
		}
	}
}

func (mg *Manager) checklistPath(id string) string {
	dir := paths.GetChecklistDir(mg.workspace)
	if err := paths.EnsureDir(dir); err != nil {
		log.Printf("Failed to create checklist dir %s: %v", dir, err)
	}
	return filepath.Join(dir, id+".md")
}
