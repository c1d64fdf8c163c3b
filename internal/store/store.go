// Package store persists workflow cursors, one JSON document per
// instance, fully overwritten on every save. The engine itself performs
// no I/O; this is the storage collaborator that callers plug around it.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/paths"
	"github.com/waymark-dev/waymark/internal/template"
)

// Document is the on-disk form of one workflow instance: the cursor plus
// enough metadata to find its template again.
type Document struct {
	ID           string                `json:"id"`
	Workspace    string                `json:"workspace"`
	TemplatePath string                `json:"template_path"`
	UpdatedAt    time.Time             `json:"updated_at"`
	State        *engine.WorkflowState `json:"state"`
}

// Store manages the instance documents of a single workspace. A held
// file lock per instance gives the single-writer discipline the engine
// expects from its caller; the engine itself never locks.
type Store struct {
	dir   string
	locks map[string]*flock.Flock
}

// NewStore opens (creating if needed) an instance directory.
func NewStore(dir string) (*Store, error) {
	if err := paths.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{dir: dir, locks: make(map[string]*flock.Flock)}, nil
}

// ForWorkspace opens the global instance directory of a workspace
// (~/.waymark/instances/<hash>).
func ForWorkspace(workspaceRoot string) (*Store, error) {
	return NewStore(paths.GetInstanceDir(workspaceRoot))
}

// Create starts a new instance document for a template and returns it
// with a fresh cursor already persisted.
func (s *Store) Create(workspaceRoot, templatePath string, st *engine.WorkflowState) (*Document, error) {
	doc := &Document{
		ID:           uuid.NewString(),
		Workspace:    workspaceRoot,
		TemplatePath: templatePath,
		State:        st,
	}
	if err := s.Save(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save overwrites the instance document. The instance lock is acquired
// on first save and held until Release, so two processes can never
// interleave writes to the same cursor.
func (s *Store) Save(doc *Document) error {
	if err := s.acquire(doc.ID); err != nil {
		return err
	}

	doc.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.docPath(doc.ID), data, 0644)
}

// Load reads the latest persisted document for an instance.
func (s *Store) Load(id string) (*Document, error) {
	data, err := os.ReadFile(s.docPath(id))
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse instance %s: %w", id, err)
	}
	return &doc, nil
}

// Resume loads an instance document, re-loads its template from disk and
// rehydrates a machine from the cursor. Template edits that invalidate
// the cursor surface as an engine.LookupError.
func (s *Store) Resume(id string) (*engine.Machine, *Document, error) {
	doc, err := s.Load(id)
	if err != nil {
		return nil, nil, err
	}
	tmpl, err := template.LoadFile(doc.TemplatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load template for instance %s: %w", id, err)
	}
	m, err := engine.FromState(tmpl, doc.State)
	if err != nil {
		return nil, nil, err
	}
	return m, doc, nil
}

// List returns all instance documents for the workspace, newest first.
func (s *Store) List() ([]*Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var docs []*Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		doc, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip unreadable documents but keep listing the rest.
			continue
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
	return docs, nil
}

// Delete removes an instance document and releases its lock.
func (s *Store) Delete(id string) error {
	s.Release(id)
	if err := os.Remove(s.docPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	os.Remove(s.lockPath(id))
	return nil
}

// Release drops the instance lock so another process may take over.
func (s *Store) Release(id string) {
	if lock, ok := s.locks[id]; ok {
		lock.Unlock()
		delete(s.locks, id)
	}
}

func (s *Store) acquire(id string) error {
	if _, ok := s.locks[id]; ok {
		return nil
	}
	lock := flock.New(s.lockPath(id))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock instance %s: %w", id, err)
	}
	if !locked {
		return fmt.Errorf("instance %s is owned by another process", id)
	}
	s.locks[id] = lock
	return nil
}

func (s *Store) docPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) lockPath(id string) string {
	return filepath.Join(s.dir, id+".lock")
}
