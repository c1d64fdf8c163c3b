package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// GetGlobalDir returns the root Waymark directory in the user's home (~/.waymark)
func GetGlobalDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".waymark")
}

// GetWorkspaceHash returns a short SHA256 hash of the absolute workspace path
func GetWorkspaceHash(workspaceRoot string) string {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		abs = workspaceRoot
	}
	hash := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(hash[:8])
}

// GetInstanceDir returns the global instance directory for a specific workspace
func GetInstanceDir(workspaceRoot string) string {
	hash := GetWorkspaceHash(workspaceRoot)
	return filepath.Join(GetGlobalDir(), "instances", hash)
}

// GetTemplateDir returns the per-workspace template directory (.waymark/workflows)
func GetTemplateDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".waymark", "workflows")
}

// GetChecklistDir returns the per-workspace checklist directory (.waymark/checklists)
func GetChecklistDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".waymark", "checklists")
}

// EnsureDir creates the directory and all parents if they don't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
