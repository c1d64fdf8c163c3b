package install

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
)

// ConfigPath is a known location for MCP client settings.
type ConfigPath struct {
	Name string
	Path string
}

// GetUserConfigPaths returns candidate MCP configuration files for
// clients installed on this machine.
func GetUserConfigPaths() []ConfigPath {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	paths := []ConfigPath{
		{
			Name: "Cursor",
			Path: filepath.Join(home, ".cursor/mcp.json"),
		},
		{
			Name: "Claude Code CLI",
			Path: filepath.Join(home, ".claude.json"),
		},
	}

	if runtime.GOOS == "darwin" {
		paths = append(paths,
			ConfigPath{
				Name: "Claude Desktop",
				Path: filepath.Join(home, "Library/Application Support/Claude/claude_desktop_config.json"),
			},
			ConfigPath{
				Name: "VS Code (Generic MCP)",
				Path: filepath.Join(home, "Library/Application Support/Code/User/mcp.json"),
			},
		)
	}

	return paths
}

// FullConfig is the standard MCP config layout: "mcpServers" at the root.
type FullConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig holds one server entry.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Install patches every detected MCP client config with a "waymark"
// server entry pointing at the given binary in stdio mode.
func Install(binaryPath string) error {
	configs := GetUserConfigPaths()
	installed := 0

	for _, cfg := range configs {
		if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
			continue
		}

		if err := patchConfigFile(cfg.Path, binaryPath); err != nil {
			log.Printf("Failed to patch %s: %v", cfg.Name, err)
			continue
		}

		installed++
		fmt.Printf("✅ Configured %s\n", cfg.Name)
	}

	if installed == 0 {
		return fmt.Errorf("no supported MCP configurations found; install Cursor, Claude Desktop, Claude Code, or VS Code first")
	}

	return nil
}

func patchConfigFile(path, binaryPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var config FullConfig
	// Empty or unexpected files start from a clean server map.
	if err := json.Unmarshal(data, &config); err != nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}

	config.MCPServers["waymark"] = MCPServerConfig{
		Command: binaryPath,
		Args:    []string{"mcp"},
	}

	newData, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, newData, 0644)
}
