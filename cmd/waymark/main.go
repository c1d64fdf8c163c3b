package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/waymark-dev/waymark/internal/bridge"
	"github.com/waymark-dev/waymark/internal/config"
	"github.com/waymark-dev/waymark/internal/discord"
	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/format"
	"github.com/waymark-dev/waymark/internal/install"
	"github.com/waymark-dev/waymark/internal/instance"
	"github.com/waymark-dev/waymark/internal/mcp"
	"github.com/waymark-dev/waymark/internal/paths"
	"github.com/waymark-dev/waymark/internal/telegram"
	"github.com/waymark-dev/waymark/internal/template"
	"github.com/waymark-dev/waymark/internal/tui"
)

var workspace string

var rootCmd = &cobra.Command{
	Use:          "waymark",
	Short:        "Resumable workflow engine for agent-run checklists",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (defaults to the current directory)")
	advanceCmd.Flags().StringVarP(&advanceOutput, "output", "o", "", "Output text to record for the current node")
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address for the bridge (overrides WAYMARK_BRIDGE_ADDR)")
	rootCmd.AddCommand(validateCmd, initCmd, statusCmd, advanceCmd, tasksCmd,
		contextCmd, artefactsCmd, summaryCmd, listCmd, serveCmd, mcpCmd, watchCmd, installCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func workspaceRoot() (string, error) {
	if workspace != "" {
		return workspace, nil
	}
	return os.Getwd()
}

func newManager() (*instance.Manager, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	return instance.NewManager(root)
}

// resolveTemplate accepts either a direct path or the name of a template
// stored under the workspace's .waymark/workflows directory.
func resolveTemplate(arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}
	root, err := workspaceRoot()
	if err != nil {
		return "", err
	}
	dir := paths.GetTemplateDir(root)
	for _, candidate := range []string{
		filepath.Join(dir, arg),
		filepath.Join(dir, arg+".yaml"),
		filepath.Join(dir, arg+".yml"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("template %q not found (also looked in %s)", arg, dir)
}

// render pretty-prints Markdown when stdout is an interactive terminal,
// and falls back to the raw text for pipes and dumb terminals.
func render(md string) {
	if !isatty.IsTerminal(os.Stdout.Fd()) || termenv.ColorProfile() == termenv.Ascii {
		fmt.Print(md)
		return
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

var validateCmd = &cobra.Command{
	Use:   "validate <template.yaml>",
	Short: "Check a workflow template against the schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveTemplate(args[0])
		if err != nil {
			return err
		}
		tmpl, err := template.LoadFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s is valid (%d steps)\n", tmpl.Name, len(tmpl.Steps))
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:     "init <template.yaml>",
	Aliases: []string{"start"},
	Short:   "Start a new workflow instance from a template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveTemplate(args[0])
		if err != nil {
			return err
		}
		mg, err := newManager()
		if err != nil {
			return err
		}
		id, snap, err := mg.Start(path)
		if err != nil {
			return err
		}
		defer mg.Release(id)
		fmt.Printf("instance: %s\n\n", id)
		name, _, _ := mg.Status(id)
		render(format.RenderStatus(name, snap))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <instance-id>",
	Short: "Show where an instance currently stands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		name, snap, err := mg.Status(args[0])
		if err != nil {
			return err
		}
		render(format.RenderStatus(name, snap))
		return nil
	},
}

var advanceOutput string

var advanceCmd = &cobra.Command{
	Use:   "advance <instance-id>",
	Short: "Record the current node's output and move to the next one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		id := args[0]
		snap, err := mg.Advance(id, advanceOutput)
		if err != nil {
			return err
		}
		defer mg.Release(id)
		name, _, _ := mg.Status(id)
		render(format.RenderStatus(name, snap))
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks <instance-id> <loop-id> <tasks.json>",
	Short: "Assign the runtime task list for a loop",
	Long: `Assign the runtime task list for a loop. The JSON file holds an array of
{"id": ..., "title": ...} objects; an empty array skips the loop entirely.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		var tasks []engine.Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return fmt.Errorf("parse tasks: %w", err)
		}
		mg, err := newManager()
		if err != nil {
			return err
		}
		id := args[0]
		snap, err := mg.SetTasks(id, args[1], tasks)
		if err != nil {
			return err
		}
		defer mg.Release(id)
		name, _, _ := mg.Status(id)
		render(format.RenderStatus(name, snap))
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <instance-id>",
	Short: "Print every recorded output, keyed by node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		ctx, err := mg.Context(args[0])
		if err != nil {
			return err
		}
		render(format.RenderContext(ctx))
		return nil
	},
}

var artefactsCmd = &cobra.Command{
	Use:   "artefacts <instance-id> <path>...",
	Short: "Register produced files against an instance",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		id := args[0]
		if _, err := mg.RegisterArtefacts(id, args[1:]); err != nil {
			return err
		}
		defer mg.Release(id)
		fmt.Printf("registered %d artefact(s)\n", len(args)-1)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <instance-id> <text>",
	Short: "Set the instance's closing summary",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		id := args[0]
		if _, err := mg.SetSummary(id, args[1]); err != nil {
			return err
		}
		defer mg.Release(id)
		fmt.Println("summary saved")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored workflow instances, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		docs, err := mg.List()
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("no instances")
			return nil
		}
		for _, doc := range docs {
			status := ""
			if doc.State != nil {
				status = string(doc.State.Status)
			}
			fmt.Printf("%s  %-8s  %s  %s\n", doc.ID, status, doc.UpdatedAt.Format("2006-01-02 15:04"), doc.TemplatePath)
		}
		return nil
	},
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket bridge daemon",
	Long: `Run the WebSocket bridge daemon. Remote clients multiplex RPC streams over
a single connection. TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID and
DISCORD_BOT_TOKEN/DISCORD_CHANNEL_ID enable progress notifications.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.BridgeAddr = serveAddr
		}

		mg, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if cfg.TelegramToken != "" {
			tg, err := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChat)
			if err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			mg.AddNotifier(tg)
			tg.EnableStatusQueries(mg)
			go tg.Start(ctx)
			log.Println("Telegram notifications enabled")
		}
		if cfg.DiscordToken != "" {
			dc, err := discord.NewNotifier(cfg.DiscordToken, cfg.DiscordChannel)
			if err != nil {
				return fmt.Errorf("discord: %w", err)
			}
			defer dc.Close()
			mg.AddNotifier(dc)
			log.Println("Discord notifications enabled")
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Println("Bridge shutting down...")
			cancel()
		}()

		return bridge.NewServer(cfg.BridgeAddr, mg).Start(ctx)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		return mcp.NewServer(mg).Run(cmd.Context())
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the MCP server in detected client configs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		executable, err := os.Executable()
		if err != nil {
			return err
		}
		return install.Install(executable)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <instance-id>",
	Short: "Follow an instance's progress in a live terminal view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := newManager()
		if err != nil {
			return err
		}
		return tui.Run(mg, args[0])
	},
}
