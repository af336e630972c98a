// Package main provides the semfolio binary entry point. Semfolio turns a
// recorded conversation into a structured portfolio entry, pausing for the
// user to confirm the classification, answer follow-up questions and pick
// capabilities.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	// Register LLM providers via init()
	_ "github.com/c360studio/semfolio/llm/providers"

	"github.com/c360studio/semfolio/config"
	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/orchestration"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semfolio"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCmd(&cli{out: os.Stdout, errOut: os.Stderr}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries global flags and the streams commands write to.
type cli struct {
	configPath  string
	logLevel    string
	metricsAddr string

	out    io.Writer
	errOut io.Writer

	// model replaces the configured language model when set.
	model llm.StructuredInvoker
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Portfolio entry workflow",
		Long: `Semfolio processes a conversation transcript into a structured portfolio
entry. The workflow pauses for confirmation at three points; resume it with
the answer once the user has responded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)

	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	cmd.AddCommand(
		c.startCmd(),
		c.resumeCmd(),
		c.recoverCmd(),
		c.statusCmd(),
		c.historyCmd(),
		c.pausedCmd(),
		c.specialtiesCmd(),
		c.graphCmd(),
		c.configCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(c.out, "%s version %s (build: %s)\n", appName, Version, BuildTime)
				fmt.Fprintf(c.out, "providers: %s\n", strings.Join(llm.ListProviders(), ", "))
			},
		},
	)
	return cmd
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))
}

func (c *cli) loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.NewLoader(logger).Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = c.metricsAddr
	}
	return cfg, nil
}

// withApp builds an App reading messages from transcript (if any), runs fn
// and shuts the App down.
func (c *cli) withApp(ctx context.Context, transcript string, adjust func(*config.Config), fn func(*App) error) error {
	logger := c.logger()
	cfg, err := c.loadConfig(logger)
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(cfg)
	}

	deps := appDeps{model: c.model}
	if transcript != "" {
		deps.messages = conversation.NewFileRepository(transcript)
	}

	app, err := NewApp(ctx, cfg, logger, deps)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Close(shutdownCtx)
	}()
	return fn(app)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints whatever state came back, then returns err.
func (c *cli) printResult(st *orchestration.GraphState, err error) error {
	if st != nil {
		if perr := c.printJSON(st); perr != nil {
			return perr
		}
	}
	return err
}

func (c *cli) startCmd() *cobra.Command {
	var (
		req        orchestration.StartRequest
		transcript string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start processing a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), transcript, nil, func(app *App) error {
				return c.printResult(app.Service.StartGraph(cmd.Context(), req))
			})
		},
	}
	cmd.Flags().StringVar(&req.ConversationID, "conversation", "", "Conversation ID")
	cmd.Flags().StringVar(&req.ArtefactID, "artefact", "", "Artefact ID")
	cmd.Flags().StringVar(&req.UserID, "user", "", "User ID")
	cmd.Flags().StringVar(&req.Specialty, "specialty", "", "Specialty code (see 'semfolio specialties')")
	cmd.Flags().StringVar(&transcript, "transcript", "", "JSON file of conversation messages")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func (c *cli) resumeCmd() *cobra.Command {
	var (
		conversationID string
		node           string
		value          string
		transcript     string
	)
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Answer the question a conversation is paused at",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := orchestration.ResumeRequest{Node: node}
			if value != "" {
				req.Value = json.RawMessage(value)
			}
			return c.withApp(cmd.Context(), transcript, nil, func(app *App) error {
				return c.printResult(app.Service.ResumeGraph(cmd.Context(), conversationID, req))
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID")
	cmd.Flags().StringVar(&node, "node", "", "Node the conversation is paused at")
	cmd.Flags().StringVar(&value, "value", "", `Answer as JSON, e.g. '"clinical_case_review"' or '{"selected":["data_gathering"]}'`)
	cmd.Flags().StringVar(&transcript, "transcript", "", "JSON file of conversation messages")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func (c *cli) recoverCmd() *cobra.Command {
	var conversationID, transcript string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Continue a conversation left running by an interrupted process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), transcript, nil, func(app *App) error {
				return c.printResult(app.Service.RecoverGraph(cmd.Context(), conversationID))
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID")
	cmd.Flags().StringVar(&transcript, "transcript", "", "JSON file of conversation messages")
	_ = cmd.MarkFlagRequired("conversation")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where a conversation's workflow is",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), "", nil, func(app *App) error {
				return c.printResult(app.Service.GetGraphState(cmd.Context(), conversationID))
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List every checkpoint of a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), "", nil, func(app *App) error {
				history, err := app.Engine.History(cmd.Context(), conversationID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SEQ\tSTATUS\tNODE\tCREATED\tERROR")
				for _, cp := range history {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
						cp.Seq, cp.Status, cp.Node, cp.CreatedAt.Format(time.RFC3339), cp.Error)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

// pausedLister is implemented by stores that can enumerate waiting threads.
type pausedLister interface {
	Paused(ctx context.Context) ([]string, error)
}

func (c *cli) pausedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paused",
		Short: "List conversations waiting for input",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), "", nil, func(app *App) error {
				lister, ok := app.Store.(pausedLister)
				if !ok {
					return fmt.Errorf("checkpoint backend %q cannot list paused conversations", app.cfg.Checkpoint.Backend)
				}
				ids, err := lister.Paused(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(c.out, id)
				}
				return nil
			})
		},
	}
}

func (c *cli) specialtiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specialties",
		Short: "List specialties and their entry types",
		RunE: func(cmd *cobra.Command, args []string) error {
			memory := func(cfg *config.Config) { cfg.Checkpoint.Backend = config.BackendMemory }
			return c.withApp(cmd.Context(), "", memory, func(app *App) error {
				codes := app.Specialties.Specialties()
				sort.Strings(codes)
				for _, code := range codes {
					sc, err := app.Specialties.Config(code)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.out, "%s\t%s\n", code, sc.Name)
					for _, et := range sc.EntryTypes {
						fmt.Fprintf(c.out, "  %s\t%s\n", et.Code, et.Name)
					}
				}
				return nil
			})
		},
	}
}

func (c *cli) graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the workflow as a mermaid flowchart",
		RunE: func(cmd *cobra.Command, args []string) error {
			memory := func(cfg *config.Config) { cfg.Checkpoint.Backend = config.BackendMemory }
			return c.withApp(cmd.Context(), "", memory, func(app *App) error {
				_, err := fmt.Fprint(c.out, app.Engine.Graph().Mermaid())
				return err
			})
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	var initUser bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.logger()
			if initUser {
				path, err := config.NewLoader(logger).EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.errOut, "user config: %s\n", path)
			}
			cfg, err := c.loadConfig(logger)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(c.out)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&initUser, "init", false, "Create the user config file with defaults if missing")
	return cmd
}
