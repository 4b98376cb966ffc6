package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"conductor/internal/app"
	"conductor/internal/config"
	"conductor/internal/logging"
	"conductor/internal/pipeline"
	"conductor/internal/ports"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// cli carries flag values and the built application across cobra run funcs.
type cli struct {
	configPath   string
	model        string
	provider     string
	conversation string
	verbose      bool

	cfg *config.Config
	app *app.App
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   "conductor [query]",
		Short: "Staged reasoning assistant",
		Long: bold("Conductor") + ` routes each question through retrieval, planning,
policy review, model invocation, and quality refinement before answering.

` + bold("EXAMPLES") + `
  conductor "why does my test deadlock?"      one-shot question
  conductor                                   interactive session
  conductor -c repo-review "now the fix?"     continue a conversation
  conductor init                              guided configuration
  conductor index status                      semantic index counts`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				if err := c.initialize(); err != nil {
					return err
				}
				return c.runOnce(strings.Join(args, " "))
			}
			if !isTTY() {
				return cmd.Help()
			}
			if err := c.initialize(); err != nil {
				return err
			}
			return c.runInteractive()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.conductor/config.yaml)")
	flags.StringVarP(&c.model, "model", "m", "", "override the configured model")
	flags.StringVar(&c.provider, "provider", "", "override the configured provider (openai, mock)")
	flags.StringVarP(&c.conversation, "conversation", "c", "", "conversation id for multi-turn context")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging on the console")

	cmd.AddCommand(newInitCommand(c))
	cmd.AddCommand(newIndexCommand(c))
	cmd.AddCommand(newCatalogCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// initialize loads configuration, applies flag overrides, and builds the
// full pipeline. The CLI never binds the metrics port; observability
// belongs to conductor-server.
func (c *cli) initialize() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.model != "" {
		cfg.LLMModel = c.model
	}
	if c.provider != "" {
		cfg.LLMProvider = c.provider
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if c.verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
		logging.SetConsoleEcho(true)
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))

	application, err := app.Build(cfg, app.Options{SkipObservability: true})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.app = application
	return nil
}

// runOnce answers a single query and exits.
func (c *cli) runOnce(query string) error {
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resp, err := c.app.Pipeline.Execute(ctx, pipeline.Request{
		ConversationID: c.conversation,
		Query:          query,
	})
	if err != nil {
		return err
	}

	if c.verbose {
		printPlan(resp.Plan)
	}
	printAnswer(resp.Answer)
	printResult(resp)
	return nil
}

func printPlan(plan ports.ExecutionPlan) {
	fmt.Printf("%s intent=%s strategy=%s complexity=%d ambiguity=%d confidence=%.2f\n",
		gray("plan:"), plan.Intent, plan.Strategy, plan.Complexity, plan.Ambiguity, plan.Confidence)
	if len(plan.ApprovedTools) > 0 {
		fmt.Printf("%s %s\n", gray("tools:"), strings.Join(plan.ApprovedTools, ", "))
	}
	if len(plan.SelectedModules) > 0 {
		fmt.Printf("%s %s\n", gray("modules:"), strings.Join(plan.SelectedModules, ", "))
	}
	fmt.Println()
}

// printResult writes the one-line completion summary under the answer.
func printResult(resp *pipeline.Response) {
	parts := []string{formatDuration(resp.Duration)}
	if resp.Evaluation.FinalRating > 0 {
		parts = append(parts, fmt.Sprintf("rating %.1f", resp.Evaluation.FinalRating))
	}
	switch resp.Outcome {
	case ports.RefineSkipped, ports.RefineAccepted, "":
	case ports.RefineExhausted:
		parts = append(parts, yellow("refinement exhausted"))
	default:
		parts = append(parts, string(resp.Outcome))
	}
	if resp.Degraded {
		parts = append(parts, yellow("degraded retrieval"))
	}
	if len(resp.UsedTools) > 0 {
		parts = append(parts, gray(strings.Join(resp.UsedTools, ", ")))
	}
	fmt.Printf("\n%s %s\n", green("✓"), strings.Join(parts, " · "))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("conductor %s\n", version)
		},
	}
}
