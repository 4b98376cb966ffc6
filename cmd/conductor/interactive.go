package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"golang.org/x/term"

	"conductor/internal/logging"
	"conductor/internal/pipeline"
)

// runInteractive runs a readline REPL. Every prompt in the session shares
// one conversation id, so the supervisor carries context between turns.
func (c *cli) runInteractive() error {
	defer func() { _ = logging.Close() }()

	conversation := c.conversation
	if conversation == "" {
		conversation = "cli-" + uuid.NewString()[:8]
	}

	fmt.Printf("%s · %s\n", bold("Conductor"), c.cfg.LLMModel)
	fmt.Printf("Conversation %s. Type 'exit' to quit, '/help' for commands.\n\n", cyan(conversation))

	homeDir, _ := os.UserHomeDir()
	historyFile := filepath.Join(homeDir, ".conductor-history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            blue("> "),
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,

		Stdin:  readline.NewCancelableStdin(os.Stdin),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	ctx := context.Background()
	for {
		input, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(input) == 0 {
				fmt.Println("\nGoodbye!")
				break
			}
			continue
		} else if err == io.EOF {
			fmt.Println("\nGoodbye!")
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" || input == "q" {
			fmt.Println("Goodbye!")
			break
		}
		if strings.HasPrefix(input, "/") {
			conversation = c.runSlashCommand(input, conversation)
			continue
		}

		resp, err := c.app.Pipeline.Execute(ctx, pipeline.Request{
			ConversationID: conversation,
			Query:          input,
		})
		if err != nil {
			fmt.Printf("\n%s %v\n\n", red("Error:"), err)
			continue
		}

		if c.verbose {
			fmt.Println()
			printPlan(resp.Plan)
		}
		printAnswer(resp.Answer)
		printResult(resp)
		fmt.Println()
	}

	return nil
}

// runSlashCommand handles REPL meta commands and returns the (possibly
// replaced) conversation id.
func (c *cli) runSlashCommand(input, conversation string) string {
	switch input {
	case "/help":
		fmt.Println("  /stats   per-module quality statistics")
		fmt.Println("  /new     start a fresh conversation")
		fmt.Println("  /help    this list")
		fmt.Println("  exit     leave the session")
	case "/stats":
		stats := c.app.Supervisor.ModuleStats()
		if len(stats) == 0 {
			fmt.Println(gray("No evaluations recorded yet."))
			break
		}
		fmt.Printf("%-28s %12s %14s\n", bold("MODULE"), bold("INVOCATIONS"), bold("MEAN QUALITY"))
		for _, m := range stats {
			fmt.Printf("%-28s %12d %14.2f\n", m.ModuleID, m.Invocations, m.MeanQuality)
		}
	case "/new":
		conversation = "cli-" + uuid.NewString()[:8]
		fmt.Printf("Conversation %s\n", cyan(conversation))
	default:
		fmt.Printf("%s unknown command %q, try /help\n", yellow("?"), input)
	}
	return conversation
}

// printAnswer renders the answer as markdown on a terminal, plain otherwise.
func printAnswer(answer string) {
	if answer == "" {
		return
	}
	if !isTTY() {
		fmt.Println(answer)
		return
	}
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}
	fmt.Printf("\n%s\n", string(markdown.Render(answer, width, 2)))
}
