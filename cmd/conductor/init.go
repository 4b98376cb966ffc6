package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"conductor/internal/config"
)

// newInitCommand returns the guided setup command. It walks through the
// provider choice then writes a config file; existing values at the target
// path are loaded first so re-running keeps unrelated settings.
func newInitCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Guided configuration setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(c.configPath)
		},
	}
}

func runInit(path string) error {
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		// A malformed file should not block re-initialization.
		fmt.Printf("%s existing config unreadable (%v), starting from defaults\n", yellow("!"), err)
		cfg = config.Default()
	}

	providerSelect := promptui.Select{
		Label: "Model provider",
		Items: []string{"openai", "mock"},
	}
	_, provider, err := providerSelect.Run()
	if err != nil {
		return err
	}
	cfg.LLMProvider = provider

	if provider == "mock" {
		cfg.LLMModel = "mock"
		cfg.APIKey = ""
		return writeConfig(cfg, path)
	}

	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: orDefault(cfg.LLMModel, config.DefaultLLMModel),
	}
	if cfg.LLMModel, err = modelPrompt.Run(); err != nil {
		return err
	}

	keyPrompt := promptui.Prompt{
		Label: "API key (empty keeps OPENAI_API_KEY from the environment)",
		Mask:  '*',
	}
	key, err := keyPrompt.Run()
	if err != nil {
		return err
	}
	if key = strings.TrimSpace(key); key != "" {
		cfg.APIKey = key
	}

	urlPrompt := promptui.Prompt{
		Label:   "Base URL",
		Default: orDefault(cfg.BaseURL, config.DefaultLLMBaseURL),
	}
	if cfg.BaseURL, err = urlPrompt.Run(); err != nil {
		return err
	}

	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(orDefaultInt(cfg.ServerPort, config.DefaultServerPort)),
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 1 || n > 65535 {
				return errors.New("port must be 1-65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return err
	}
	cfg.ServerPort, _ = strconv.Atoi(strings.TrimSpace(portStr))

	return writeConfig(cfg, path)
}

func writeConfig(cfg *config.Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Printf("%s Wrote %s\n", green("✓"), path)
	fmt.Printf("  Try: %s\n", cyan(`conductor "why does my test deadlock?"`))
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orDefaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
