package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"conductor/internal/app"
	"conductor/internal/config"
	"conductor/internal/logging"
	"conductor/internal/ports"
)

// newIndexCommand groups semantic index maintenance. Subcommands build the
// application with automatic seeding disabled so they stay in control of
// when embeddings are computed.
func newIndexCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the semantic index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show collection counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildForIndex(c)
			if err != nil {
				return err
			}
			fmt.Printf("tools:   %d indexed, %d registered\n",
				application.Index.Count(ports.CollectionTools), len(application.Registry.Tools()))
			fmt.Printf("modules: %d indexed, %d registered\n",
				application.Index.Count(ports.CollectionModules), len(application.Registry.Modules()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Embed and index the current catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildForIndex(c)
			if err != nil {
				return err
			}
			if err := application.Index.Seed(cmd.Context(), application.Registry); err != nil {
				return err
			}
			fmt.Printf("%s Indexed %d tools and %d modules\n", green("✓"),
				application.Index.Count(ports.CollectionTools),
				application.Index.Count(ports.CollectionModules))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop all collections and reindex from scratch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildForIndex(c)
			if err != nil {
				return err
			}
			if err := application.Index.Reset(cmd.Context()); err != nil {
				return err
			}
			if err := application.Index.Seed(cmd.Context(), application.Registry); err != nil {
				return err
			}
			fmt.Printf("%s Rebuilt: %d tools, %d modules\n", green("✓"),
				application.Index.Count(ports.CollectionTools),
				application.Index.Count(ports.CollectionModules))
			return nil
		},
	})

	return cmd
}

func buildForIndex(c *cli) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.provider != "" {
		cfg.LLMProvider = c.provider
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))
	return app.Build(cfg, app.Options{SkipObservability: true, SkipSeed: true})
}
